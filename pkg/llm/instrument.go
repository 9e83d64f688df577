package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Observer receives the outcome of every generation call.
type Observer interface {
	ObserveLLMCall(model string, success bool, duration time.Duration)
}

type instrumentedProvider struct {
	inner    Provider
	logger   *zap.Logger
	observer Observer
}

// WithInstrumentation logs every call and reports latency to observer. Either may be nil.
func WithInstrumentation(p Provider, logger *zap.Logger, observer Observer) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedProvider{inner: p, logger: logger, observer: observer}
}

func (p *instrumentedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := p.inner.Generate(ctx, req)
	elapsed := time.Since(start)

	if p.observer != nil {
		p.observer.ObserveLLMCall(p.inner.ModelID(), err == nil, elapsed)
	}

	fields := []zap.Field{
		zap.String("model", p.inner.ModelID()),
		zap.Duration("latency", elapsed),
	}
	if req.Schema != nil {
		fields = append(fields, zap.String("schema", req.Schema.Name))
	}
	if err != nil {
		p.logger.Warn("llm request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	p.logger.Info("llm request completed", append(fields,
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)...)
	return resp, nil
}

func (p *instrumentedProvider) ModelID() string {
	return p.inner.ModelID()
}
