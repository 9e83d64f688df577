package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grouping-api/pkg/config"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 0.0, SampleRatio(-1))
	assert.Equal(t, 1.0, SampleRatio(3))
	assert.Equal(t, 0.25, SampleRatio(0.25))
}

func TestTrimScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", trimScheme("http://collector:4318/"))
	assert.Equal(t, "collector:4318", trimScheme("collector:4318"))
}
