package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/grouping"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
)

type rosterReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.StudentPerformance, error)
}

type groupWriter interface {
	ReplaceForClass(ctx context.Context, classID string, result *models.GroupingResult) ([]models.PersistedGroup, error)
}

type aiGrouper interface {
	Group(ctx context.Context, classID string, roster []models.StudentPerformance, groupCount int, base models.GroupingConstraints) (*models.GroupingResult, error)
}

type groupingRecorder interface {
	RecordGrouping(algorithm, fallbackCategory string)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

// GroupingServiceConfig governs proposal behaviour.
type GroupingServiceConfig struct {
	ProposalTTL       time.Duration
	AllowInvalidApply bool
}

// GroupingService builds grouping proposals and applies them to a class.
type GroupingService struct {
	roster    rosterReader
	groups    groupWriter
	ai        aiGrouper
	cache     cacheInvalidator
	metrics   groupingRecorder
	validator *validator.Validate
	logger    *zap.Logger
	store     *proposalStore
	locks     *classLocks
	cfg       GroupingServiceConfig
	now       func() time.Time
}

// NewGroupingService wires grouping dependencies. cache and metrics may be nil.
func NewGroupingService(
	roster rosterReader,
	groups groupWriter,
	ai aiGrouper,
	cache cacheInvalidator,
	metrics groupingRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg GroupingServiceConfig,
) *GroupingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	return &GroupingService{
		roster:    roster,
		groups:    groups,
		ai:        ai,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		store:     newProposalStore(cfg.ProposalTTL),
		locks:     newClassLocks(),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate builds a proposal with the engine selected by req.Mode and stores it for review.
func (s *GroupingService) Generate(ctx context.Context, req dto.GenerateGroupingRequest) (*models.GroupingProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grouping payload")
	}
	constraints, err := resolveConstraints(req.Constraints)
	if err != nil {
		return nil, err
	}

	roster, err := s.roster.ListByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	if len(roster) == 0 {
		return nil, preconditionError(&grouping.PreconditionError{Code: grouping.CodeNoStudents, Message: "No students enrolled"})
	}

	mode := req.Mode
	if mode == "" || mode == dto.GroupingModeAuto {
		mode = dto.GroupingModeAI
		if len(roster) <= grouping.ManualMaxStudents {
			mode = dto.GroupingModeManual
		}
	}
	if mode == dto.GroupingModeManual {
		if err := grouping.CheckManualSize(len(roster)); err != nil {
			return nil, preconditionError(err)
		}
	}
	if err := grouping.RequirePretests(roster); err != nil {
		return nil, preconditionError(err)
	}

	var result *models.GroupingResult
	switch mode {
	case dto.GroupingModeManual:
		result, err = grouping.ManualGroup(req.ClassID, roster, constraints)
	case dto.GroupingModeFallback:
		result, err = grouping.FallbackGroup(req.ClassID, roster, req.GroupCount, constraints)
	case dto.GroupingModeAI:
		if s.ai == nil {
			return nil, appErrors.Clone(appErrors.ErrAIUnavailable, "AI grouping is not configured")
		}
		result, err = s.ai.Group(ctx, req.ClassID, roster, req.GroupCount, constraints)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grouping mode %q", req.Mode))
	}
	if err != nil {
		return nil, s.mapEngineError(req.ClassID, mode, err)
	}

	if s.metrics != nil {
		s.metrics.RecordGrouping(result.AlgorithmVersion, result.FallbackCategory)
	}

	proposal := models.GroupingProposal{
		ProposalID:  uuid.NewString(),
		ClassID:     req.ClassID,
		Result:      *result,
		Validation:  grouping.Validate(result, grouping.EffectiveConstraints(result, constraints, req.GroupCount)),
		Constraints: constraints,
		RequestedBy: req.RequestedBy,
		CreatedAt:   s.now().UTC(),
	}
	s.store.Save(proposal)

	s.logger.Info("grouping proposal created",
		zap.String("class_id", req.ClassID),
		zap.String("proposal_id", proposal.ProposalID),
		zap.String("algorithm", result.AlgorithmVersion),
		zap.Int("groups", len(result.Groups)),
		zap.Bool("valid", proposal.Validation.Valid),
	)
	return &proposal, nil
}

// GetProposal returns a stored, unexpired proposal of the class.
func (s *GroupingService) GetProposal(classID, proposalID string) (*models.GroupingProposal, error) {
	proposal, ok := s.store.Get(proposalID, s.now())
	if !ok || proposal.ClassID != classID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return &proposal, nil
}

// DiscardProposal removes a stored proposal.
func (s *GroupingService) DiscardProposal(classID, proposalID string) error {
	if _, err := s.GetProposal(classID, proposalID); err != nil {
		return err
	}
	s.store.Delete(proposalID)
	return nil
}

// Apply persists a proposal, replacing every existing group of the class.
// Applies to the same class are serialised.
func (s *GroupingService) Apply(ctx context.Context, req dto.ApplyGroupingRequest) (*dto.ApplyGroupingResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid apply payload")
	}

	unlock := s.locks.Lock(req.ClassID)
	defer unlock()

	proposal, err := s.GetProposal(req.ClassID, req.ProposalID)
	if err != nil {
		return nil, err
	}
	if !proposal.Validation.Valid && !req.Force && !s.cfg.AllowInvalidApply {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidGrouping, "proposal violates grouping constraints; resubmit with force to apply anyway", proposal.Validation)
	}

	persisted, err := s.groups.ReplaceForClass(ctx, req.ClassID, &proposal.Result)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist groups")
	}
	s.store.Delete(req.ProposalID)
	if s.cache != nil {
		s.cache.Invalidate(ctx, analyticsCachePattern(req.ClassID))
	}

	s.logger.Info("grouping applied",
		zap.String("class_id", req.ClassID),
		zap.String("proposal_id", req.ProposalID),
		zap.Int("groups", len(persisted)),
		zap.Bool("forced", !proposal.Validation.Valid),
	)
	return &dto.ApplyGroupingResponse{
		ClassID:    req.ClassID,
		ProposalID: req.ProposalID,
		Groups:     persisted,
		Validation: proposal.Validation,
		Forced:     !proposal.Validation.Valid,
		AppliedAt:  s.now().UTC(),
	}, nil
}

// Validate checks an arbitrary grouping against constraints.
func (s *GroupingService) Validate(ctx context.Context, req dto.ValidateGroupingRequest) (models.ValidationReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.ValidationReport{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid validation payload")
	}
	constraints, err := resolveConstraints(req.Constraints)
	if err != nil {
		return models.ValidationReport{}, err
	}

	result := req.Result
	result.Groups = append([]models.Group(nil), req.Result.Groups...)
	if req.ClassID != "" {
		roster, err := s.roster.ListByClass(ctx, req.ClassID)
		if err != nil {
			return models.ValidationReport{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
		}
		grouping.Recompute(&result, roster, constraints)
	}
	return grouping.Validate(&result, constraints), nil
}

func (s *GroupingService) mapEngineError(classID string, mode dto.GroupingMode, err error) error {
	if pe, ok := grouping.AsPrecondition(err); ok {
		return preconditionError(pe)
	}
	if errors.Is(err, context.Canceled) {
		return appErrors.Wrap(err, "REQUEST_CANCELLED", 499, "grouping request cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, "TIMEOUT", http.StatusGatewayTimeout, "grouping request timed out")
	}
	s.logger.Error("grouping failed", zap.String("class_id", classID), zap.String("mode", string(mode)), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate grouping")
}

func preconditionError(err error) error {
	pe, ok := grouping.AsPrecondition(err)
	if !ok {
		return err
	}
	appErr := appErrors.WithDetails(appErrors.ErrPreconditionFailed, pe.Message, pe)
	appErr.Code = string(pe.Code)
	appErr.Err = pe
	return appErr
}

// resolveConstraints overlays the request on the default constraints.
func resolveConstraints(req *dto.ConstraintsRequest) (models.GroupingConstraints, error) {
	c := grouping.DefaultConstraints()
	if req == nil {
		return c, nil
	}
	if req.MinGroupSize != nil {
		c.MinGroupSize = *req.MinGroupSize
	}
	if req.MaxGroupSize != nil {
		c.MaxGroupSize = *req.MaxGroupSize
	}
	if req.TargetGenderBalance != nil {
		c.TargetGenderBalance = *req.TargetGenderBalance
	}
	if req.Tiers != nil {
		c.Tiers = *req.Tiers
	}
	if c.MaxGroupSize < c.MinGroupSize {
		return c, appErrors.Clone(appErrors.ErrValidation, "maxGroupSize must be greater than or equal to minGroupSize")
	}
	if c.Tiers.High.Min <= c.Tiers.Medium.Min {
		return c, appErrors.Clone(appErrors.ErrValidation, "high tier must start above the medium tier")
	}
	return c, nil
}

// --- Proposal store ---

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]models.GroupingProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]models.GroupingProposal),
	}
}

func (s *proposalStore) Save(proposal models.GroupingProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
	s.evictLocked(proposal.CreatedAt)
}

func (s *proposalStore) Get(id string, now time.Time) (models.GroupingProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return models.GroupingProposal{}, false
	}
	if now.Sub(proposal.CreatedAt) > s.ttl {
		s.Delete(id)
		return models.GroupingProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *proposalStore) evictLocked(now time.Time) {
	for id, p := range s.items {
		if now.Sub(p.CreatedAt) > s.ttl {
			delete(s.items, id)
		}
	}
}

// --- Per-class locks ---

type classLocks struct {
	mu    sync.Mutex
	locks map[string]*classLock
}

type classLock struct {
	mu   sync.Mutex
	refs int
}

func newClassLocks() *classLocks {
	return &classLocks{locks: make(map[string]*classLock)}
}

// Lock blocks until the class is free and returns its unlock function.
func (l *classLocks) Lock(classID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[classID]
	if !ok {
		lock = &classLock{}
		l.locks[classID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, classID)
		}
		l.mu.Unlock()
	}
}
