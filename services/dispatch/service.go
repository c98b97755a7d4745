package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories"
	"github.com/upb/llm-compare/services"
	"github.com/upb/llm-compare/services/experiment"
	"github.com/upb/llm-compare/services/history"
	"github.com/upb/llm-compare/services/metrics"
	"github.com/upb/llm-compare/services/providers"
)

// Failure details attached to slots that are never launched
const (
	detailNotAvailable = "provider not available"
	detailNoCredential = "no valid credential"
	detailTimeout      = "timeout"
)

// DispatchService fans one user message out to several providers and
// keeps the user's conversation history
type DispatchService struct {
	history     repositories.HistoryRepository
	providers   ProviderLookup
	credentials CredentialSource
	processor   experiment.Processor
	ledger      *metrics.Ledger
	prices      *metrics.PriceTable
	recorder    Recorder
	locks       *userLocks
	config      Config
	logger      *zap.Logger
}

// NewDispatchService creates a new dispatch service with all dependencies.
// A nil processor serves text unchanged; a nil recorder disables auditing.
func NewDispatchService(
	historyRepo repositories.HistoryRepository,
	lookup ProviderLookup,
	credentials CredentialSource,
	processor experiment.Processor,
	ledger *metrics.Ledger,
	prices *metrics.PriceTable,
	recorder Recorder,
	logger *zap.Logger,
	config Config,
) *DispatchService {
	defaults := DefaultConfig()
	if config.HistoryWindow <= 0 {
		config.HistoryWindow = defaults.HistoryWindow
	}
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = defaults.ProviderTimeout
	}
	if processor == nil {
		processor = experiment.Identity{}
	}
	if ledger == nil {
		ledger = metrics.NewLedger()
	}
	if prices == nil {
		prices = metrics.DefaultPriceTable()
	}

	return &DispatchService{
		history:     historyRepo,
		providers:   lookup,
		credentials: credentials,
		processor:   processor,
		ledger:      ledger,
		prices:      prices,
		recorder:    recorder,
		locks:       newUserLocks(),
		config:      config,
		logger:      logger,
	}
}

// Dispatch answers req.Message with every requested provider concurrently.
// Per-provider failures are rendered into the result; only storage failures,
// invalid requests and caller cancellation return an error.
func (s *DispatchService) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	messageID := uuid.New()
	start := time.Now()

	s.logger.Info("starting dispatch",
		zap.String("message_id", messageID.String()),
		zap.String("user_id", req.UserID),
		zap.Int("providers", len(req.Providers)))

	release, err := s.locks.acquire(ctx, req.UserID)
	if err != nil {
		return nil, services.WrapCanceled("dispatch canceled while waiting for conversation", err)
	}
	defer release()

	// Step 1: load history and append the new user turn
	stored, err := s.history.Load(ctx, req.UserID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.WrapCanceled("dispatch canceled", ctx.Err())
		}
		return nil, services.WrapInternal("failed to load history", err)
	}
	updated := models.AppendEntry(stored, models.NewUserEntry(req.Message))

	// Step 2: window the past turns once; the new message always follows as the final turn
	window := history.Window(stored, s.config.HistoryWindow)

	// Step 3: resolve credentials against one snapshot of the defaults
	defaults, err := s.credentials.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("failed to read stored credentials, using environment defaults",
			zap.String("message_id", messageID.String()),
			zap.Error(err))
	}
	resolver := providers.NewCredentialResolver(defaults)
	s.logger.Debug("default credentials resolved",
		zap.String("message_id", messageID.String()),
		zap.Any("configured", resolver.Configured()))

	// Step 4: fan out and join
	slots := s.fanOut(ctx, req, window, resolver)
	if ctx.Err() != nil {
		s.logger.Info("dispatch canceled by caller",
			zap.String("message_id", messageID.String()),
			zap.Error(ctx.Err()))
		return nil, services.WrapCanceled("dispatch canceled", ctx.Err())
	}

	// Step 5: render, account and persist
	result := &DispatchResult{
		MessageID: messageID,
		Responses: make(map[models.ProviderID]string, len(slots)),
		Outcomes:  make(map[models.ProviderID]providers.Outcome, len(slots)),
	}
	records := make([]*models.DispatchRecord, 0, len(slots))
	for i := range slots {
		sl := &slots[i]
		id := sl.config.ProviderID

		result.Outcomes[id] = sl.outcome
		if sl.outcome.OK() {
			result.Responses[id] = s.processor.Apply(sl.outcome.Text)
		} else {
			result.Responses[id] = sl.outcome.Render()
		}

		records = append(records, s.account(messageID, req, sl))

		s.logger.Debug("provider settled",
			zap.String("message_id", messageID.String()),
			zap.String("provider", string(id)),
			zap.Bool("attempted", sl.attempted),
			zap.String("error_kind", string(sl.outcome.Kind())),
			zap.String("detail", sl.outcome.Detail()),
			zap.Duration("latency", sl.latency))
	}

	if err := s.history.Save(ctx, req.UserID, updated); err != nil {
		if ctx.Err() != nil {
			return nil, services.WrapCanceled("dispatch canceled", ctx.Err())
		}
		return nil, services.WrapInternal("failed to save history", err)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(records...); err != nil {
			s.logger.Warn("failed to queue dispatch records",
				zap.String("message_id", messageID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("dispatch completed",
		zap.String("message_id", messageID.String()),
		zap.String("user_id", req.UserID),
		zap.Int("succeeded", countSucceeded(slots)),
		zap.Int("providers", len(slots)),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// SelectResponse records the answer the user picked as an assistant turn
func (s *DispatchService) SelectResponse(ctx context.Context, userID string, provider models.ProviderID, text string) error {
	if strings.TrimSpace(userID) == "" {
		return services.ErrEmptyUserID
	}
	if !provider.IsKnown() {
		return services.NewValidationError("provider", fmt.Sprintf("unknown provider %q", provider))
	}
	if strings.TrimSpace(text) == "" {
		return services.ErrEmptyMessage
	}

	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return services.WrapCanceled("select canceled while waiting for conversation", err)
	}
	defer release()

	stored, err := s.history.Load(ctx, userID)
	if err != nil {
		return services.WrapInternal("failed to load history", err)
	}

	updated := models.AppendEntry(stored, models.NewAssistantEntry(text, provider))
	if err := s.history.Save(ctx, userID, updated); err != nil {
		return services.WrapInternal("failed to save history", err)
	}

	s.logger.Info("response selected",
		zap.String("user_id", userID),
		zap.String("provider", string(provider)),
		zap.Int("history_length", len(updated)))
	return nil
}

// History returns the user's full ordered conversation
func (s *DispatchService) History(ctx context.Context, userID string) ([]models.ConversationEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, services.ErrEmptyUserID
	}

	entries, err := s.history.Load(ctx, userID)
	if err != nil {
		return nil, services.WrapInternal("failed to load history", err)
	}
	return entries, nil
}

// Ledger returns the metrics ledger the service records into
func (s *DispatchService) Ledger() *metrics.Ledger {
	return s.ledger
}

// fanOut launches every configured provider and waits for all of them
func (s *DispatchService) fanOut(
	ctx context.Context,
	req *DispatchRequest,
	window []models.ConversationEntry,
	resolver *providers.CredentialResolver,
) []slot {
	slots := make([]slot, len(req.Providers))

	var g errgroup.Group
	for i, cfg := range req.Providers {
		sl := &slots[i]
		sl.config = cfg
		sl.model = s.modelFor(cfg)

		provider, err := s.providers.GetProvider(cfg.ProviderID)
		if err != nil {
			sl.outcome = providers.Fail(providers.ErrorKindUnconfigured, detailNotAvailable)
			continue
		}

		credential := resolver.Resolve(cfg.ProviderID, cfg.Credential)
		if !credential.Configured() {
			sl.outcome = providers.Fail(providers.ErrorKindUnconfigured, detailNoCredential)
			continue
		}

		sl.attempted = true
		genReq := &providers.GenerateRequest{
			Message:    req.Message,
			History:    window,
			Credential: credential,
			Model:      cfg.Model,
		}
		g.Go(func() error {
			started := time.Now()
			sl.outcome = s.call(ctx, provider, genReq)
			sl.latency = time.Since(started)
			return nil
		})
	}

	// Calls never return errors; a failure in one slot must not cancel the others
	_ = g.Wait()
	return slots
}

// call runs one adapter under its own deadline. The join returns at the
// deadline even if the adapter ignores its context.
func (s *DispatchService) call(ctx context.Context, provider providers.Provider, req *providers.GenerateRequest) providers.Outcome {
	callCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()

	done := make(chan providers.Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("provider panicked",
					zap.String("provider", string(provider.ID())),
					zap.Any("panic", r))
				done <- providers.Failf(providers.ErrorKindUnknown, "panic: %v", r)
			}
		}()
		done <- provider.Generate(callCtx, req)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-callCtx.Done():
		return providers.Fail(providers.ErrorKindTransient, detailTimeout)
	}
}

// account records one slot in the ledger and builds its audit record
func (s *DispatchService) account(messageID uuid.UUID, req *DispatchRequest, sl *slot) *models.DispatchRecord {
	id := sl.config.ProviderID
	record := models.NewDispatchRecord(messageID, req.UserID, id, sl.model).WithRequestID(req.RequestID)

	if !sl.attempted {
		return record.WithFailure(models.DispatchStatusSkipped, string(sl.outcome.Kind()), sl.outcome.Detail())
	}

	cost := s.prices.Cost(id, sl.model, sl.outcome.Usage)
	s.ledger.RecordCall(id)
	s.ledger.RecordCost(id, cost)
	record.WithUsage(sl.outcome.Usage.TotalTokens, cost, sl.latency)

	if !sl.outcome.OK() {
		s.ledger.RecordFailure(id, string(sl.outcome.Kind()))
		record.WithFailure(models.DispatchStatusFailed, string(sl.outcome.Kind()), sl.outcome.Detail())
	}
	return record
}

// modelFor returns the requested model or the provider's configured default
func (s *DispatchService) modelFor(cfg models.ProviderConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return s.config.DefaultModels[cfg.ProviderID]
}

// validateRequest rejects requests that cannot be dispatched
func validateRequest(req *DispatchRequest) error {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return services.ErrEmptyMessage
	}
	if strings.TrimSpace(req.UserID) == "" {
		return services.ErrEmptyUserID
	}
	if len(req.Providers) == 0 {
		return services.ErrNoProviders
	}

	seen := make(map[models.ProviderID]bool, len(req.Providers))
	for _, cfg := range req.Providers {
		if cfg.ProviderID == "" {
			return services.NewValidationError("providers", "provider id cannot be empty")
		}
		if seen[cfg.ProviderID] {
			return services.NewValidationError("providers", fmt.Sprintf("provider %s requested more than once", cfg.ProviderID))
		}
		seen[cfg.ProviderID] = true
	}
	return nil
}

func countSucceeded(slots []slot) int {
	n := 0
	for _, sl := range slots {
		if sl.outcome.OK() {
			n++
		}
	}
	return n
}
