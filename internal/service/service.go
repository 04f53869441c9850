package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/config"
	"budgetwatch/internal/recurrence"
	"budgetwatch/internal/report"
	"budgetwatch/internal/scheduler"
	"budgetwatch/internal/source"
	"budgetwatch/internal/storage"
	"budgetwatch/internal/variance"
)

// ErrNoAlertStore is returned by alert operations when no store is wired.
var ErrNoAlertStore = errors.New("service: alert store not configured")

const (
	periodAlertsLimit        = 500
	occurrencesPerObligation = 8
)

// Service orchestrates record fetching, evaluation, alert persistence and notification.
type Service struct {
	scheduler *scheduler.Scheduler
	source    source.Source
	alerts    storage.AlertStore
	notifier  alerting.Notifier
	locker    storage.AdvisoryLocker
	logger    zerolog.Logger

	thresholds alerting.Thresholds
	alertsOn   bool
	channels   []string
	ownerID    string
	budgetIDs  []string
	horizon    int
	limit      int
	retention  time.Duration
	lockKey    int64
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocker sets the advisory locker used by Tick.
func WithLocker(locker storage.AdvisoryLocker) Option {
	return func(s *Service) { s.locker = locker }
}

// New constructs the evaluation service. alerts and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, src source.Source, alerts storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		scheduler:  sched,
		source:     src,
		alerts:     alerts,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		thresholds: cfg.Alerting.Thresholds,
		alertsOn:   cfg.Alerting.Enabled,
		channels:   cfg.Alerting.Channels,
		ownerID:    cfg.Engine.OwnerID,
		budgetIDs:  cfg.Engine.BudgetIDs,
		horizon:    cfg.Engine.UpcomingHorizonDays,
		limit:      cfg.Engine.UpcomingLimit,
		retention:  cfg.Alerting.Retention,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
		now:        time.Now,
	}
	if l, ok := src.(storage.AdvisoryLocker); ok {
		s.locker = l
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request selects what Evaluate looks at.
type Request struct {
	BudgetID string
	// OwnerID scopes obligations; the budget's owner is used when empty.
	OwnerID string
	// AsOf is the evaluation instant; zero means now. Transactions after AsOf are ignored.
	AsOf time.Time
	// DryRun evaluates alerts without persisting or sending them.
	DryRun bool
	// Quiet persists new alerts without sending notifications.
	Quiet bool
	// Thresholds overrides the configured levels when non-nil.
	Thresholds *alerting.Thresholds
}

// Result is one budget evaluation.
type Result struct {
	Budget      variance.Budget             `json:"budget"`
	AsOf        time.Time                   `json:"as_of"`
	Comparisons []variance.ComparisonResult `json:"comparisons"`
	Projections []recurrence.Projection     `json:"projections"`
	Upcoming    []recurrence.Projection     `json:"upcoming"`
	NewAlerts   []alerting.Event            `json:"new_alerts"`
	Alerts      []alerting.Event            `json:"alerts"`
	Summary     report.Summary              `json:"summary"`
	Issues      []recurrence.RecordIssue    `json:"issues"`
}

type inputs struct {
	budget       variance.Budget
	transactions []variance.Transaction
	obligations  []recurrence.Obligation
	fired        map[string]alerting.Fired
	existing     []alerting.Event
}

// Evaluate fetches every input for one budget, runs the engine and raises any
// newly crossed alert thresholds. A fetch failure aborts the evaluation.
func (s *Service) Evaluate(ctx context.Context, req Request) (Result, error) {
	if req.BudgetID == "" {
		return Result{}, fmt.Errorf("budget id is required")
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = asOf.UTC()

	in, err := s.fetch(ctx, req, asOf)
	if err != nil {
		return Result{}, err
	}

	comparisons, issues := variance.Compare(in.budget.Allocations, in.transactions)
	projections, projIssues := recurrence.Project(in.obligations, asOf)
	issues = append(issues, projIssues...)

	res := Result{
		Budget:      in.budget,
		AsOf:        asOf,
		Comparisons: comparisons,
		Projections: projections,
		Upcoming:    recurrence.Schedule(recurrence.Upcoming(projections, s.horizon, s.limit), asOf, s.horizon, occurrencesPerObligation),
		Alerts:      in.existing,
		Issues:      issues,
	}

	if s.alertsOn && alertable(in.budget) {
		thresholds := s.thresholds
		if req.Thresholds != nil {
			thresholds = *req.Thresholds
		}
		meta := alerting.Meta{BudgetID: in.budget.ID, PeriodKey: in.budget.PeriodKey(), PeriodEnd: in.budget.PeriodEnd, Now: asOf}
		candidates := alerting.EvaluateAll(comparisons, thresholds, in.fired, meta)
		res.NewAlerts = s.raise(ctx, in.budget, candidates, req)
		merged := make([]alerting.Event, 0, len(res.NewAlerts)+len(res.Alerts))
		res.Alerts = append(append(merged, res.NewAlerts...), res.Alerts...)
	}
	if res.NewAlerts == nil {
		res.NewAlerts = []alerting.Event{}
	}

	res.Summary = report.Summarize(report.Input{
		Comparisons: res.Comparisons,
		Alerts:      res.Alerts,
		Projections: res.Projections,
		Issues:      res.Issues,
	})

	for _, issue := range issues {
		s.logger.Warn().Str("budget_id", in.budget.ID).Str("kind", issue.Kind).Str("record_id", issue.RecordID).Msg(issue.Message)
	}
	s.logger.Info().
		Str("budget_id", in.budget.ID).
		Time("as_of", asOf).
		Int("categories", len(comparisons)).
		Int("new_alerts", len(res.NewAlerts)).
		Str("utilisation_pct", res.Summary.UtilisationPct.StringFixed(1)).
		Msg("budget evaluated")

	return res, nil
}

func alertable(b variance.Budget) bool {
	return b.Status == "" || b.Status == variance.BudgetActive
}

func (s *Service) fetch(ctx context.Context, req Request, asOf time.Time) (inputs, error) {
	var in inputs

	src, err := source.Pin(s.source)
	if err != nil {
		return in, fmt.Errorf("pin source: %w", err)
	}
	budget, err := src.GetBudget(ctx, req.BudgetID)
	if err != nil {
		return in, fmt.Errorf("fetch budget: %w", err)
	}
	in.budget = budget

	owner := req.OwnerID
	if owner == "" {
		owner = budget.OwnerID
	}
	cutoff := budget.PeriodEnd
	if asOf.Before(cutoff) {
		cutoff = asOf
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if !cutoff.After(budget.PeriodStart) {
			in.transactions = []variance.Transaction{}
			return nil
		}
		txns, err := src.ListTransactions(gctx, budget.OwnerID, budget.PeriodStart, cutoff)
		if err != nil {
			return fmt.Errorf("fetch transactions: %w", err)
		}
		in.transactions = variance.FilterPeriod(txns, budget.PeriodStart, cutoff)
		return nil
	})
	g.Go(func() error {
		obligations, err := src.ListObligations(gctx, owner)
		if err != nil {
			return fmt.Errorf("fetch obligations: %w", err)
		}
		in.obligations = obligations
		return nil
	})
	if s.alerts != nil {
		g.Go(func() error {
			fired, err := s.alerts.ListFiredThresholds(gctx, budget.ID, budget.PeriodKey())
			if err != nil {
				return fmt.Errorf("fetch fired thresholds: %w", err)
			}
			in.fired = fired
			return nil
		})
		g.Go(func() error {
			existing, err := s.alerts.ListAlerts(gctx, storage.AlertFilter{BudgetID: budget.ID, Limit: periodAlertsLimit})
			if err != nil {
				return fmt.Errorf("fetch alerts: %w", err)
			}
			in.existing = inPeriod(existing, budget.PeriodKey())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return inputs{}, err
	}
	return in, nil
}

func inPeriod(events []alerting.Event, periodKey string) []alerting.Event {
	out := make([]alerting.Event, 0, len(events))
	for _, evt := range events {
		if evt.PeriodKey == periodKey {
			out = append(out, evt)
		}
	}
	return out
}

// raise persists and dispatches candidate alerts, returning those that were new.
func (s *Service) raise(ctx context.Context, budget variance.Budget, candidates []alerting.Event, req Request) []alerting.Event {
	raised := make([]alerting.Event, 0, len(candidates))
	for _, evt := range candidates {
		if req.DryRun {
			raised = append(raised, evt)
			continue
		}
		if s.alerts != nil {
			inserted, err := s.alerts.InsertAlert(ctx, evt)
			if err != nil {
				s.logger.Error().Err(err).Str("budget_id", budget.ID).Str("category", evt.Category).Msg("failed to persist alert")
				continue
			}
			if !inserted {
				continue
			}
		}
		raised = append(raised, evt)

		if req.Quiet || s.notifier == nil {
			continue
		}
		note := alerting.Notification{Event: evt, BudgetName: budget.Name, Channels: s.channels}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("alert_id", evt.ID).Msg("failed to dispatch alert")
		}
	}
	return raised
}

// Upcoming projects obligations for an owner without evaluating a budget.
func (s *Service) Upcoming(ctx context.Context, ownerID string, asOf time.Time, horizon, limit int) ([]recurrence.Projection, []recurrence.RecordIssue, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	if horizon <= 0 {
		horizon = s.horizon
	}
	if limit <= 0 {
		limit = s.limit
	}

	obligations, err := s.source.ListObligations(ctx, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch obligations: %w", err)
	}
	projections, issues := recurrence.Project(obligations, asOf.UTC())
	upcoming := recurrence.Upcoming(projections, horizon, limit)
	return recurrence.Schedule(upcoming, asOf.UTC(), horizon, occurrencesPerObligation), issues, nil
}

// Run begins the scheduled evaluation loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.Tick)
}

// Tick evaluates every configured budget once, then prunes old resolved alerts.
func (s *Service) Tick(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("at", at).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	ids, err := s.targetBudgets(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, id := range ids {
		if _, err := s.Evaluate(ctx, Request{BudgetID: id, OwnerID: s.ownerID, AsOf: at}); err != nil {
			failed++
			s.logger.Error().Err(err).Str("budget_id", id).Msg("budget evaluation failed")
		}
	}

	s.prune(ctx, at)

	if failed > 0 {
		return fmt.Errorf("%d of %d budget evaluations failed", failed, len(ids))
	}
	return nil
}

func (s *Service) targetBudgets(ctx context.Context) ([]string, error) {
	if len(s.budgetIDs) > 0 {
		return s.budgetIDs, nil
	}
	budgets, err := s.source.ListBudgets(ctx, s.ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	ids := make([]string, 0, len(budgets))
	for _, b := range budgets {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (s *Service) prune(ctx context.Context, at time.Time) {
	if s.alerts == nil || s.retention <= 0 {
		return
	}
	deleted, err := s.alerts.DeleteAlertsBefore(ctx, at.Add(-s.retention))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to prune alerts")
		return
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("pruned resolved alerts")
	}
}

// ListAlerts returns stored alerts matching filter.
func (s *Service) ListAlerts(ctx context.Context, filter storage.AlertFilter) ([]alerting.Event, error) {
	if s.alerts == nil {
		return nil, ErrNoAlertStore
	}
	return s.alerts.ListAlerts(ctx, filter)
}

// Acknowledge moves an active alert to acknowledged.
func (s *Service) Acknowledge(ctx context.Context, id string) (alerting.Event, error) {
	return s.transition(ctx, id, (*alerting.Event).Acknowledge)
}

// Resolve closes an active or acknowledged alert.
func (s *Service) Resolve(ctx context.Context, id string) (alerting.Event, error) {
	return s.transition(ctx, id, (*alerting.Event).Resolve)
}

func (s *Service) transition(ctx context.Context, id string, apply func(*alerting.Event, time.Time) error) (alerting.Event, error) {
	if s.alerts == nil {
		return alerting.Event{}, ErrNoAlertStore
	}
	evt, err := s.alerts.GetAlert(ctx, id)
	if err != nil {
		return alerting.Event{}, err
	}
	from := evt.Status
	if err := apply(&evt, s.now().UTC()); err != nil {
		return alerting.Event{}, err
	}
	if err := s.alerts.UpdateAlertStatus(ctx, evt, from); err != nil {
		return alerting.Event{}, err
	}
	s.logger.Info().Str("alert_id", id).Str("from", string(from)).Str("to", string(evt.Status)).Msg("alert status changed")
	return evt, nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
