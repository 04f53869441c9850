package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/config"
	"budgetwatch/internal/scheduler"
	"budgetwatch/internal/service"
	"budgetwatch/internal/source"
	"budgetwatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer

	now func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
		now:    time.Now,
	}
}

// deps bundles what a command needs to evaluate budgets.
type deps struct {
	store  *storage.Store
	source source.Source
	alerts storage.AlertStore
	svc    *service.Service
	close  func()
}

func (a *App) clock() func() time.Time {
	if a.now == nil {
		return time.Now
	}
	return a.now
}

func (a *App) newNotifier() alerting.Notifier {
	var notifiers alerting.MultiNotifier
	for _, channel := range a.Config.Alerting.Channels {
		switch strings.ToLower(strings.TrimSpace(channel)) {
		case "log":
			notifiers = append(notifiers, alerting.NewLogNotifier(a.Logger))
		case "telegram":
			if !a.Config.Alerting.Telegram.Enabled {
				a.Logger.Warn().Msg("telegram channel listed but alerting.telegram.enabled is false")
				continue
			}
			cfg := a.Config.Alerting.Telegram
			notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alert channel ignored")
		}
	}
	if len(notifiers) == 0 {
		return nil
	}
	return notifiers
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database.dsn not configured")
	}
	return store, closeStore, nil
}

func (a *App) newSource(store *storage.Store) (source.Source, error) {
	switch a.Config.Source.Kind {
	case config.SourceHTTP:
		cfg := a.Config.Source.HTTP
		return source.NewHTTP(source.HTTPOptions{
			BaseURL:   cfg.BaseURL,
			Token:     cfg.Token,
			Timeout:   cfg.RequestTimeout,
			UserAgent: cfg.UserAgent,
		}, a.Logger), nil
	case config.SourceFile:
		return source.NewFile(a.Config.Source.File.Path, a.Logger)
	default:
		if store == nil {
			return nil, errors.New("source.kind is postgres but database.dsn is not configured")
		}
		return store, nil
	}
}

// open wires store, source, alert store and service. sched may be nil.
func (a *App) open(ctx context.Context, sched *scheduler.Scheduler, notify bool) (*deps, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	rt := &deps{store: store, close: func() {}}
	if closeStore != nil {
		rt.close = closeStore
	}

	rt.source, err = a.newSource(store)
	if err != nil {
		rt.close()
		return nil, err
	}

	if store != nil {
		rt.alerts = store
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; alerts are kept in memory only")
		rt.alerts = storage.NewMemoryAlertStore()
	}

	var notifier alerting.Notifier
	if notify {
		notifier = a.newNotifier()
	}

	var opts []service.Option
	if store != nil {
		opts = append(opts, service.WithLocker(store))
	}
	opts = append(opts, service.WithClock(a.clock()))
	rt.svc = service.New(a.Config, sched, rt.source, rt.alerts, notifier, a.Logger, opts...)
	return rt, nil
}

// Run executes the long-running evaluation service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   true,
	}, a.Logger)

	rt, err := a.open(ctx, sched, true)
	if err != nil {
		return err
	}
	defer rt.close()

	a.Logger.Info().
		Str("source", a.Config.Source.Kind).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting budget evaluation service")
	err = rt.svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("budget evaluation service stopped")
	return nil
}

// ReportOptions configure the report command.
type ReportOptions struct {
	BudgetID string
	OwnerID  string
	AsOf     time.Time
	JSON     bool
	// Persist records newly crossed thresholds and sends notifications.
	Persist bool
}

// UpcomingOptions configure the upcoming command.
type UpcomingOptions struct {
	OwnerID string
	AsOf    time.Time
	Horizon int
	Limit   int
	JSON    bool
}

// AlertListOptions configure the alerts list command.
type AlertListOptions struct {
	BudgetID string
	Status   string
	Limit    int
	JSON     bool
}

// ExportOptions hold parameters for exporting a budget evaluation.
type ExportOptions struct {
	BudgetID      string
	AsOf          time.Time
	PNGPath       string
	CSVPath       string
	MaxCategories int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	BudgetID string
	From     time.Time
	To       time.Time
	DryRun   bool
}

func (a *App) budgetIDs(override string) ([]string, error) {
	ids := a.Config.ResolveBudgets(override)
	if len(ids) == 0 {
		return nil, fmt.Errorf("no budget selected: pass --budget or set engine.budget_ids")
	}
	return ids, nil
}
