package source

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"budgetwatch/internal/recurrence"
	"budgetwatch/internal/variance"
)

// Snapshot is the content of a snapshot file.
type Snapshot struct {
	Budgets      []variance.Budget       `mapstructure:"budgets"`
	Transactions []variance.Transaction  `mapstructure:"transactions"`
	Obligations  []recurrence.Obligation `mapstructure:"obligations"`
}

// File serves records from a YAML or JSON snapshot. The file is re-read when
// its modification time changes.
type File struct {
	path   string
	logger zerolog.Logger

	mu       sync.Mutex
	snapshot Snapshot
	modTime  time.Time
	loaded   bool
}

// NewFile reads the snapshot at path.
func NewFile(path string, logger zerolog.Logger) (*File, error) {
	f := &File{
		path:   path,
		logger: logger.With().Str("component", "file_source").Str("path", path).Logger(),
	}
	if _, err := f.current(); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadSnapshot decodes a snapshot file without caching it.
func LoadSnapshot(path string) (Snapshot, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := v.Unmarshal(&snap, snapshotDecodeHook()); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.Obligations = normalizeObligations(snap.Obligations)
	return snap, nil
}

// Snapshot returns the current file content.
func (f *File) Snapshot() (Snapshot, error) {
	return f.current()
}

// Pin returns a view over the snapshot as currently loaded. Reads through the
// view never observe a later reload.
func (f *File) Pin() (Source, error) {
	snap, err := f.current()
	if err != nil {
		return nil, err
	}
	return &View{snap: snap}, nil
}

// GetBudget returns the budget with the given id.
func (f *File) GetBudget(ctx context.Context, id string) (variance.Budget, error) {
	snap, err := f.current()
	if err != nil {
		return variance.Budget{}, err
	}
	return (&View{snap: snap}).GetBudget(ctx, id)
}

// ListBudgets returns active budgets. A missing status counts as active.
func (f *File) ListBudgets(ctx context.Context, ownerID string) ([]variance.Budget, error) {
	snap, err := f.current()
	if err != nil {
		return nil, err
	}
	return (&View{snap: snap}).ListBudgets(ctx, ownerID)
}

// ListTransactions returns transactions in [from, to).
func (f *File) ListTransactions(ctx context.Context, ownerID string, from, to time.Time) ([]variance.Transaction, error) {
	snap, err := f.current()
	if err != nil {
		return nil, err
	}
	return (&View{snap: snap}).ListTransactions(ctx, ownerID, from, to)
}

// ListObligations returns obligations belonging to ownerID.
func (f *File) ListObligations(ctx context.Context, ownerID string) ([]recurrence.Obligation, error) {
	snap, err := f.current()
	if err != nil {
		return nil, err
	}
	return (&View{snap: snap}).ListObligations(ctx, ownerID)
}

// View serves one fixed snapshot.
type View struct {
	snap Snapshot
}

func (v *View) GetBudget(_ context.Context, id string) (variance.Budget, error) {
	for _, b := range v.snap.Budgets {
		if b.ID == id {
			return b, nil
		}
	}
	return variance.Budget{}, fmt.Errorf("budget %s: %w", id, ErrNotFound)
}

func (v *View) ListBudgets(_ context.Context, ownerID string) ([]variance.Budget, error) {
	out := make([]variance.Budget, 0, len(v.snap.Budgets))
	for _, b := range v.snap.Budgets {
		if !ownerMatches(ownerID, b.OwnerID) {
			continue
		}
		if b.Status != "" && b.Status != variance.BudgetActive {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (v *View) ListTransactions(_ context.Context, ownerID string, from, to time.Time) ([]variance.Transaction, error) {
	owned := make([]variance.Transaction, 0, len(v.snap.Transactions))
	for _, t := range v.snap.Transactions {
		if ownerMatches(ownerID, t.OwnerID) {
			owned = append(owned, t)
		}
	}
	out := variance.FilterPeriod(owned, from, to)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (v *View) ListObligations(_ context.Context, ownerID string) ([]recurrence.Obligation, error) {
	out := make([]recurrence.Obligation, 0, len(v.snap.Obligations))
	for _, o := range v.snap.Obligations {
		if ownerMatches(ownerID, o.OwnerID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *File) current() (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	modTime, err := statModTime(f.path)
	if err != nil {
		return Snapshot{}, err
	}
	if f.loaded && modTime.Equal(f.modTime) {
		return f.snapshot, nil
	}

	snap, err := LoadSnapshot(f.path)
	if err != nil {
		return Snapshot{}, err
	}
	f.snapshot = snap
	f.modTime = modTime
	f.loaded = true
	f.logger.Debug().
		Int("budgets", len(snap.Budgets)).
		Int("transactions", len(snap.Transactions)).
		Int("obligations", len(snap.Obligations)).
		Msg("snapshot loaded")
	return snap, nil
}

func statModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat snapshot: %w", err)
	}
	return info.ModTime(), nil
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func snapshotDecodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			decimalHook,
			timeHook,
		)
	}
}

func decimalHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	}
	return data, nil
}

func timeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType || from.Kind() != reflect.String {
		return data, nil
	}
	raw := strings.TrimSpace(reflect.ValueOf(data).String())
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("parse time %q: expected RFC3339 or YYYY-MM-DD", raw)
}

var _ Source = (*File)(nil)
