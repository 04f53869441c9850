// Package source supplies budgets, transactions and recurring obligations to
// the evaluation service from PostgreSQL, a REST API or a snapshot file.
package source

import (
	"context"
	"errors"
	"time"

	"budgetwatch/internal/recurrence"
	"budgetwatch/internal/variance"
)

// ErrNotFound is returned when a requested budget does not exist.
var ErrNotFound = errors.New("source: not found")

// Source reads the records the engine evaluates.
type Source interface {
	GetBudget(ctx context.Context, id string) (variance.Budget, error)
	// ListBudgets returns active budgets; an empty ownerID matches every owner.
	ListBudgets(ctx context.Context, ownerID string) ([]variance.Budget, error)
	// ListTransactions returns transactions with OccurredAt in [from, to).
	ListTransactions(ctx context.Context, ownerID string, from, to time.Time) ([]variance.Transaction, error)
	ListObligations(ctx context.Context, ownerID string) ([]recurrence.Obligation, error)
}

// Pinner is implemented by sources whose content can change between calls.
// Pin returns a Source that answers every read from one consistent version.
type Pinner interface {
	Pin() (Source, error)
}

// Pin returns src pinned to its current content when it supports pinning,
// or src itself.
func Pin(src Source) (Source, error) {
	if p, ok := src.(Pinner); ok {
		return p.Pin()
	}
	return src, nil
}

func normalizeObligations(obligations []recurrence.Obligation) []recurrence.Obligation {
	for i := range obligations {
		obligations[i].Frequency = recurrence.ParseFrequency(string(obligations[i].Frequency))
		if obligations[i].Kind == "" {
			obligations[i].Kind = recurrence.KindSubscription
		}
	}
	return obligations
}

func ownerMatches(want, got string) bool {
	return want == "" || want == got
}
