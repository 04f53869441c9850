package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"budgetwatch/internal/recurrence"
	"budgetwatch/internal/variance"
)

const (
	budgetsPath      = "/budgets"
	transactionsPath = "/transactions"
	obligationsPath  = "/obligations"
)

// HTTPOptions parameterise the REST source.
type HTTPOptions struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// HTTP reads records from the dashboard's JSON API.
type HTTP struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTP constructs a REST source.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTP{
		opts:    opts,
		logger:  logger.With().Str("component", "http_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// GetBudget fetches one budget with its allocations.
func (h *HTTP) GetBudget(ctx context.Context, id string) (variance.Budget, error) {
	var budget variance.Budget
	if err := h.get(ctx, budgetsPath+"/"+url.PathEscape(id), nil, &budget); err != nil {
		return variance.Budget{}, fmt.Errorf("get budget %s: %w", id, err)
	}
	return budget, nil
}

// ListBudgets fetches active budgets.
func (h *HTTP) ListBudgets(ctx context.Context, ownerID string) ([]variance.Budget, error) {
	query := url.Values{"status": {string(variance.BudgetActive)}}
	if ownerID != "" {
		query.Set("owner_id", ownerID)
	}
	var budgets []variance.Budget
	if err := h.get(ctx, budgetsPath, query, &budgets); err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

// ListTransactions fetches transactions in [from, to). Records outside the
// window are dropped even if the server returns them.
func (h *HTTP) ListTransactions(ctx context.Context, ownerID string, from, to time.Time) ([]variance.Transaction, error) {
	query := url.Values{
		"from": {from.UTC().Format(time.RFC3339)},
		"to":   {to.UTC().Format(time.RFC3339)},
	}
	if ownerID != "" {
		query.Set("owner_id", ownerID)
	}
	var txns []variance.Transaction
	if err := h.get(ctx, transactionsPath, query, &txns); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	kept := variance.FilterPeriod(txns, from, to)
	if dropped := len(txns) - len(kept); dropped > 0 {
		h.logger.Debug().Int("dropped", dropped).Msg("server returned transactions outside the window")
	}
	return kept, nil
}

// ListObligations fetches recurring obligations.
func (h *HTTP) ListObligations(ctx context.Context, ownerID string) ([]recurrence.Obligation, error) {
	query := url.Values{}
	if ownerID != "" {
		query.Set("owner_id", ownerID)
	}
	var obligations []recurrence.Obligation
	if err := h.get(ctx, obligationsPath, query, &obligations); err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	return normalizeObligations(obligations), nil
}

func (h *HTTP) get(ctx context.Context, path string, query url.Values, out any) error {
	if h.baseURL == "" {
		return fmt.Errorf("base url is required")
	}

	endpoint := h.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "budgetwatch/1.0")
	}
	if h.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.opts.Token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return parseHTTPError(resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("api error (%d)", status)
}

var _ Source = (*HTTP)(nil)
