package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func sampleNotification() Notification {
	return Notification{
		BudgetName: "Q1 Operations",
		Channels:   []string{"telegram"},
		Event: Event{
			ID:         "evt-1",
			BudgetID:   "b1",
			Category:   "Travel",
			PeriodKey:  "2026-01-01",
			Threshold:  Level90,
			Percentage: decimal.NewFromInt(95),
			Budgeted:   decimal.NewFromInt(1000),
			Actual:     decimal.NewFromInt(950),
			Severity:   SeverityCritical,
			Status:     StatusActive,
			CreatedAt:  time.Date(2026, 1, 20, 8, 0, 0, 0, time.UTC),
		},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "Category: Travel") {
		t.Fatalf("text should mention the category, got %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("ok=false should return an error")
	}
}

func TestTelegramNotifierHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("502 should return an error")
	}
}

func TestRenderMessage(t *testing.T) {
	msg := RenderMessage(sampleNotification())
	for _, want := range []string{"[Budget Alert] CRITICAL", "Budget: Q1 Operations", "Spent: 950.00 of 1000.00 (95.0%)", "Threshold: 90%"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(testLogger()).Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("log notifier should not fail: %v", err)
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(context.Context, Notification) error {
	c.calls++
	return c.err
}

func TestMultiNotifierContinuesPastFailures(t *testing.T) {
	failing := &countingNotifier{err: errors.New("down")}
	healthy := &countingNotifier{}

	err := MultiNotifier{failing, healthy}.Notify(context.Background(), sampleNotification())
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if failing.calls != 1 || healthy.calls != 1 {
		t.Fatalf("every notifier should be called once, got %d and %d", failing.calls, healthy.calls)
	}

	if err := (MultiNotifier{healthy}).Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
