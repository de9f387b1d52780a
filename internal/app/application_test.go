package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yorktechapps/pixelplace/internal/app/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Port:     3000,
		AuthURL:  "https://formbar.example",
		Store:    "memory",
		LogLevel: "error",
	}
	cfg.Normalize()
	return cfg
}

func TestApplicationLifecycle(t *testing.T) {
	a, err := New(testConfig(), Stores{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestApplicationServesCanvas(t *testing.T) {
	a, err := New(testConfig(), Stores{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(ctx)

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/canvas.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestPurchasesDisabledWithoutAPIKey(t *testing.T) {
	a, err := New(testConfig(), Stores{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	p, err := a.Ledger.Register(context.Background(), 42, "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := a.Purchases.Purchase(context.Background(), p.ID, 10, "1234"); err == nil {
		t.Fatal("purchase must fail without a settlement client")
	}
}
