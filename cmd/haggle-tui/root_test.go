package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"haggle/internal/archive"
	"haggle/internal/negotiation"
	"haggle/internal/transcript"
)

func executeRoot(t *testing.T, args ...string) (appConfig, string, error) {
	t.Helper()
	var got appConfig
	var out bytes.Buffer
	cmd := buildRootCommand(&rootFlags{}, func(cfg appConfig) error {
		got = cfg
		return nil
	})
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return got, out.String(), err
}

func TestResolveConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "haggle.yaml")
	yaml := "service:\n  base_url: http://file.local\n  timeout_seconds: 30\nproduct:\n  name: Lamp\n  list_price: 40\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HAGGLE_TIMEOUT", "45")
	t.Setenv("HAGGLE_PRODUCT_NAME", "Desk Lamp")

	cfg, _, err := executeRoot(t, "--config", path, "--base-url", "http://flag.local:8000", "--alt-screen=false")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if cfg.Service.BaseURL != "http://flag.local:8000" {
		t.Fatalf("expected flag to win for base url, got %q", cfg.Service.BaseURL)
	}
	if cfg.Service.TimeoutSeconds != 45 {
		t.Fatalf("expected env to beat file for timeout, got %d", cfg.Service.TimeoutSeconds)
	}
	if cfg.Product.Name != "Desk Lamp" || cfg.Product.ListPrice != 40 {
		t.Fatalf("unexpected product %#v", cfg.Product)
	}
	if cfg.Product.ID != "1" || cfg.Product.Currency != "₹" {
		t.Fatalf("expected defaults for unset product fields, got %#v", cfg.Product)
	}
	if cfg.altScreen {
		t.Fatalf("expected alt screen disabled")
	}
}

func TestResolveConfigRejectsBadURL(t *testing.T) {
	if _, _, err := executeRoot(t, "--base-url", "ftp://nope"); err == nil {
		t.Fatalf("expected invalid base url to fail")
	}
	if _, _, err := executeRoot(t, "--list-price", "0"); err == nil {
		t.Fatalf("expected zero list price to fail")
	}
}

func TestHistoryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	store, err := archive.Open(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	closedAt := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	id, err := store.RecordClosed(context.Background(), negotiation.Event{
		Kind: negotiation.EventSessionClosed,
		Session: negotiation.Session{
			ID:          "sess-42",
			UserID:      "alice",
			Product:     negotiation.Product{ID: "1", Name: "Lamp", ListPrice: 1000, Currency: "₹"},
			CloseReason: negotiation.ReasonDealMade,
			StartedAt:   closedAt.Add(-time.Minute),
			ClosedAt:    closedAt,
		},
		Entries: []transcript.Entry{
			{Speaker: transcript.Counterparty, Content: "Welcome to negotiation! Please enter your offer.", CreatedAt: closedAt},
			{Speaker: transcript.Customer, Content: "₹950", CreatedAt: closedAt},
		},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = store.Close()

	_, out, err := executeRoot(t, "history", "--archive-db", path)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{id, "alice", "deal", "Lamp (₹1000)", "2 entries", "sess-42"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in history output:\n%s", want, out)
		}
	}

	_, out, err = executeRoot(t, "history", "--archive-db", path, "--show", id)
	if err != nil {
		t.Fatalf("history --show: %v", err)
	}
	if !strings.Contains(out, "You: ₹950") || !strings.Contains(out, "Seller: Welcome") {
		t.Fatalf("unexpected transcript output:\n%s", out)
	}
}

func TestHistoryNeedsArchive(t *testing.T) {
	t.Setenv("HAGGLE_ARCHIVE_DB", "")
	if _, _, err := executeRoot(t, "history"); err == nil {
		t.Fatalf("expected history without archive to fail")
	}
}
