package store

import (
	"errors"
	"testing"

	"github.com/Pranav1703/queuectl/internal/model"
)

func TestConfigDefaultsMaterializeOnFirstRead(t *testing.T) {
	s := newTestStore(t)
	cfg := s.Config()

	if got := cfg.MaxRetries(); got != 3 {
		t.Fatalf("expected default max_retries=3, got %d", got)
	}
	if got := cfg.BackoffBase(); got != 2 {
		t.Fatalf("expected default backoff_base=2, got %v", got)
	}

	all, err := cfg.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	for _, key := range []string{"max_retries", "backoff_base", "poll_interval_ms", "default_timeout_secs"} {
		if _, ok := all[key]; !ok {
			t.Fatalf("expected default key %s to be materialized", key)
		}
	}
}

func TestConfigSetOverridesDefault(t *testing.T) {
	s := newTestStore(t)
	cfg := s.Config()

	if err := cfg.SetTyped("max_retries", "7"); err != nil {
		t.Fatalf("SetTyped: %v", err)
	}
	if got := cfg.MaxRetries(); got != 7 {
		t.Fatalf("expected overridden max_retries=7, got %d", got)
	}
}

func TestConfigSetTypedRejectsNonNumeric(t *testing.T) {
	s := newTestStore(t)
	cfg := s.Config()

	err := cfg.SetTyped("max_retries", "not-a-number")
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}

	err = cfg.SetTyped("backoff_base", "0.5")
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput for backoff_base<=1, got %v", err)
	}
}

func TestConfigUnknownKeysAreAcceptedButIgnored(t *testing.T) {
	s := newTestStore(t)
	cfg := s.Config()

	if err := cfg.Set("some_future_key", "42"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := cfg.Get("some_future_key")
	if err != nil || !ok || v != "42" {
		t.Fatalf("expected roundtrip of unknown key, got v=%q ok=%v err=%v", v, ok, err)
	}
}
