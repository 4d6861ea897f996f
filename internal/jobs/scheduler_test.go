package jobs

import (
	"strings"
	"testing"

	"memobot/internal/config"
)

func TestNewRejectsInvalidCron(t *testing.T) {
	cfg := &config.Config{
		Timezone:    "UTC",
		MorningCron: "not a cron",
		EveningCron: "0 20 * * *",
	}
	_, err := New(cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "MORNING_DIGEST_CRON") {
		t.Fatalf("got %v", err)
	}

	cfg.MorningCron = "0 8 * * *"
	cfg.EveningCron = "61 99 * * *"
	_, err = New(cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "EVENING_DIGEST_CRON") {
		t.Fatalf("got %v", err)
	}
}

func TestNewAcceptsStandardExpressions(t *testing.T) {
	cfg := &config.Config{
		Timezone:    "Europe/Kyiv",
		MorningCron: "0 8 * * *",
		EveningCron: "30 20 * * 1-5",
	}
	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Stop()
}
