package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "d21.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file failed: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults failed: %v", err)
	}
	if cfg.Storage != StorageMemory || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	table := cfg.Quota.Table()
	if table.VotesFor(3) != 2 || table.VotesFor(7) != 3 {
		t.Fatalf("expected default quota brackets, got %+v", cfg.Quota)
	}
	if cfg.MaxCandidateNameBytes != 50 || cfg.RepeatTally != "replay" {
		t.Fatalf("unexpected ledger defaults %+v", cfg)
	}
}

func TestLoadOverlaysFileThenEnvironment(t *testing.T) {
	path := writeConfigFile(t, `
httpAddr: ":9000"
storage: badger
badgerDir: /var/lib/d21
repeatTally: reject
outboxPollInterval: 250ms
quota:
  - min_candidates: 1
    votes: 1
  - min_candidates: 4
    votes: 2
`)
	t.Setenv("D21_HTTP_ADDR", ":9100")
	t.Setenv("D21_TALLY_SWEEP_INTERVAL", "5s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddr != ":9100" {
		t.Fatalf("expected env to win over file, got %q", cfg.HTTPAddr)
	}
	if cfg.Storage != StorageBadger || cfg.BadgerDir != "/var/lib/d21" {
		t.Fatalf("expected badger storage from file, got %+v", cfg)
	}
	if cfg.RepeatTally != "reject" || cfg.OutboxPollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected file values %+v", cfg)
	}
	if cfg.TallySweepInterval != 5*time.Second {
		t.Fatalf("expected sweep interval from env, got %s", cfg.TallySweepInterval)
	}
	if cfg.Quota.Table().VotesFor(3) != 1 || cfg.Quota.Table().VotesFor(4) != 2 {
		t.Fatalf("expected quota from file, got %+v", cfg.Quota)
	}
	if cfg.ServiceName != "d21-ledger" {
		t.Fatalf("expected untouched default service name, got %q", cfg.ServiceName)
	}
}

func TestLoadQuotaFromEnvironment(t *testing.T) {
	t.Setenv("D21_QUOTA", "1:2, 5:4")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Quota.Table().VotesFor(4) != 2 || cfg.Quota.Table().VotesFor(5) != 4 {
		t.Fatalf("unexpected quota %+v", cfg.Quota)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend":    {"D21_STORAGE": "cassandra"},
		"postgres needs dsn": {"D21_STORAGE": "postgres"},
		"shrinking quota":    {"D21_QUOTA": "1:3,7:2"},
		"quota not from one": {"D21_QUOTA": "2:2"},
		"bad quota pair":     {"D21_QUOTA": "1-2"},
		"bad repeat policy":  {"D21_REPEAT_TALLY": "ignore"},
		"zero poll interval": {"D21_OUTBOX_POLL_INTERVAL": "0s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for key, value := range env {
				t.Setenv(key, value)
			}
			if _, err := Load(""); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Fatalf("expected read error, got %v", err)
	}
}
