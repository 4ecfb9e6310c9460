package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, root string, rel string, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestCollectViolationsFlagsLayerBreaks(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "contexts/governance/election-ledger/domain/entities/ok.go", `package entities

import (
	"time"

	"golang.org/x/crypto/sha3"
)
`)
	writeSource(t, root, "contexts/governance/election-ledger/domain/services/bad.go", `package services

import "d21ledger/contexts/governance/election-ledger/adapters/memory"
`)
	writeSource(t, root, "contexts/governance/election-ledger/application/commands/bad.go", `package commands

import "d21ledger/internal/platform/db"
`)
	writeSource(t, root, "contexts/governance/election-ledger/application/commands/ok_test.go", `package commands

import "d21ledger/contexts/governance/election-ledger/adapters/memory"
`)
	writeSource(t, root, "contexts/governance/election-ledger/ports/ports.go", `package ports

import "d21ledger/internal/shared/events"
`)
	writeSource(t, root, "contexts/governance/other-ledger/domain/x.go", `package domain

import "d21ledger/contexts/governance/election-ledger/domain/entities"
`)

	t.Chdir(root)
	violations := collectViolations("contexts")

	rules := map[string]int{}
	for _, v := range violations {
		rules[v.Rule]++
	}
	if rules["domain must not import adapters"] != 1 {
		t.Fatalf("expected one adapter violation, got %+v", violations)
	}
	if rules["application must not import runtime infrastructure"] != 1 {
		t.Fatalf("expected one infrastructure violation, got %+v", violations)
	}
	if rules["cross-module imports are forbidden"] != 1 {
		t.Fatalf("expected one cross-module violation, got %+v", violations)
	}
	for _, v := range violations {
		if v.File == "contexts/governance/election-ledger/domain/entities/ok.go" ||
			v.File == "contexts/governance/election-ledger/ports/ports.go" {
			t.Fatalf("unexpected violation %+v", v)
		}
	}
}
