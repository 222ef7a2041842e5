package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kimera/internal/config"
	"kimera/internal/vault"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "populate", "migrate", "stress", "analyze", "simulate", "status"}
	have := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		have[cmd.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestMigrateRequiresConfirmation(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	migrateYes = false

	err := runMigrate(&cobra.Command{}, nil)
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected confirmation error, got: %v", err)
	}
}

func TestMigrateRequiresTarget(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	migrateYes = true
	migratePostgresURL = ""
	t.Cleanup(func() { migrateYes = false })

	err := runMigrate(&cobra.Command{}, nil)
	if err == nil || !strings.Contains(err.Error(), "no target") {
		t.Fatalf("expected missing-target error, got: %v", err)
	}
}

func TestAnalyzeEmptyVault(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	analyzeOut = ""

	// Create the vault file up front so analyze has something to open.
	cfg := config.DefaultConfig()
	v, err := vault.Open(workspace + "/" + cfg.Vault.DatabasePath)
	if err != nil {
		t.Fatalf("vault.Open failed: %v", err)
	}
	v.Close()

	output := captureOutput(t, func() {
		if err := runAnalyze(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runAnalyze returned error: %v", err)
		}
	})

	if !strings.Contains(output, "VAULT CONTENT ANALYSIS") {
		t.Fatalf("expected analysis header, got: %s", output)
	}
}

func TestSimulateQuickMode(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	simulateMode = "quick"
	simulateSeed = 42
	simulateOut = ""

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	output := captureOutput(t, func() {
		if err := runSimulate(cmd, nil); err != nil {
			t.Fatalf("runSimulate returned error: %v", err)
		}
	})

	if !strings.Contains(output, "TRADING SIMULATION") {
		t.Fatalf("expected simulation header, got: %s", output)
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	fn()

	wOut.Close()
	wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr

	var buf bytes.Buffer
	io.Copy(&buf, rOut)
	io.Copy(&buf, rErr)
	return buf.String()
}
