package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeConfig(t *testing.T, ws, body string) {
	t.Helper()
	dir := filepath.Join(ws, ".kimera")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestInitializeWithoutConfigIsNoop(t *testing.T) {
	ws := t.TempDir()
	defer CloseAll()

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if IsDebugMode() {
		t.Error("expected production mode without config")
	}
	// No logs directory should be created in production mode.
	if _, err := os.Stat(filepath.Join(ws, ".kimera", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not exist in production mode")
	}
}

func TestDebugModeWritesCategoryFile(t *testing.T) {
	ws := t.TempDir()
	defer CloseAll()

	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: debug\n")
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("expected debug mode enabled")
	}

	Vault("stored scar %s in %s", "SCAR_1", "vault_a")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".kimera", "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_vault.log") {
			found = true
			data, _ := os.ReadFile(filepath.Join(ws, ".kimera", "logs", e.Name()))
			if !strings.Contains(string(data), "SCAR_1") {
				t.Errorf("vault log missing message, got: %s", data)
			}
		}
	}
	if !found {
		t.Error("expected a vault category log file")
	}
}

func TestCategoryFilter(t *testing.T) {
	ws := t.TempDir()
	defer CloseAll()

	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: info\n  categories:\n    trading: false\n")
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsCategoryEnabled(CategoryTrading) {
		t.Error("trading category should be disabled")
	}
	if !IsCategoryEnabled(CategoryVault) {
		t.Error("vault category should default to enabled")
	}
}

func TestTimerStops(t *testing.T) {
	ws := t.TempDir()
	defer CloseAll()
	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: debug\n")
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	timer := StartTimer(CategoryEntropy, "measure")
	if d := timer.Stop(); d < 0 {
		t.Errorf("negative duration: %v", d)
	}
}

func TestConcurrentReloadAndLog(t *testing.T) {
	ws := t.TempDir()
	defer CloseAll()
	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: debug\n")
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	cfgPath := filepath.Join(ws, ".kimera", "config.yaml")
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			level := "debug"
			if i%2 == 1 {
				level = "warn"
			}
			body := "logging:\n  debug_mode: true\n  level: " + level + "\n  json_format: true\n"
			if err := os.WriteFile(cfgPath, []byte(body), 0644); err != nil {
				t.Errorf("write config: %v", err)
				return
			}
			if err := ReloadConfig(); err != nil {
				t.Errorf("ReloadConfig: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		l := Get(CategoryEngine)
		for i := 0; i < 200; i++ {
			l.Debug("cycle %d", i)
			l.Info("cycle %d", i)
			l.Error("cycle %d", i)
		}
	}()
	wg.Wait()
}
