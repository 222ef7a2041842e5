package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"kimera/internal/printer"
)

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running server",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "http://localhost:8001", "Base URL of the running server")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(statusURL + "/system/health")
	if err != nil {
		printer.Error("Server unreachable at %s", statusURL)
		return err
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		resp.Body.Close()
		return fmt.Errorf("decode health: %w", err)
	}
	resp.Body.Close()

	resp, err = client.Get(statusURL + "/system/status")
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var status struct {
		Name        string           `json:"name"`
		Version     string           `json:"version"`
		Uptime      string           `json:"uptime"`
		Tables      map[string]int64 `json:"tables"`
		VaultAScars int              `json:"vault_a_scars"`
		VaultBScars int              `json:"vault_b_scars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	printer.Header(fmt.Sprintf("%s %s", status.Name, status.Version))
	printer.KV("health", health.Status)
	printer.KV("uptime", status.Uptime)
	printer.KV("vault_a scars", status.VaultAScars)
	printer.KV("vault_b scars", status.VaultBScars)

	printer.Subheader("Tables")
	names := make([]string, 0, len(status.Tables))
	for name := range status.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		printer.KV(name, status.Tables[name])
	}

	if health.Status != "healthy" {
		printer.Warning("Server reports %s", health.Status)
	}
	return nil
}
