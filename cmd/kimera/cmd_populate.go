package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"kimera/internal/printer"
)

var (
	populateURL   string
	populateCycle bool
)

// Seed knowledge: paired statements that pull in opposite semantic
// directions, so the contradiction engine has material to work with.
var seedEchoforms = []string{
	"(observes (market bullish momentum))",
	"(observes (market bearish momentum))",
	"(asserts (system stable entropy))",
	"(asserts (system volatile entropy))",
	"(believes (agent rational actor))",
	"(believes (agent emotional actor))",
	"(claims (price overvalued asset))",
	"(claims (price undervalued asset))",
	"(predicts (trend upward continuation))",
	"(predicts (trend downward reversal))",
}

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Seed a running server with sample geoids",
	Long: `Posts a set of sample echoforms to a running Kimera SWM server and
optionally triggers a cognitive cycle afterwards.`,
	RunE: runPopulate,
}

func init() {
	populateCmd.Flags().StringVar(&populateURL, "url", "http://localhost:8001", "Base URL of the running server")
	populateCmd.Flags().BoolVar(&populateCycle, "cycle", false, "Trigger a cognitive cycle after seeding")
}

func runPopulate(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 30 * time.Second}

	printer.Header("Populating " + populateURL)
	created := 0
	for _, form := range seedEchoforms {
		body, err := json.Marshal(map[string]any{
			"echoform_text": form,
			"metadata":      map[string]any{"source": "populate"},
		})
		if err != nil {
			return err
		}
		resp, err := client.Post(populateURL+"/geoids", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post geoid: %w", err)
		}
		if resp.StatusCode != http.StatusCreated {
			resp.Body.Close()
			return fmt.Errorf("server rejected %q with status %d", form, resp.StatusCode)
		}
		var out struct {
			GeoidID string `json:"geoid_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			resp.Body.Close()
			return fmt.Errorf("decode response: %w", err)
		}
		resp.Body.Close()
		printer.KV(out.GeoidID, form)
		created++
	}
	printer.Success("Created %d geoids", created)

	if populateCycle {
		resp, err := client.Post(populateURL+"/system/cycle", "application/json", nil)
		if err != nil {
			return fmt.Errorf("trigger cycle: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("cycle failed with status %d", resp.StatusCode)
		}
		var cycle struct {
			Status        string `json:"status"`
			TensionsFound int    `json:"tensions_found"`
			ScarsCreated  int    `json:"scars_created"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&cycle); err != nil {
			return fmt.Errorf("decode cycle response: %w", err)
		}
		printer.Subheader("Cognitive cycle")
		printer.KV("status", cycle.Status)
		printer.KV("tensions found", cycle.TensionsFound)
		printer.KV("scars created", cycle.ScarsCreated)
	}
	return nil
}
