package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset the persisted alert state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the persisted alert state",
	RunE:  runStateShow,
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the alert state so every threshold can fire again",
	RunE:  runStateReset,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)

	stateShowCmd.Flags().StringP("output", "o", "text", "Output format (text, json, yaml)")
}

func runStateShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")

	store, _, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	state, revision, err := store.Load(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (showing defaults)\n", err)
	}
	state = state.Normalize()

	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(state)
	case "text", "":
		fmt.Printf("Backend:  %s (revision %d)\n\n", store.Name(), revision)
		writeState(os.Stdout, state, time.Now())
		return nil
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func writeState(w io.Writer, state model.AlertState, now time.Time) {
	for _, win := range model.Windows {
		fmt.Fprintf(w, "%s window\n", strings.ToUpper(win.Label()[:1])+win.Label()[1:])
		fmt.Fprintf(w, "  Alerted:  %s\n", formatThresholds(state.Alerted(win)))
		fmt.Fprintf(w, "  Resets:   %s\n", relTime(state.ResetAt(win), now))
	}
	fmt.Fprintf(w, "\nLast check:      %s\n", relTime(state.LastCheck, now))
	fmt.Fprintf(w, "Auth alerted:    %t\n", state.AuthErrorAlerted)
	fmt.Fprintf(w, "Last auth error: %s\n", relTime(state.LastAuthError, now))
}

func formatThresholds(values []int) string {
	if len(values) == 0 {
		return "none"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d%%", v)
	}
	return strings.Join(parts, ", ")
}

func relTime(t *time.Time, now time.Time) string {
	if t == nil {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format(time.DateTime), humanize.RelTime(*t, now, "ago", "from now"))
}

func runStateReset(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, _, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	_, revision, err := store.Load(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if _, err := store.Save(cmd.Context(), model.NewAlertState(), revision); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}

	fmt.Printf("Alert state reset (%s backend)\n", store.Name())
	return nil
}
