package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one usage check and dispatch any new alerts",
	Long: `Run one usage check: refresh credentials if needed, fetch 5-hour and weekly
usage, notify newly crossed thresholds and persist the alert state.
Intended to be invoked from cron or a systemd timer.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringP("output", "o", "text", "Output format (text, json, yaml)")
	checkCmd.Flags().Bool("fail", false, "Exit non-zero when the check did not complete cleanly")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	failOnError, _ := cmd.Flags().GetBool("fail")

	logger := newLogger(cfg)
	eng, store, _, err := initEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	result := eng.RunCheck(cmd.Context())
	if err := writeResult(os.Stdout, output, result); err != nil {
		return err
	}

	if failOnError && result.Outcome != model.OutcomeOK {
		return fmt.Errorf("check %s: %s", result.Outcome, result.Error)
	}
	return nil
}

func writeResult(w io.Writer, format string, result model.CheckResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(result)
	case "text", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	fmt.Fprintf(w, "Outcome:       %s\n", result.Outcome)
	if result.Checked {
		fmt.Fprintf(w, "5-hour usage:  %d%%\n", result.FiveHourPercent)
		fmt.Fprintf(w, "Weekly usage:  %d%%\n", result.WeeklyPercent)
	}
	fmt.Fprintf(w, "Crossed:       %d\n", result.ThresholdsCrossed)
	fmt.Fprintf(w, "Notified:      %d/%d\n", result.NotificationsSent, len(result.Alerts))
	for _, title := range result.Alerts {
		fmt.Fprintf(w, "  - %s\n", title)
	}
	if result.Error != "" {
		fmt.Fprintf(w, "Error:         %s\n", result.Error)
	}
	if result.StoreError != "" {
		fmt.Fprintf(w, "Store error:   %s\n", result.StoreError)
	}
	return nil
}
