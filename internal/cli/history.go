package cli

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent check results",
	Long:  `Show recent check results recorded by the sqlite backend, optionally as a usage chart.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of checks to show")
	historyCmd.Flags().Bool("graph", false, "Plot 5-hour and weekly usage")
	historyCmd.Flags().Int("height", 12, "Graph height in rows")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	graph, _ := cmd.Flags().GetBool("graph")
	height, _ := cmd.Flags().GetInt("height")

	store, history, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if history == nil {
		return fmt.Errorf("check history requires storage.backend=sqlite (current: %s)", store.Name())
	}

	records, err := history.ListChecks(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list checks: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No checks recorded yet.")
		return nil
	}

	if graph {
		fmt.Println(plotHistory(records, height))
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "WHEN\tOUTCOME\t5H\tWEEKLY\tCROSSED\tSENT\tERROR\n")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%d%%\t%d\t%d\t%s\n",
			humanize.RelTime(r.CheckedAt, now, "ago", "from now"),
			r.Outcome,
			r.FiveHourPercent,
			r.WeeklyPercent,
			r.ThresholdsCrossed,
			r.NotificationsSent,
			r.Error,
		)
	}
	w.Flush()
	return nil
}

// plotHistory charts successful checks oldest to newest.
func plotHistory(records []model.CheckRecord, height int) string {
	var fiveHour, weekly []float64
	for _, r := range slices.Backward(records) {
		if r.Outcome != model.OutcomeOK {
			continue
		}
		fiveHour = append(fiveHour, float64(r.FiveHourPercent))
		weekly = append(weekly, float64(r.WeeklyPercent))
	}
	if len(fiveHour) == 0 {
		return "No successful checks to plot."
	}

	return asciigraph.PlotMany([][]float64{fiveHour, weekly},
		asciigraph.Height(height),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(100),
		asciigraph.Caption("usage % (red: 5-hour, blue: weekly)"),
		asciigraph.SeriesColors(
			asciigraph.Red,
			asciigraph.Blue,
		),
	)
}
