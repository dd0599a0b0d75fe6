package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

const (
	sinceFlagName  = "since"
	recentFlagName = "recent"
)

func setupUsageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show model calls, tokens and cost",
		RunE:  usageCommandAction,
	}
	cmd.Flags().Duration(sinceFlagName, 0, "only count calls newer than this, e.g. 24h (default all time)")
	cmd.Flags().Bool(recentFlagName, false, "list the most recent calls")
	return cmd
}

func usageCommandAction(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	var since time.Time
	if d, _ := cmd.Flags().GetDuration(sinceFlagName); d > 0 {
		since = time.Now().Add(-d)
	}
	summary, err := e.client.Usage(cmd.Context(), since)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s calls, %s tokens, %s\n\n", bold.Sprint("Total:"),
		humanize.Comma(int64(summary.TotalCalls)), formatTokens(summary.TotalTokens), formatCost(summary.TotalCost))

	if err := renderTable(out, []string{"Tier", "Calls", "Tokens", "Cost"}, bucketRows(summary.ByTier)); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err := renderTable(out, []string{"Model", "Calls", "Tokens", "Cost"}, bucketRows(summary.ByModel)); err != nil {
		return err
	}

	if recent, _ := cmd.Flags().GetBool(recentFlagName); recent && len(summary.RecentCalls) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(summary.RecentCalls))
		for _, r := range summary.RecentCalls {
			rows = append(rows, []string{
				humanize.Time(time.Unix(r.CreatedAt, 0)),
				r.Model,
				string(r.ModelType),
				formatTokens(r.TotalTokens()),
				formatCost(r.Cost),
				r.PrdID,
			})
		}
		return renderTable(out, []string{"When", "Model", "Role", "Tokens", "Cost", "Document"}, rows)
	}
	return nil
}

func bucketRows(buckets map[string]models.UsageBucket) [][]string {
	rows := make([][]string, 0, len(buckets))
	for _, k := range sortedKeys(buckets) {
		b := buckets[k]
		rows = append(rows, []string{k, strconv.Itoa(b.Calls), formatTokens(b.Tokens), formatCost(b.Cost)})
	}
	return rows
}
