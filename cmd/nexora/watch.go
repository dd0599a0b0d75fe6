package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanno79/Nexora-sub001/internal/catalog"
	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/realtime"
)

func setupWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch prd-id",
		Short: "Follow real-time events for a document",
		Long:  "Print events for a document as they happen. The connection is re-established after a short pause when it drops.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sub := realtime.NewSubscriber(realtime.SubscriberConfig{
				URL:    e.client.RealtimeURL(),
				PrdID:  args[0],
				Header: e.client.AuthHeader(),
				OnEvent: func(ev models.DocumentEvent) {
					fmt.Fprintf(out, "%s %s%s\n", faint.Sprint(eventTime(ev)), eventColor(ev.Type), formatEventData(ev.Data))
				},
				Logger: e.logger,
			})
			defer sub.Close()

			faint.Fprintf(os.Stderr, "watching %s, ctrl-c to stop\n", args[0])
			if err := sub.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func eventTime(ev models.DocumentEvent) string {
	if t, err := time.Parse(time.RFC3339Nano, ev.Timestamp); err == nil {
		return t.Local().Format("15:04:05")
	}
	return time.Now().Format("15:04:05")
}

func eventColor(t models.DocumentEventType) string {
	switch t {
	case models.EventGenerationCompleted:
		return green.Sprint(t)
	case models.EventGuidedSessionUpdated, models.EventSubscribed:
		return cyan.Sprint(t)
	case models.EventApprovalUpdated:
		return bold.Sprint(t)
	}
	return string(t)
}

func formatEventData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return " " + strings.Join(parts, " ")
}

func setupModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List tier defaults and model prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			cat, err := e.client.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			return printCatalog(cmd, cat)
		},
	}
}

func printCatalog(cmd *cobra.Command, cat *catalog.Catalog) error {
	out := cmd.OutOrStdout()
	tierRows := make([][]string, 0, len(models.Tiers))
	for _, tier := range models.Tiers {
		d := cat.Tiers[tier]
		tierRows = append(tierRows, []string{string(tier), d.GeneratorModel, d.ReviewerModel, d.FallbackModel})
	}
	if err := renderTable(out, []string{"Tier", "Generator", "Reviewer", "Fallback"}, tierRows); err != nil {
		return err
	}
	fmt.Fprintln(out)

	priceRows := make([][]string, 0, len(cat.Pricing))
	for _, name := range sortedKeys(cat.Pricing) {
		p := cat.Pricing[name]
		priceRows = append(priceRows, []string{name, fmt.Sprintf("$%.2f", p.Input), fmt.Sprintf("$%.2f", p.Output)})
	}
	return renderTable(out, []string{"Model", "Input / 1M", "Output / 1M"}, priceRows)
}

func setupHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server and its model provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			h, err := e.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			status := green.Sprint(h.Status)
			if h.Status != "ok" {
				status = red.Sprint(h.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", status)
			return renderTable(cmd.OutOrStdout(), []string{"Service", "Status", "Detail"}, [][]string{
				{"db", h.DB.Status, h.DB.Message},
				{"provider", h.Provider.Status, h.Provider.Message},
				{"subscribers", fmt.Sprint(h.Subscribers), ""},
			})
		},
	}
}
