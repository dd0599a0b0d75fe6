package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/workflow"
)

func setupSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change AI settings",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			s, err := e.client.Settings(cmd.Context())
			if err != nil {
				return err
			}
			return printSettings(cmd, *s)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set key=value...",
		Short: "Change settings",
		Long: `Change one or more settings. Keys:

  tier            development, production or premium
  generator       generator model for the current tier
  reviewer        reviewer model for the current tier
  fallback        fallback model for the current tier
  iterative       true or false; default mode for generate
  iterations      iterative rounds, 2 to 5
  timeout         iterative wait limit in minutes
  final-review    true or false
  guided-rounds   question rounds per guided session

Switching tier restores the models saved for that tier.`,
		Args: cobra.MinimumNArgs(1),
		RunE: settingsSetCommandAction,
	}

	cmd.AddCommand(getCmd, setCmd)
	return cmd
}

func settingsSetCommandAction(cmd *cobra.Command, args []string) error {
	edits := make([]func(*models.AISettings), 0, len(args))
	for _, arg := range args {
		edit, err := parseSetting(arg)
		if err != nil {
			return err
		}
		edits = append(edits, edit)
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	wf, err := e.controller(ctx, workflow.Options{})
	if err != nil {
		return err
	}

	if err := wf.UpdateSettings(func(s *models.AISettings) {
		for _, edit := range edits {
			edit(s)
		}
	}); err != nil {
		return err
	}
	if err := wf.Close(ctx); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return printSettings(cmd, wf.Settings())
}

func parseSetting(arg string) (func(*models.AISettings), error) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok || value == "" {
		return nil, fmt.Errorf("expected key=value, got %q", arg)
	}

	switch key {
	case "tier":
		tier := models.Tier(value)
		if !tier.IsValid() {
			return nil, fmt.Errorf("unknown tier %q", value)
		}
		return func(s *models.AISettings) { s.Tier = tier }, nil
	case "generator":
		return func(s *models.AISettings) { s.GeneratorModel = value }, nil
	case "reviewer":
		return func(s *models.AISettings) { s.ReviewerModel = value }, nil
	case "fallback":
		return func(s *models.AISettings) { s.FallbackModel = value }, nil
	case "iterative", "final-review":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if key == "iterative" {
			return func(s *models.AISettings) { s.IterativeMode = b }, nil
		}
		return func(s *models.AISettings) { s.UseFinalReview = b }, nil
	case "iterations", "timeout", "guided-rounds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "iterations":
			return func(s *models.AISettings) { s.IterationCount = n }, nil
		case "timeout":
			return func(s *models.AISettings) { s.IterativeTimeoutMinutes = n }, nil
		}
		return func(s *models.AISettings) { s.GuidedQuestionRounds = n }, nil
	}
	return nil, fmt.Errorf("unknown setting %q", key)
}

func printSettings(cmd *cobra.Command, s models.AISettings) error {
	rows := [][]string{
		{"tier", string(s.Tier)},
		{"generator", s.GeneratorModel},
		{"reviewer", s.ReviewerModel},
		{"fallback", s.FallbackModel},
		{"iterative", strconv.FormatBool(s.IterativeMode)},
		{"iterations", strconv.Itoa(s.IterationCount)},
		{"timeout", fmt.Sprintf("%d min", s.IterativeTimeoutMinutes)},
		{"final-review", strconv.FormatBool(s.UseFinalReview)},
		{"guided-rounds", strconv.Itoa(s.GuidedQuestionRounds)},
	}
	for _, tier := range models.Tiers {
		if saved, ok := s.TierModels[tier]; ok && !saved.IsZero() {
			rows = append(rows, []string{"saved " + string(tier), fmt.Sprintf("%s / %s / %s",
				dash(saved.GeneratorModel), dash(saved.ReviewerModel), dash(saved.FallbackModel))})
		}
	}
	return renderTable(cmd.OutOrStdout(), []string{"Setting", "Value"}, rows)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
