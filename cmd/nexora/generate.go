package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanno79/Nexora-sub001/internal/workflow"
)

const (
	modeFlagName        = "mode"
	iterationsFlagName  = "iterations"
	finalReviewFlagName = "final-review"
	existingFlagName    = "existing"
	prdFlagName         = "prd"
	outFlagName         = "out"
)

func setupGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [idea...]",
		Short: "Draft or improve a document",
		Long: `Draft a document from an idea, or improve an existing one with --existing.

The simple mode runs one generate-then-review pass. The iterative mode alternates
the generator and reviewer for --iterations rounds. Without --mode the saved
iterativeMode setting decides.`,
		RunE: generateCommandAction,
	}
	cmd.Flags().String(modeFlagName, "", "simple or iterative (default from settings)")
	cmd.Flags().Int(iterationsFlagName, 0, "iterative rounds, 2 to 5 (default from settings)")
	cmd.Flags().Bool(finalReviewFlagName, false, "append a final review pass to iterative runs")
	cmd.Flags().String(existingFlagName, "", "markdown file to improve")
	cmd.Flags().String(prdFlagName, "", "document id to notify collaborators on")
	cmd.Flags().StringP(outFlagName, "o", "", "write the document to this file instead of stdout")
	return cmd
}

func generateCommandAction(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	in := workflow.Input{Text: strings.Join(args, " ")}
	in.PrdID, _ = cmd.Flags().GetString(prdFlagName)
	if path, _ := cmd.Flags().GetString(existingFlagName); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read existing document: %w", err)
		}
		in.ExistingContent = string(data)
	}

	wf, err := e.controller(ctx, workflow.Options{
		OnProgress: func(p workflow.Progress) {
			fmt.Fprintf(os.Stderr, "\r%s round %d of %d", faint.Sprint("working:"), p.Round, p.Total)
		},
	})
	if err != nil {
		return err
	}
	defer wf.Close(ctx)

	modeName, _ := cmd.Flags().GetString(modeFlagName)
	mode, err := workflow.ParseMode(modeName, wf.Settings())
	if err != nil {
		return err
	}
	if it, ok := mode.(workflow.Iterative); ok {
		if cmd.Flags().Changed(iterationsFlagName) {
			it.Count, _ = cmd.Flags().GetInt(iterationsFlagName)
		}
		if cmd.Flags().Changed(finalReviewFlagName) {
			it.FinalReview, _ = cmd.Flags().GetBool(finalReviewFlagName)
		}
		mode = it
	}

	start := time.Now()
	res, err := wf.Submit(ctx, in, mode)
	if _, ok := mode.(workflow.Iterative); ok {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		red.Fprintln(os.Stderr, wf.LastError())
		return err
	}

	if err := writeDocument(cmd, res.Content); err != nil {
		return err
	}
	printSummary(res, time.Since(start))
	return nil
}

func writeDocument(cmd *cobra.Command, content string) error {
	path, _ := cmd.Flags().GetString(outFlagName)
	if path == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", green.Sprint("wrote"), path)
	return nil
}
