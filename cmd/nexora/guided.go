package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/workflow"
)

const skipFlagName = "skip"

func setupGuidedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guided [idea...]",
		Short: "Answer clarifying questions, then generate the document",
		Long: `Start a guided session: the generator drafts a feature overview and asks
clarifying questions over a few rounds, then writes the final document.

Enter the number of an option, "c" for a custom answer, an empty line to leave
a question unanswered, or "s" to stop asking and write the document now.
Answers may also be piped in one per line; when input ends the document is
written from the answers given so far.`,
		Args: cobra.MinimumNArgs(1),
		RunE: guidedCommandAction,
	}
	cmd.Flags().Bool(skipFlagName, false, "skip the questions and generate straight from the idea")
	cmd.Flags().String(prdFlagName, "", "document id to notify collaborators on")
	cmd.Flags().StringP(outFlagName, "o", "", "write the document to this file instead of stdout")
	return cmd
}

var errSkip = errors.New("skip requested")

func guidedCommandAction(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	in := workflow.Input{Text: strings.Join(args, " ")}
	in.PrdID, _ = cmd.Flags().GetString(prdFlagName)

	wf, err := e.controller(ctx, workflow.Options{})
	if err != nil {
		return err
	}
	defer wf.Close(ctx)

	start := time.Now()
	if skip, _ := cmd.Flags().GetBool(skipFlagName); skip {
		res, err := wf.Skip(ctx, in)
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

	if _, err := wf.Submit(ctx, in, workflow.Guided{}); err != nil {
		red.Fprintln(os.Stderr, wf.LastError())
		return err
	}
	bold.Fprintln(os.Stderr, "Feature overview")
	fmt.Fprintln(os.Stderr, wrap(wf.FeatureOverview(), termWidth()))

	reader := bufio.NewReader(os.Stdin)
	var res *workflow.Result
	for res == nil {
		answers, err := ask(reader, os.Stderr, wf.Questions())
		eof := errors.Is(err, io.EOF)
		switch {
		case errors.Is(err, errSkip), eof && len(answers) == 0:
			res, err = wf.Skip(ctx, in)
		case err != nil && !eof:
			return err
		case len(answers) == 0:
			faint.Fprintln(os.Stderr, `answer at least one question, or enter "s" to finish`)
			continue
		default:
			res, err = wf.Answer(ctx, answers)
			// Input ran out with questions still open.
			if eof && err == nil && res == nil {
				res, err = wf.Skip(ctx, in)
			}
		}
		if err != nil {
			red.Fprintln(os.Stderr, wf.LastError())
			if eof || wf.State() != workflow.StateQuestions {
				return err
			}
			continue
		}
		if res == nil && wf.RefinedPlan() != "" {
			faint.Fprintln(os.Stderr, "plan updated, a few more questions:")
		}
	}

	if err := writeDocument(cmd, res.Content); err != nil {
		return err
	}
	printSummary(res, time.Since(start))
	return nil
}

// ask walks the questions once and collects the answers given. When r runs
// dry it returns the answers so far with io.EOF.
func ask(r *bufio.Reader, w io.Writer, questions []models.Question) ([]models.Answer, error) {
	width := termWidth()
	var answers []models.Answer
	for i, q := range questions {
		fmt.Fprintf(w, "\n%s %s\n", cyan.Sprintf("%d.", i+1), bold.Sprint(q.Question))
		if q.Context != "" {
			faint.Fprintln(w, wrap(q.Context, width))
		}
		for j, o := range q.Options {
			line := fmt.Sprintf("  %d) %s", j+1, o.Label)
			if o.Description != "" {
				line += faint.Sprint(" - " + o.Description)
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w, "  c) something else")

		for {
			fmt.Fprint(w, "> ")
			choice, err := readLine(r)
			if errors.Is(err, io.EOF) {
				return answers, err
			}
			if err != nil {
				return nil, err
			}
			if choice == "" {
				break
			}
			if choice == "s" {
				return nil, errSkip
			}
			if choice == "c" {
				fmt.Fprint(w, "  your answer: ")
				custom, err := readLine(r)
				if errors.Is(err, io.EOF) {
					return answers, err
				}
				if err != nil {
					return nil, err
				}
				if custom == "" {
					continue
				}
				answers = append(answers, models.Answer{QuestionID: q.ID, SelectedOptionID: models.CustomOptionID, CustomText: custom})
				break
			}
			n, err := strconv.Atoi(choice)
			if err != nil || n < 1 || n > len(q.Options) {
				faint.Fprintf(w, "  enter 1-%d, c or s\n", len(q.Options))
				continue
			}
			answers = append(answers, models.Answer{QuestionID: q.ID, SelectedOptionID: q.Options[n-1].ID})
			break
		}
	}
	return answers, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil && w > 20 {
		return w
	}
	return 80
}

func wrap(s string, width int) string {
	var b strings.Builder
	for _, para := range strings.Split(s, "\n") {
		col := 0
		for _, word := range strings.Fields(para) {
			if col > 0 && col+1+len(word) > width {
				b.WriteByte('\n')
				col = 0
			} else if col > 0 {
				b.WriteByte(' ')
				col++
			}
			b.WriteString(word)
			col += len(word)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
