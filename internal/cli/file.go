package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"email-digest/internal/eml"
	"email-digest/internal/model"
	"email-digest/internal/parser"
	"email-digest/internal/replytime"
	"email-digest/internal/service"
)

func summarizeFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize-file <path.eml>...",
		Short: "Summarize and classify .eml files as one thread",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := requireAIKey(cfg); err != nil {
				return err
			}

			msgs, err := readThreadFiles(args)
			if err != nil {
				return err
			}
			valid, invalid := parser.ParseAll(msgs)
			for _, msg := range invalid {
				logger.Warn("Skipping message", "message_id", msg.ID, "reason", msg.ValidationError)
			}

			client := newAIClient(cfg, logger)
			policy := retryPolicy(cfg)
			summary, err := service.NewThreadSummarizer(client, cfg.SummaryChunkChars, policy, logger).
				Summarize(cmd.Context(), valid)
			if err != nil {
				return err
			}
			category, err := service.NewThreadClassifier(client, policy, logger).Classify(cmd.Context(), summary)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Category: %s\n", category)
			fmt.Fprintf(out, "Summary:  %s\n", summary)
			return nil
		},
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>...",
		Short: "Classify text into one of the thread categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := requireAIKey(cfg); err != nil {
				return err
			}

			classifier := service.NewThreadClassifier(newAIClient(cfg, logger), retryPolicy(cfg), logger)
			label, err := classifier.Classify(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), label)
			return nil
		},
	}
}

func replyTimesFileCmd() *cobra.Command {
	var me string

	cmd := &cobra.Command{
		Use:   "reply-times-file <path.eml>...",
		Short: "Print how long the operator took to answer in a thread",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if me == "" {
				cfg, _, err := loadConfig()
				if err != nil {
					return err
				}
				me = cfg.OperatorEmail
			}
			if me == "" {
				return fmt.Errorf("--me or OPERATOR_EMAIL is required")
			}

			msgs, err := readThreadFiles(args)
			if err != nil {
				return err
			}
			valid, _ := parser.ParseAll(msgs)
			writeReplyTimes(cmd.OutOrStdout(), replytime.Compute(valid, me))
			return nil
		},
	}

	cmd.Flags().StringVar(&me, "me", "", "Operator address (defaults to OPERATOR_EMAIL)")
	return cmd
}

// readThreadFiles parses the files and orders them chronologically.
func readThreadFiles(paths []string) ([]model.RawMessage, error) {
	parsed := make([]eml.Message, 0, len(paths))
	for _, path := range paths {
		msg, err := eml.ParseFile(path)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, msg)
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].Date.Before(parsed[j].Date)
	})

	msgs := make([]model.RawMessage, len(parsed))
	for i, m := range parsed {
		msgs[i] = m.Raw
	}
	return msgs, nil
}

func writeReplyTimes(out io.Writer, records []model.ReplyRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No operator replies found")
		return
	}
	for _, r := range records {
		fmt.Fprintf(out, "Reply %d to %s: %s -> %s (%.2f hours)\n",
			r.ReplyNumber, r.From,
			r.PrevAt.Format("2006-01-02 15:04"), r.ReplyAt.Format("2006-01-02 15:04"),
			r.Delta.Hours())
	}
}
