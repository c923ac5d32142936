package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/upo/upo/internal/config"
	"github.com/upo/upo/internal/domain/form"
	"github.com/upo/upo/internal/domain/summary"
	"github.com/upo/upo/internal/platform/calendar"
)

// composeFromFile reads a stored draft object ("-" is stdin) and composes
// the named form from it.
func composeFromFile(cmd *cobra.Command, formName, path string) (*summary.Summary, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	svc := summary.NewService(summary.NewComposer(cfg.PastebinBaseURL), nil, form.DefaultCatalog(), nil, zerolog.Nop())
	sum, err := svc.SummarizeDraft(formName, data)
	var missing *summary.MissingFieldsError
	if errors.As(err, &missing) {
		return nil, errors.New(missing.Error())
	}
	return sum, err
}

func summaryCmd() *cobra.Command {
	var (
		formName string
		path     string
		toClip   bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Compose the handoff text of a saved draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := composeFromFile(cmd, formName, path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum.Text)
			if toClip {
				if err := clipboard.WriteAll(sum.Text); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Texto copiado! Cole em %s\n", sum.PasteURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&formName, "form", summary.VariantSurgical, "form to compose (surgical, clinical, reassessment)")
	cmd.Flags().StringVar(&path, "draft", "-", "draft JSON file, - for stdin")
	cmd.Flags().BoolVar(&toClip, "copy", false, "also copy the text to the clipboard")
	return cmd
}

func reminderCmd() *cobra.Command {
	var (
		formName string
		path     string
		minutes  int
		out      string
	)
	cmd := &cobra.Command{
		Use:   "reminder",
		Short: "Write a calendar reminder to review the patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := composeFromFile(cmd, formName, path)
			if err != nil {
				return err
			}
			rem, err := calendar.NewReminder(time.Now(), minutes, sum.Reminder)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, []byte(rem.ICS()), 0o644); err != nil {
				return fmt.Errorf("write reminder: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Lembrete salvo em %s para %s\n", out, rem.Start.Local().Format("02/01 15:04"))
			return nil
		},
	}
	cmd.Flags().StringVar(&formName, "form", summary.VariantSurgical, "form to compose (surgical, clinical, reassessment)")
	cmd.Flags().StringVar(&path, "draft", "-", "draft JSON file, - for stdin")
	cmd.Flags().IntVar(&minutes, "minutes", 60, "minutes from now")
	cmd.Flags().StringVar(&out, "out", calendar.FileName, "output file")
	return cmd
}
