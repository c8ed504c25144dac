package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"clipmix/internal/assets"
	"clipmix/internal/diagnostics"
	"clipmix/internal/domain"
)

var errDiagnosticsFailed = errors.New("one or more checks failed")

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the engine, assets and output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := diagnostics.NewChecker().Run(settings)
			fmt.Fprintln(out, renderDiagnostics(report, shouldColorize(out)))

			loader := assets.NewLoader(settings.BackgroundTrackPath, settings.FontURL, nil, ctx.logger)
			if info, err := loader.TrackInfo(); err == nil {
				fmt.Fprintln(out, renderStatusLine("track", statusInfo, describeTrack(info), shouldColorize(out)))
			}

			if report.HasFailures {
				return errDiagnosticsFailed
			}
			return nil
		},
	}
}

func renderDiagnostics(report domain.DiagnosticReport, colorize bool) string {
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		status := statusKindLabel(diagnosticKind(item.Status))
		if colorize {
			status = statusKindColor(diagnosticKind(item.Status)) + status + ansiReset
		}
		rows = append(rows, []string{item.Name, status, item.Message, item.Hint})
	}
	return renderTable([]string{"Check", "Status", "Message", "Hint"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft})
}

func describeTrack(info assets.TrackInfo) string {
	title := info.Title
	if title == "" {
		title = "untitled"
	}
	if info.Artist != "" {
		title = info.Artist + " - " + title
	}
	if info.Format != "" {
		return fmt.Sprintf("%s (%s, %d bytes)", title, info.Format, info.Size)
	}
	return fmt.Sprintf("%s (%d bytes)", title, info.Size)
}
