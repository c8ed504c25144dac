package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"clipmix/internal/domain"
	"clipmix/internal/upload"
)

const (
	previewFileName = "preview.mp4"
	resultFileName  = "result.mp4"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "preview <video>",
		Short: "Re-mux a video into a playable preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			media, err := upload.FromFile(args[0])
			if err != nil {
				return userFacing(err)
			}

			target := resolveOutput(outputPath, settings.OutputDir, previewFileName)
			out := &syncWriter{w: cmd.OutOrStdout()}
			presenter := &filePresenter{previewPath: target}

			sess, cleanup, err := ctx.openSession(cmd.Context(), out, presenter)
			if err != nil {
				return err
			}
			defer cleanup()

			artifact, err := sess.Orchestrator.RunPreview(cmd.Context(), media.Data)
			if err != nil {
				return userFacing(err)
			}

			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("preview", statusOK, "Wrote "+target, colorize))
			if artifact.Width > 0 && artifact.Height > 0 {
				fmt.Fprintln(out, renderStatusLine("preview", statusInfo, fmt.Sprintf("%dx%d", artifact.Width, artifact.Height), colorize))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to <output_dir>/preview.mp4)")
	return cmd
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var (
		outputPath   string
		startSeconds int
		keepAudio    bool
		caption      string
	)

	cmd := &cobra.Command{
		Use:   "merge <video>",
		Short: "Cut a 30 second clip and lay the background track onto it",
		Long: "Runs the preview stage on the video, then cuts 30 seconds starting at --start " +
			"and mixes the background track under its audio (or, with --keep-audio=false, replaces it).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			media, err := upload.FromFile(args[0])
			if err != nil {
				return userFacing(err)
			}

			target := resolveOutput(outputPath, settings.OutputDir, resultFileName)
			out := &syncWriter{w: cmd.OutOrStdout()}
			presenter := &filePresenter{resultPath: target}

			sess, cleanup, err := ctx.openSession(cmd.Context(), out, presenter)
			if err != nil {
				return err
			}
			defer cleanup()

			preview, err := sess.Orchestrator.RunPreview(cmd.Context(), media.Data)
			if err != nil {
				return userFacing(err)
			}

			result, err := sess.Orchestrator.RunMerge(cmd.Context(), domain.MergeRequest{
				StartSeconds:        startSeconds,
				Preview:             &preview,
				RetainOriginalAudio: keepAudio,
				Caption:             strings.TrimSpace(caption),
			})
			if err != nil {
				return userFacing(err)
			}

			message := fmt.Sprintf("Wrote %s (%d bytes, starts at %ds)", target, result.Size(), result.SeekSeconds)
			fmt.Fprintln(out, renderStatusLine("merge", statusOK, message, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to <output_dir>/result.mp4)")
	cmd.Flags().IntVarP(&startSeconds, "start", "s", 0, "Clip start offset in seconds (0-1000)")
	cmd.Flags().BoolVar(&keepAudio, "keep-audio", true, "Mix the original audio under the background track (--keep-audio=false replaces it)")
	cmd.Flags().StringVar(&caption, "caption", "", "Caption text drawn onto the clip")
	return cmd
}

func resolveOutput(flagValue, outputDir, fileName string) string {
	if path := strings.TrimSpace(flagValue); path != "" {
		return path
	}
	return filepath.Join(outputDir, fileName)
}
