package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/visionspeech/internal/app"
	"github.com/nikhilbhutani/visionspeech/internal/config"
	"github.com/nikhilbhutani/visionspeech/internal/pipeline"
)

var (
	convertOutput     string
	convertVoice      string
	convertWait       time.Duration
	convertPromptFile string
	convertJSON       bool
)

var errConversionFailed = errors.New("conversion failed")

var convertCmd = &cobra.Command{
	Use:   "convert IMAGE",
	Short: "Convert an image to a WAV file",
	Long:  "Analyze IMAGE with the configured vision model, synthesize the text and save the audio.",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "output.wav", "Path of the WAV file to write")
	convertCmd.Flags().StringVar(&convertVoice, "voice", "", "TTS voice (defaults to TTS_VOICE)")
	convertCmd.Flags().DurationVar(&convertWait, "wait", 0, "Wait before the first audio poll (defaults to TTS_POLL_INITIAL_WAIT)")
	convertCmd.Flags().StringVar(&convertPromptFile, "prompt-file", "", "File with a prompt replacing the built-in one")
	convertCmd.Flags().BoolVar(&convertJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if convertPromptFile != "" {
		cfg.Vision.PromptFile = convertPromptFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	services, err := app.Build(cfg)
	if err != nil {
		return err
	}

	res := services.Converter.Convert(ctx, pipeline.ConversionRequest{
		ImagePath:  args[0],
		OutputPath: convertOutput,
		WaitTime:   convertWait,
		Voice:      convertVoice,
	})

	if err := printResult(cmd.OutOrStdout(), res, convertJSON); err != nil {
		return err
	}
	if !res.Success {
		return errConversionFailed
	}
	return nil
}

func printResult(w io.Writer, res pipeline.ConversionResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	}

	if !res.Success {
		color.New(color.FgRed).Fprintf(w, "✗ Error: %s\n", res.Error)
		if res.TextResult != "" {
			fmt.Fprintf(w, "\nText:\n%s\n", res.TextResult)
		}
		return nil
	}

	color.New(color.FgGreen).Fprintf(w, "✓ Saved audio to %s\n", res.AudioPath)
	fmt.Fprintf(w, "Category: %s\n", res.Category)
	if res.Hazard {
		color.New(color.FgYellow).Fprintln(w, "⚠ Hazard: yes")
	}
	fmt.Fprintf(w, "Voice: %s\n", res.VoiceUsed)
	fmt.Fprintf(w, "\nText:\n%s\n", res.TextResult)
	return nil
}
