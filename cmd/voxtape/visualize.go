package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lisuiheng/voxtape/audio"
	"github.com/lisuiheng/voxtape/core"
	"github.com/lisuiheng/voxtape/logger"
	"github.com/lisuiheng/voxtape/waveform"
)

var visualizeOpts struct {
	output string
	bars   int
	scale  int
}

var visualizeCmd = &cobra.Command{
	Use:   "visualize [file]",
	Short: "Render the amplitude waveform of an audio file to PNG",
	Long: `Decode a WAV, MP3 or Ogg Opus file, reduce it to a fixed number of
amplitude bars and render the static waveform to a PNG image.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Logger()
		input := args[0]

		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", input, err)
		}

		bars := cfg.Display.ProfileBars
		if visualizeOpts.bars > 0 {
			bars = visualizeOpts.bars
		}
		extractor := waveform.NewExtractor(audio.NewDecoder(log), log)
		analysis, err := extractor.Analyze(data, bars)
		if err != nil {
			return fmt.Errorf("failed to visualize %s: %w", input, err)
		}

		style, err := cfg.Style()
		if err != nil {
			return err
		}
		renderer := waveform.NewRenderer(style, waveform.NewTickerScheduler(cfg.Display.FPS), log)
		defer renderer.Close()
		renderer.Render(waveform.Frame{Profile: analysis.Profile, Duration: analysis.Duration})

		output := visualizeOpts.output
		if output == "" {
			output = strings.TrimSuffix(input, filepath.Ext(input)) + ".png"
		}
		if err := writePNG(output, renderer.Snapshot(), visualizeOpts.scale); err != nil {
			return err
		}
		fmt.Printf("%s: %s, %d bars, peak %.3f -> %s\n",
			filepath.Base(input), core.FormatClock(analysis.Duration.Seconds()), len(analysis.Profile), analysis.Profile.Peak(), output)
		return nil
	},
}

func init() {
	visualizeCmd.Flags().StringVarP(&visualizeOpts.output, "output", "o", "", "output PNG path (default is the input name with .png)")
	visualizeCmd.Flags().IntVar(&visualizeOpts.bars, "bars", 0, "number of amplitude bars (overrides config)")
	visualizeCmd.Flags().IntVar(&visualizeOpts.scale, "scale", 1, "PNG scale factor")
}

func writePNG(path string, img *image.RGBA, scale int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := waveform.EncodePNG(f, img, scale); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
