package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lisuiheng/voxtape/audio"
	"github.com/lisuiheng/voxtape/core"
	"github.com/lisuiheng/voxtape/logger"
)

var convertCmd = &cobra.Command{
	Use:   "convert [input] [output.wav]",
	Short: "Decode a recording to 16-bit PCM WAV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		decoded, err := audio.NewDecoder(logger.Logger()).Decode(data)
		if err != nil {
			return err
		}

		wav := audio.EncodeWAV(decoded.Interleaved(), decoded.SampleRate, len(decoded.Samples))
		if err := os.WriteFile(args[1], wav, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[1], err)
		}
		fmt.Printf("Wrote %s (%s, %s)\n", args[1], core.FormatClock(decoded.Duration().Seconds()), core.FormatSize(len(wav)))
		return nil
	},
}
