package main

import (
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lisuiheng/voxtape/audio"
	"github.com/lisuiheng/voxtape/core"
	"github.com/lisuiheng/voxtape/logger"
)

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play an audio file on the default output device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Logger()
		input := args[0]

		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", input, err)
		}
		clip := core.NewClip(filepath.Base(input), mime.TypeByExtension(filepath.Ext(input)), data)

		sources := audio.NewSourceTable()
		player, err := audio.NewDevicePlayer(sources, audio.NewDecoder(log), log)
		if err != nil {
			return err
		}
		playback := core.NewPlayback(player, sources, core.SystemClock{}, cfg.Playback.PollInterval, log)
		defer func() {
			if err := playback.Close(); err != nil {
				log.Error("Failed to close playback", "error", err)
			}
		}()

		ended := make(chan struct{}, 1)
		playback.SetEventHandler(func(ev core.Event) {
			switch ev.Type {
			case core.EventPlaybackPosition:
				fmt.Printf("\r%s / %s", core.FormatClock(ev.Position.Seconds()), core.FormatClock(playback.Duration().Seconds()))
			case core.EventPlaybackEnded:
				select {
				case ended <- struct{}{}:
				default:
				}
			}
		})

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := playback.Play(clip); err != nil {
			return err
		}
		fmt.Printf("Playing %s (%s)\n", clip.Name(), core.FormatSize(clip.Size()))

		select {
		case <-ended:
		case <-ctx.Done():
			_ = playback.Pause()
		}
		fmt.Println()
		return nil
	},
}
