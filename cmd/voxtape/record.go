package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lisuiheng/voxtape/audio"
	"github.com/lisuiheng/voxtape/core"
	"github.com/lisuiheng/voxtape/logger"
	"github.com/lisuiheng/voxtape/protocols/websocket"
	"github.com/lisuiheng/voxtape/waveform"
)

var recordOpts struct {
	output      string
	maxDuration int
	quota       float64
	png         bool
	scale       int
	play        bool
	upload      bool
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the default microphone",
	Long: `Record from the default microphone until Ctrl+C, the maximum duration or
the remaining quota is reached. The recording is saved as Ogg Opus together
with a PNG of its waveform.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Logger()

		if cmd.Flags().Changed("max-duration") {
			cfg.Capture.MaxDuration = recordOpts.maxDuration
		}
		if cmd.Flags().Changed("quota") {
			cfg.Capture.RemainingQuota = recordOpts.quota
		}

		studio, err := newStudio(log)
		if err != nil {
			return err
		}
		defer func() {
			if err := studio.Close(); err != nil {
				log.Error("Failed to close studio", "error", err)
			}
		}()

		stopped := make(chan core.Event, 1)
		ended := make(chan struct{}, 1)
		studio.SetEventHandler(func(ev core.Event) {
			switch ev.Type {
			case core.EventTick:
				printProgress(studio.Recorder())
			case core.EventStopped:
				select {
				case stopped <- ev:
				default:
				}
			case core.EventPlaybackPosition:
				fmt.Printf("\rPlaying %s / %s", core.FormatClock(ev.Position.Seconds()), core.FormatClock(studio.Duration().Seconds()))
			case core.EventPlaybackEnded:
				select {
				case ended <- struct{}{}:
				default:
				}
			}
		})

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		limits := cfg.Limits()
		if core.QuotaLow(limits.RemainingQuota) {
			fmt.Printf("Warning: only %s of recording quota left\n", core.FormatClock(limits.RemainingQuota))
		}
		if err := studio.StartRecording(ctx, limits); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		fmt.Println("Recording... press Ctrl+C to stop")

		var ev core.Event
		select {
		case ev = <-stopped:
		case <-ctx.Done():
			if err := studio.StopRecording(); err != nil {
				log.Error("Failed to stop recording", "error", err)
			}
			ev = <-stopped
		}
		fmt.Println()
		if ev.Reason == core.StopDuration || ev.Reason == core.StopQuota {
			fmt.Printf("Recording stopped: %s reached\n", ev.Reason)
		}

		rec := studio.Recorder().Recording()
		clip, err := studio.Handoff()
		if err != nil {
			return err
		}
		path, err := saveClip(clip, rec.CreatedAt)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s (%s, %s)\n", path, core.FormatClock(rec.Duration.Seconds()), core.FormatSize(clip.Size()))

		if visErr := studio.VisualizationError(); visErr != nil {
			fmt.Printf("Waveform unavailable: %v\n", visErr)
		} else if recordOpts.png {
			pngPath := path[:len(path)-len(filepath.Ext(path))] + ".png"
			if err := writePNG(pngPath, studio.Snapshot(), recordOpts.scale); err != nil {
				return err
			}
			fmt.Printf("Waveform written to %s\n", pngPath)
		}

		if recordOpts.play {
			playCtx, stopPlay := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stopPlay()
			if err := studio.TogglePlayback(); err != nil {
				return fmt.Errorf("failed to play recording: %w", err)
			}
			select {
			case <-ended:
			case <-playCtx.Done():
			}
			fmt.Println()
		}

		if recordOpts.upload {
			if err := uploadClip(cmd.Context(), clip, log); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVarP(&recordOpts.output, "output", "o", ".", "output directory")
	recordCmd.Flags().IntVar(&recordOpts.maxDuration, "max-duration", 0, "maximum recording length in seconds (overrides config)")
	recordCmd.Flags().Float64Var(&recordOpts.quota, "quota", 0, "remaining quota in seconds, negative for unlimited (overrides config)")
	recordCmd.Flags().BoolVar(&recordOpts.png, "png", true, "write a waveform PNG next to the recording")
	recordCmd.Flags().IntVar(&recordOpts.scale, "scale", 1, "PNG scale factor")
	recordCmd.Flags().BoolVar(&recordOpts.play, "play", false, "play the recording back after stopping")
	recordCmd.Flags().BoolVar(&recordOpts.upload, "upload", false, "upload the recording to the configured transcription endpoint")
}

// newStudio 按配置组装采集、编码、解码、播放和渲染
func newStudio(log *slog.Logger) (*core.Studio, error) {
	style, err := cfg.Style()
	if err != nil {
		return nil, err
	}

	mic := audio.NewMicrophone(log)
	encoder := audio.NewOpusEncoder(cfg.Audio.Bitrate, cfg.Audio.Timeslice, log)
	recorder := core.NewRecorder(mic, encoder, core.RecorderOptions{
		Format:   cfg.AudioFormat(),
		Analyser: cfg.AnalyserConfig(),
	}, log)

	decoder := audio.NewDecoder(log)
	sources := audio.NewSourceTable()
	player, err := audio.NewDevicePlayer(sources, decoder, log)
	if err != nil {
		return nil, err
	}
	playback := core.NewPlayback(player, sources, core.SystemClock{}, cfg.Playback.PollInterval, log)

	renderer := waveform.NewRenderer(style, waveform.NewTickerScheduler(cfg.Display.FPS), log)
	extractor := waveform.NewExtractor(decoder, log)

	return core.NewStudio(recorder, playback, extractor, renderer, cfg.Display.ProfileBars, log), nil
}

func printProgress(r *core.Recorder) {
	elapsed := r.Elapsed()
	line := fmt.Sprintf("\rRecording %s", core.FormatClock(float64(elapsed)))
	remaining := r.Remaining()
	if !math.IsInf(remaining, 1) {
		line += fmt.Sprintf("  (%s left)", core.FormatClock(remaining))
	}
	if core.QuotaLow(remaining) {
		line += "  low quota"
	}
	fmt.Print(line)
}

func saveClip(clip *core.Clip, createdAt time.Time) (string, error) {
	if err := os.MkdirAll(recordOpts.output, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	ext := filepath.Ext(clip.Name())
	if ext != "" {
		ext = ext[1:]
	}
	path := filepath.Join(recordOpts.output, core.DownloadName(createdAt, ext))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create recording file: %w", err)
	}
	defer f.Close()
	if _, err := clip.WriteTo(f); err != nil {
		return "", fmt.Errorf("failed to write recording: %w", err)
	}
	return path, nil
}

func uploadClip(ctx context.Context, clip *core.Clip, log *slog.Logger) error {
	if cfg.Upload.URL == "" {
		return fmt.Errorf("upload.url is not configured")
	}
	uploader := websocket.NewUploader(websocket.Config{
		URL:         cfg.Upload.URL,
		AccessToken: cfg.Upload.AccessToken,
		ClientID:    cfg.Upload.ClientID,
		ChunkSize:   cfg.Upload.ChunkSize,
		MaxAttempts: cfg.Upload.MaxAttempts,
	}, log)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	id, err := uploader.Upload(ctx, clip)
	if err != nil {
		return fmt.Errorf("failed to upload recording: %w", err)
	}
	fmt.Printf("Uploaded as %s\n", id)
	return nil
}
