package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lisuiheng/voxtape/core"
	"github.com/lisuiheng/voxtape/logger"
)

var (
	cfg     core.Config
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "voxtape",
	Short: "Voice recorder with live and static waveform rendering",
	Long: `Voxtape records from the default microphone into Ogg Opus, draws a live
spectrum while recording and an amplitude waveform once the recording stops.

Recordings are bounded by a maximum duration and by the remaining quota.
Finished recordings can be played back, exported or uploaded for transcription.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		if err := v.BindPFlag("debug", cmd.Root().PersistentFlags().Lookup("debug")); err != nil {
			return err
		}

		var err error
		cfg, err = core.LoadConfig(v, cfgFile)
		if err != nil {
			return err
		}
		return initLogger(cfg, v.GetBool("debug"))
	},
}

func Execute() {
	err := rootCmd.Execute()
	if cerr := logger.Close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "failed to close log files:", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default searches ./config.yaml, ./config/config.yaml, /etc/voxtape/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(visualizeCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(devicesCmd)
}

// initLogger 初始化日志系统
func initLogger(cfg core.Config, debug bool) error {
	logCfg := logger.Config{
		Level:      cfg.Logging.Level,
		Outputs:    cfg.Logging.Outputs,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}

	// 调试模式覆盖配置
	if debug {
		logCfg.Level = "debug"
		logCfg.Outputs = []string{"stderr"}
	}

	if err := logger.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debug("Logger initialized", "level", logCfg.Level, "outputs", logCfg.Outputs)
	return nil
}
