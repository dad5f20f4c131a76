package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lisuiheng/voxtape/audio"
	"github.com/lisuiheng/voxtape/logger"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available capture devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := audio.ListCaptureDevices(logger.Logger())
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No capture devices found")
			return nil
		}
		for i, d := range devices {
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %d: %s\n", marker, i, d.Name)
		}
		return nil
	},
}
