package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pridepath/session-pipeline/clients"
	"github.com/pridepath/session-pipeline/mastery"
)

func runCmd() *cobra.Command {
	var audioPath, modeName string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run [audio]",
		Short: "Run a recorded audio file through the pipeline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if audioPath == "" && len(args) > 0 {
				audioPath = args[0]
			}
			if audioPath == "" {
				return fmt.Errorf("an audio file is required (--audio or first argument)")
			}
			mode, err := mastery.ParseMode(modeName)
			if err != nil {
				return err
			}
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(audioPath)
			if err != nil {
				return err
			}

			p, st, err := openPipeline(conf)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := signalContext()
			defer cancel()

			report, err := p.Run(ctx, mode, clients.Audio{
				Data:     data,
				MIMEType: clients.MIMEForPath(audioPath),
				Filename: filepath.Base(audioPath),
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(report)
			}
			printReport(report)
			return nil
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "path to audio file (wav/mp3/m4a/webm)")
	cmd.Flags().StringVar(&modeName, "mode", "relationship", "coaching mode (relationship/discipline)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")

	return cmd
}
