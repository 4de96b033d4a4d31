package main

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pridepath/session-pipeline/capture"
	cfg "github.com/pridepath/session-pipeline/config"
	"github.com/pridepath/session-pipeline/mastery"
)

func recordCmd() *cobra.Command {
	var source, modeName string
	var seconds int
	var realtime bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture a session from an audio source, then run the pipeline on it",
		Long: `Streams the source as a live capture with a level meter. Recording ends at the
duration cap, when the source runs out, or on Ctrl-C; the captured audio is then
transcribed, coded and scored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := mastery.ParseMode(modeName)
			if err != nil {
				return err
			}
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			if seconds > 0 {
				conf.Audio.MaxDuration = cfg.DurSeconds(seconds)
			}

			dev := &capture.FileDevice{Path: source, ChunkSize: conf.Audio.ChunkSize}
			if realtime {
				dev.Pace = paceFor(conf.Audio)
			}
			rec := capture.NewRecorder(dev, conf.Audio)
			rec.OnLevel = meter()

			p, st, err := openPipeline(conf)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := signalContext()
			defer cancel()

			if err := rec.Start(ctx); err != nil {
				if errors.Is(err, capture.ErrPermissionDenied) {
					return fmt.Errorf("%w: check access to %s and try again", err, source)
				}
				return err
			}
			defer rec.Close()

			sess, err := rec.Wait(ctx)
			if err != nil {
				// interrupted: keep what was captured
				sess, err = rec.Stop()
				if err != nil {
					return err
				}
			}
			fmt.Println()
			log.WithFields(log.Fields{"reason": sess.Reason, "length": sess.Duration().Round(time.Millisecond)}).Info("capture finished")

			report, err := p.Run(cmd.Context(), mode, sess.Audio())
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "audio source to capture from (16-bit PCM file)")
	cmd.Flags().StringVar(&modeName, "mode", "relationship", "coaching mode (relationship/discipline)")
	cmd.Flags().IntVar(&seconds, "duration", 0, "duration cap in seconds (0 = config audio.max_duration)")
	cmd.Flags().BoolVar(&realtime, "realtime", true, "stream the source at its natural rate")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

// paceFor is the playback delay of one chunk at the configured PCM rate.
func paceFor(a cfg.Audio) time.Duration {
	bytesPerSec := a.SampleRate * a.Channels * 2
	if bytesPerSec <= 0 || a.ChunkSize <= 0 {
		return 0
	}
	return time.Duration(float64(a.ChunkSize) / float64(bytesPerSec) * float64(time.Second))
}

// meter redraws a one-line level display, at most every 100ms.
func meter() func([]float64) {
	const glyphs = " ▁▂▃▄▅▆▇█"
	runes := []rune(glyphs)
	var last time.Time
	return func(levels []float64) {
		if time.Since(last) < 100*time.Millisecond {
			return
		}
		last = time.Now()
		line := make([]rune, len(levels))
		for i, l := range levels {
			line[i] = runes[int(l*float64(len(runes)-1))]
		}
		fmt.Printf("\r%s", string(line))
	}
}
