package main

import (
	"github.com/spf13/cobra"

	"github.com/pridepath/session-pipeline/mastery"
	"github.com/pridepath/session-pipeline/orchestrator"
	"github.com/pridepath/session-pipeline/server"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session and progress HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = conf.Server.Addr
			}
			p, st, err := openPipeline(conf)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := signalContext()
			defer cancel()

			svc := server.New(version, p, st, mastery.NewScorer(orchestrator.Targets(conf.Mastery)))
			return svc.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")

	return cmd
}
