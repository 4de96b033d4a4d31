package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	cfg "github.com/pridepath/session-pipeline/config"
	"github.com/pridepath/session-pipeline/orchestrator"
	"github.com/pridepath/session-pipeline/store"
)

func loadConfig() (*cfg.Root, error) {
	conf, err := cfg.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	lvl, err := log.ParseLevel(conf.Pipeline.LogLvl)
	if err != nil {
		log.WithField("level", conf.Pipeline.LogLvl).Warn("unknown log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return conf, nil
}

// openPipeline opens the session store and wires a pipeline around it. The caller closes the store.
func openPipeline(conf *cfg.Root) (*orchestrator.Pipeline, *store.Store, error) {
	st, err := store.Open(conf.Paths.DB)
	if err != nil {
		return nil, nil, err
	}
	p, err := orchestrator.NewPipeline(conf, st)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return p, st, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(r *orchestrator.Report) {
	fmt.Printf("session %s  provider=%s  duration=%.1fs\n", r.SessionID, r.Provider, r.Duration)
	for _, u := range r.Utterances {
		tag := ""
		if u.Tag != "" {
			tag = "  [" + string(u.Tag) + "]"
		}
		fmt.Printf("  %6.1f  %-10s %s%s\n", u.Start, u.Label(), u.Text, tag)
	}
	if !r.CodingOK {
		fmt.Println("coding unavailable, session flagged for review")
		return
	}
	fmt.Printf("pride %d  avoid %d\n", r.Tally.TotalPride(), r.Tally.TotalAvoid())
	for _, s := range r.Snapshot.Skills {
		fmt.Printf("  %-14s %5.1f / %-5.1f %3.0f%%\n", s.Name, s.Current, s.Target, s.Percent)
	}
	fmt.Printf("overall %d%%\n", r.Snapshot.Overall)
	if r.Snapshot.Achieved() {
		fmt.Println("mastery achieved")
	}
	if r.Summary != "" {
		fmt.Println()
		fmt.Println(r.Summary)
	}
}
