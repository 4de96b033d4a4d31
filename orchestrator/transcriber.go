package orchestrator

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/pridepath/session-pipeline/clients"
)

// Transcriber walks the provider chain one provider at a time and stops at the
// first non-empty result.
type Transcriber struct {
	providers []Provider
}

func NewTranscriber(providers ...Provider) *Transcriber {
	return &Transcriber{providers: providers}
}

func (t *Transcriber) Transcribe(ctx context.Context, a clients.Audio) (*Result, error) {
	var failures []error
	attempted, empty := 0, 0

	for _, p := range t.providers {
		if !p.Configured() {
			log.WithField("provider", p.Name()).Debug("provider not configured, skipping")
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTranscriptionUnavailable, err)
		}
		attempted++

		res, err := p.Transcribe(ctx, a)
		if err == nil && (res == nil || len(res.Utterances) == 0) {
			err = ErrEmptyTranscript
		}
		if err != nil {
			pe := &ProviderError{Provider: p.Name(), Err: err}
			if errors.Is(err, ErrEmptyTranscript) {
				empty++
			}
			log.WithError(err).WithField("provider", p.Name()).Warn("transcription provider failed, trying next")
			failures = append(failures, pe)
			continue
		}

		log.WithFields(log.Fields{"provider": p.Name(), "utterances": len(res.Utterances)}).Info("transcribed")
		return res, nil
	}

	switch {
	case attempted == 0:
		return nil, fmt.Errorf("%w: no provider configured", ErrTranscriptionUnavailable)
	case empty == attempted:
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionUnavailable, ErrEmptyTranscript)
	}
	return nil, fmt.Errorf("%w: %w", ErrTranscriptionUnavailable, errors.Join(failures...))
}
