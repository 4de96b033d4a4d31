package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrTranscriptionUnavailable means every configured provider failed, or none is configured.
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
	// ErrEmptyTranscript means a provider answered but heard no speech.
	ErrEmptyTranscript = errors.New("empty transcript")
	// ErrCodingUnavailable means the behavioral coding call failed. Never fatal.
	ErrCodingUnavailable = errors.New("coding unavailable")
	// ErrRoleUnavailable means no parent speaker could be resolved. Never fatal.
	ErrRoleUnavailable = errors.New("speaker roles unavailable")
	// ErrStaleRun means a newer run started before this one finished; its results were dropped.
	ErrStaleRun = errors.New("pipeline run superseded")
)

// ProviderError is one provider's failure inside the chain. It is logged, not surfaced.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("provider %s: %v", e.Provider, e.Err) }

func (e *ProviderError) Unwrap() error { return e.Err }
