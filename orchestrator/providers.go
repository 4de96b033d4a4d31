package orchestrator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pridepath/session-pipeline/clients"
	cfg "github.com/pridepath/session-pipeline/config"
)

// Provider is one entry of the transcription chain. Each adapter owns its own
// response shape and hands back the common utterance sequence.
type Provider interface {
	Name() string
	Configured() bool
	Transcribe(ctx context.Context, a clients.Audio) (*Result, error)
}

const (
	ProviderElevenLabs = "elevenlabs"
	ProviderDeepgram   = "deepgram"
	ProviderAssemblyAI = "assemblyai"
)

// NewProviders builds the chain in the configured order.
func NewProviders(h *clients.HTTP, t cfg.Transcription) ([]Provider, error) {
	out := make([]Provider, 0, len(t.Order))
	seen := map[string]bool{}
	for _, name := range t.Order {
		if seen[name] {
			return nil, fmt.Errorf("provider %q listed twice", name)
		}
		seen[name] = true
		switch name {
		case ProviderElevenLabs:
			out = append(out, &elevenLabs{h: h, o: opts(t.Providers.ElevenLabs)})
		case ProviderDeepgram:
			out = append(out, &deepgram{h: h, o: opts(t.Providers.Deepgram)})
		case ProviderAssemblyAI:
			out = append(out, &assemblyAI{h: h, o: opts(t.Providers.AssemblyAI)})
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return out, nil
}

func opts(p cfg.Provider) clients.ProviderOpts {
	return clients.ProviderOpts{
		URL:          p.URL,
		APIKey:       p.APIKey,
		Model:        p.Model,
		Speakers:     p.Speakers,
		PollInterval: p.PollInterval,
		PollTimeout:  p.PollTimeout,
	}
}

func finish(name string, utts []Utterance, duration float64) (*Result, error) {
	if len(utts) == 0 {
		return nil, ErrEmptyTranscript
	}
	if duration <= 0 {
		duration = utts[len(utts)-1].End
	}
	return &Result{Provider: name, Utterances: utts, Duration: duration}, nil
}

// --- word-level diarization ---
type elevenLabs struct {
	h *clients.HTTP
	o clients.ProviderOpts
}

func (p *elevenLabs) Name() string     { return ProviderElevenLabs }
func (p *elevenLabs) Configured() bool { return p.o.APIKey != "" }

func (p *elevenLabs) Transcribe(ctx context.Context, a clients.Audio) (*Result, error) {
	resp, err := p.h.ElevenLabs(ctx, p.o, a)
	if err != nil {
		return nil, err
	}
	words := make([]Word, 0, len(resp.Words))
	duration := 0.0
	for _, w := range resp.Words {
		if w.End > duration {
			duration = w.End
		}
		if w.Type != "" && w.Type != "word" {
			continue
		}
		words = append(words, Word{Text: w.Text, Start: w.Start, End: w.End, Speaker: w.SpeakerID})
	}
	return finish(p.Name(), orFallback(GroupWords(words), resp.Text, duration), duration)
}

// --- turn-level diarization, or a flat transcript without it ---
type deepgram struct {
	h *clients.HTTP
	o clients.ProviderOpts
}

func (p *deepgram) Name() string     { return ProviderDeepgram }
func (p *deepgram) Configured() bool { return p.o.APIKey != "" }

func (p *deepgram) Transcribe(ctx context.Context, a clients.Audio) (*Result, error) {
	resp, err := p.h.Deepgram(ctx, p.o, a)
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(resp.Results.Utterances))
	for _, u := range resp.Results.Utterances {
		turns = append(turns, Turn{Speaker: strconv.Itoa(u.Speaker), Text: u.Transcript, Start: u.Start, End: u.End})
	}
	d := resp.Metadata.Duration
	return finish(p.Name(), orFallback(FromTurns(turns), resp.Transcript(), d), d)
}

// --- upload, job, poll; letter speaker codes, millisecond offsets ---
type assemblyAI struct {
	h *clients.HTTP
	o clients.ProviderOpts
}

func (p *assemblyAI) Name() string     { return ProviderAssemblyAI }
func (p *assemblyAI) Configured() bool { return p.o.APIKey != "" }

func (p *assemblyAI) Transcribe(ctx context.Context, a clients.Audio) (*Result, error) {
	job, err := p.h.AssemblyAI(ctx, p.o, a)
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(job.Utterances))
	for _, u := range job.Utterances {
		turns = append(turns, Turn{Speaker: u.Speaker, Text: u.Text, Start: u.Start / 1000, End: u.End / 1000})
	}
	d := job.AudioDuration
	return finish(p.Name(), orFallback(FromTurns(turns), job.Text, d), d)
}
