package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pridepath/session-pipeline/clients"
	"github.com/pridepath/session-pipeline/coding"
	cfg "github.com/pridepath/session-pipeline/config"
	"github.com/pridepath/session-pipeline/mastery"
	"github.com/pridepath/session-pipeline/store"
)

// SessionStore is the write side of the session records collaborator.
type SessionStore interface {
	Create(ctx context.Context, rec *store.Record) error
}

type Pipeline struct {
	transcriber *Transcriber
	roles       RoleResolver
	coder       Coder
	summarizer  Summarizer
	scorer      *mastery.Scorer
	store       SessionStore
	runs        *RunTracker
	outputs     string
	now         func() time.Time
}

// NewPipeline wires the provider chain and reasoning proxy from config. st may be nil.
func NewPipeline(c *cfg.Root, st SessionStore) (*Pipeline, error) {
	h := clients.NewHTTP()
	providers, err := NewProviders(h, c.Transcription)
	if err != nil {
		return nil, err
	}
	reasoning := NewReasoning(h, c.Services.Reasoning.URL)
	return &Pipeline{
		transcriber: NewTranscriber(providers...),
		roles:       reasoning,
		coder:       reasoning,
		summarizer:  reasoning,
		scorer:      mastery.NewScorer(Targets(c.Mastery)),
		store:       st,
		runs:        NewRunTracker(),
		outputs:     c.Paths.Outputs,
		now:         time.Now,
	}, nil
}

// Targets converts configured mastery targets.
func Targets(m cfg.Mastery) mastery.Targets {
	r, d := m.Relationship, m.Discipline
	return mastery.Targets{
		Relationship: mastery.RelationshipTargets{
			Praise: r.Praise, Reflect: r.Reflect, Describe: r.Describe, Imitate: r.Imitate,
			AvoidMax: r.AvoidMax, AvoidDecay: r.AvoidDecay,
		},
		Discipline: mastery.DisciplineTargets{Commands: d.Commands, Praise: d.Praise, Effectiveness: d.Effectiveness},
	}
}

// Runs exposes the tracker so callers can read the latest published report.
func (p *Pipeline) Runs() *RunTracker { return p.runs }

// Run is RunAs in the default scope.
func (p *Pipeline) Run(ctx context.Context, mode mastery.Mode, a clients.Audio) (*Report, error) {
	return p.RunAs(ctx, DefaultScope, mode, a)
}

// RunAs takes one recording through transcription, role resolution, coding and scoring.
// Only transcription failure is returned as an error; role, coding and summary failures
// degrade the report instead. A run superseded by a later run in the same scope returns
// ErrStaleRun and is neither published nor saved.
func (p *Pipeline) RunAs(ctx context.Context, scope string, mode mastery.Mode, a clients.Audio) (*Report, error) {
	runID := p.runs.Begin(scope)
	logger := log.WithFields(log.Fields{"run": runID.String(), "mode": mode, "scope": scope})
	logger.Info("pipeline run started")

	res, err := p.transcriber.Transcribe(ctx, a)
	if err != nil {
		logger.WithError(err).Error("transcription failed")
		return nil, err
	}

	utts := make([]Utterance, len(res.Utterances))
	copy(utts, res.Utterances)

	var (
		parent    *int
		codingRes *Coding
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		idx, err := p.roles.ResolveParent(gctx, utts)
		if err != nil {
			logger.WithError(err).Warn("speaker roles unavailable, keeping raw speaker labels")
			return nil
		}
		parent = &idx
		return nil
	})
	g.Go(func() error {
		c, err := p.coder.Code(gctx, mode, utts)
		if err != nil {
			logger.WithError(err).Warn("behavioral coding unavailable")
			return nil
		}
		codingRes = c
		return nil
	})
	_ = g.Wait()

	report := p.assemble(runID, mode, res, utts, parent, codingRes)

	if report.CodingOK {
		summary, err := p.summarizer.Summarize(ctx, mode, report.Tally, report.Snapshot)
		if err != nil {
			logger.WithError(err).Warn("competency summary unavailable")
		}
		report.Summary = summary
	}

	if !p.runs.Publish(scope, report) {
		logger.Warn("run superseded by a newer recording, discarding results")
		return nil, ErrStaleRun
	}

	if err := p.save(ctx, report); err != nil {
		return report, err
	}
	logger.WithFields(log.Fields{
		"session":  report.SessionID,
		"provider": report.Provider,
		"overall":  report.Snapshot.Overall,
	}).Info("pipeline run finished")
	return report, nil
}

func (p *Pipeline) assemble(runID uuid.UUID, mode mastery.Mode, res *Result, utts []Utterance, parent *int, c *Coding) *Report {
	if parent != nil {
		applyRoles(utts, *parent)
	}
	r := &Report{
		RunID:         runID,
		SessionID:     uuid.NewString(),
		Mode:          mode,
		Provider:      res.Provider,
		Duration:      res.Duration,
		ParentSpeaker: parent,
		CreatedAt:     p.now().UTC(),
	}
	if c != nil {
		applyTags(utts, c.Tags)
		r.CodingOK = true
		r.CodedText = c.Text
		r.Effectiveness = c.Effectiveness
	}
	r.Utterances = utts
	r.Tally = coding.Count(tagsOf(utts))
	r.Snapshot = p.scorer.Score(mode, r.Tally, r.Effectiveness)
	r.SpeakingShare, r.OverlapRate = speakingShare(utts)
	// an uncoded session has a meaningless score; someone should look at it
	r.Flagged = !r.CodingOK
	return r
}

func (p *Pipeline) save(ctx context.Context, r *Report) error {
	if p.store != nil {
		rec := &store.Record{
			ID:              r.SessionID,
			Mode:            string(r.Mode),
			DurationSeconds: r.Duration,
			Tally:           r.Tally,
			Effectiveness:   r.Effectiveness,
			Overall:         r.Snapshot.Overall,
			MasteryAchieved: r.Snapshot.Achieved(),
			Flagged:         r.Flagged,
			Provider:        r.Provider,
			Summary:         r.Summary,
			CreatedAt:       r.CreatedAt,
		}
		if err := p.store.Create(ctx, rec); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	if p.outputs != "" {
		path, err := writeBundle(p.outputs, r)
		if err != nil {
			return fmt.Errorf("write session bundle: %w", err)
		}
		log.WithField("path", path).Debug("session bundle written")
	}
	return nil
}
