package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pridepath/session-pipeline/clients"
	"github.com/pridepath/session-pipeline/coding"
	"github.com/pridepath/session-pipeline/mastery"
	"github.com/pridepath/session-pipeline/store"
)

type fakeRoles struct {
	parent int
	err    error
}

func (f fakeRoles) ResolveParent(ctx context.Context, utts []Utterance) (int, error) {
	return f.parent, f.err
}

type fakeCoder struct {
	coding *Coding
	err    error
	during func()
}

func (f fakeCoder) Code(ctx context.Context, mode mastery.Mode, utts []Utterance) (*Coding, error) {
	if f.during != nil {
		f.during()
	}
	return f.coding, f.err
}

type fakeSummarizer struct {
	calls int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, mode mastery.Mode, tally coding.Tally, snap mastery.Snapshot) (string, error) {
	f.calls++
	return "keep going", nil
}

type memStore struct {
	recs []*store.Record
}

func (m *memStore) Create(ctx context.Context, rec *store.Record) error {
	m.recs = append(m.recs, rec)
	return nil
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func sessionUtterances() []Utterance {
	return []Utterance{
		{Speaker: 0, Text: "Nice stacking.", Start: 0, End: 1},
		{Speaker: 1, Text: "Look!", Start: 1, End: 2},
		{Speaker: 0, Text: "You put the red one on top.", Start: 2, End: 4},
	}
}

func newTestPipeline(roles RoleResolver, coder Coder, sum Summarizer, st SessionStore) *Pipeline {
	p := &fakeProvider{name: "fake", configured: true, result: &Result{
		Provider: "fake", Utterances: sessionUtterances(), Duration: 4,
	}}
	return &Pipeline{
		transcriber: NewTranscriber(p),
		roles:       roles,
		coder:       coder,
		summarizer:  sum,
		scorer:      mastery.NewScorer(mastery.DefaultTargets()),
		store:       st,
		runs:        NewRunTracker(),
		now:         func() time.Time { return fixedNow },
	}
}

func TestPipelineRun(t *testing.T) {
	sum := &fakeSummarizer{}
	st := &memStore{}
	coder := fakeCoder{coding: &Coding{
		Tags: []coding.Tag{coding.Praise, "", coding.Describe},
		Text: "[0] Nice stacking. [DO: Praise]\n[2] You put the red one on top. [DO: Describe]",
	}}
	p := newTestPipeline(fakeRoles{parent: 0}, coder, sum, st)

	r, err := p.Run(context.Background(), mastery.Relationship, clients.Audio{Data: []byte("x")})
	require.NoError(t, err)

	assert.Equal(t, "fake", r.Provider)
	assert.True(t, r.CodingOK)
	assert.False(t, r.Flagged)
	require.NotNil(t, r.ParentSpeaker)
	assert.Equal(t, 0, *r.ParentSpeaker)
	assert.Equal(t, RoleParent, r.Utterances[0].Role)
	assert.Equal(t, RoleChild, r.Utterances[1].Role)
	assert.Equal(t, coding.Describe, r.Utterances[2].Tag)
	assert.Equal(t, 1, r.Tally.Praise)
	assert.Equal(t, 1, r.Tally.Describe)
	assert.Equal(t, "keep going", r.Summary)
	assert.Equal(t, 1, sum.calls)
	assert.InDelta(t, 0.75, r.SpeakingShare["parent"], 1e-9)
	assert.Equal(t, fixedNow, r.CreatedAt)

	require.Len(t, st.recs, 1)
	assert.Equal(t, r.SessionID, st.recs[0].ID)
	assert.Equal(t, "relationship", st.recs[0].Mode)
	assert.Equal(t, r.Snapshot.Overall, st.recs[0].Overall)

	assert.Same(t, r, p.Runs().Latest(DefaultScope))
}

func TestPipelineCodingFailureIsNotFatal(t *testing.T) {
	sum := &fakeSummarizer{}
	st := &memStore{}
	p := newTestPipeline(fakeRoles{parent: 0}, fakeCoder{err: ErrCodingUnavailable}, sum, st)

	r, err := p.Run(context.Background(), mastery.Relationship, clients.Audio{})
	require.NoError(t, err)

	assert.False(t, r.CodingOK)
	assert.True(t, r.Flagged)
	assert.Equal(t, coding.Tally{}, r.Tally)
	assert.Len(t, r.Utterances, 3)
	assert.Zero(t, sum.calls, "no summary without coding")
	require.Len(t, st.recs, 1)
	assert.True(t, st.recs[0].Flagged)
}

func TestPipelineRoleFailureKeepsRawLabels(t *testing.T) {
	coder := fakeCoder{coding: &Coding{Tags: make([]coding.Tag, 3), Text: "[NEUTRAL]"}}
	p := newTestPipeline(fakeRoles{err: ErrRoleUnavailable}, coder, &fakeSummarizer{}, nil)

	r, err := p.Run(context.Background(), mastery.Discipline, clients.Audio{})
	require.NoError(t, err)

	assert.Nil(t, r.ParentSpeaker)
	for _, u := range r.Utterances {
		assert.Empty(t, u.Role)
	}
	assert.Contains(t, r.SpeakingShare, "Speaker 0")
	assert.Contains(t, r.SpeakingShare, "Speaker 1")
}

func TestPipelineTranscriptionFailure(t *testing.T) {
	p := newTestPipeline(fakeRoles{}, fakeCoder{}, &fakeSummarizer{}, nil)
	p.transcriber = NewTranscriber(&fakeProvider{name: "down", configured: true, err: errors.New("503")})

	_, err := p.Run(context.Background(), mastery.Relationship, clients.Audio{})
	assert.ErrorIs(t, err, ErrTranscriptionUnavailable)
	assert.Nil(t, p.Runs().Latest(DefaultScope))
}

func TestPipelineStaleRunIsDiscarded(t *testing.T) {
	st := &memStore{}
	p := newTestPipeline(fakeRoles{parent: 0}, nil, &fakeSummarizer{}, st)
	// a new recording starts while this run is still coding
	p.coder = fakeCoder{
		coding: &Coding{Tags: []coding.Tag{coding.Praise}},
		during: func() { p.runs.Begin(DefaultScope) },
	}

	_, err := p.Run(context.Background(), mastery.Relationship, clients.Audio{})
	assert.ErrorIs(t, err, ErrStaleRun)
	assert.Empty(t, st.recs)
	assert.Nil(t, p.Runs().Latest(DefaultScope))
}

func TestPipelineRunsInOtherScopesDoNotSupersede(t *testing.T) {
	st := &memStore{}
	p := newTestPipeline(fakeRoles{parent: 0}, nil, &fakeSummarizer{}, st)
	// another client starts recording while this run is still coding
	p.coder = fakeCoder{
		coding: &Coding{Tags: []coding.Tag{coding.Praise}},
		during: func() { p.runs.Begin("tablet-b") },
	}

	r, err := p.RunAs(context.Background(), "tablet-a", mastery.Relationship, clients.Audio{})
	require.NoError(t, err)
	assert.Len(t, st.recs, 1)
	assert.Same(t, r, p.Runs().Latest("tablet-a"))
	assert.Nil(t, p.Runs().Latest(DefaultScope))
}

func TestPipelineWritesBundle(t *testing.T) {
	dir := t.TempDir()
	coder := fakeCoder{coding: &Coding{Tags: []coding.Tag{coding.Praise}, Text: "[DO: Praise]"}}
	p := newTestPipeline(fakeRoles{parent: 0}, coder, &fakeSummarizer{}, nil)
	p.outputs = dir

	r, err := p.Run(context.Background(), mastery.Relationship, clients.Audio{})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "session_20260301-100000_*", "report.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, r.SessionID, got["session_id"])
	assert.Equal(t, "relationship", got["mode"])
}
