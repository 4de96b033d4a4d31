package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pridepath/session-pipeline/clients"
	"github.com/pridepath/session-pipeline/coding"
	"github.com/pridepath/session-pipeline/mastery"
)

type RoleResolver interface {
	ResolveParent(ctx context.Context, utts []Utterance) (int, error)
}

// Coding is one behavioral-coding pass: one tag slot per utterance.
type Coding struct {
	Tags          []coding.Tag
	Text          string
	Effectiveness float64
}

type Coder interface {
	Code(ctx context.Context, mode mastery.Mode, utts []Utterance) (*Coding, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, mode mastery.Mode, tally coding.Tally, snap mastery.Snapshot) (string, error)
}

var speakerRe = regexp.MustCompile(`(?i)speaker\s*_?\s*(\d+)`)

// Reasoning talks to the local reasoning proxy.
type Reasoning struct {
	http *clients.HTTP
	url  string
}

func NewReasoning(h *clients.HTTP, url string) *Reasoning {
	return &Reasoning{http: h, url: url}
}

func turns(utts []Utterance) []clients.Turn {
	out := make([]clients.Turn, len(utts))
	for i, u := range utts {
		out[i] = clients.Turn{Index: i, Speaker: u.Speaker, Text: u.Text, Start: u.Start, End: u.End}
	}
	return out
}

// ResolveParent asks which speaker index is the parent. It prefers the structured
// field and falls back to "Speaker N" in the analysis text.
func (r *Reasoning) ResolveParent(ctx context.Context, utts []Utterance) (int, error) {
	if r.url == "" {
		return 0, fmt.Errorf("%w: reasoning service not configured", ErrRoleUnavailable)
	}
	resp, err := r.http.Roles(ctx, r.url, clients.RolesReq{Utterances: turns(utts)})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRoleUnavailable, err)
	}

	idx := -1
	if resp.ParentSpeaker != nil {
		idx = *resp.ParentSpeaker
	} else if m := speakerRe.FindStringSubmatch(resp.Analysis); m != nil {
		idx, _ = strconv.Atoi(m[1])
	}
	for _, u := range utts {
		if u.Speaker == idx {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("%w: no matching speaker in reply", ErrRoleUnavailable)
}

func (r *Reasoning) Code(ctx context.Context, mode mastery.Mode, utts []Utterance) (*Coding, error) {
	if r.url == "" {
		return nil, fmt.Errorf("%w: reasoning service not configured", ErrCodingUnavailable)
	}
	resp, err := r.http.Code(ctx, r.url, clients.CodeReq{Mode: string(mode), Utterances: turns(utts)})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodingUnavailable, err)
	}
	if strings.TrimSpace(resp.CodedText) == "" {
		return nil, fmt.Errorf("%w: empty coded text", ErrCodingUnavailable)
	}
	c := &Coding{Tags: coding.Annotate(resp.CodedText, len(utts)), Text: resp.CodedText}
	if resp.EffectivenessPct != nil {
		c.Effectiveness = *resp.EffectivenessPct
	}
	return c, nil
}

func (r *Reasoning) Summarize(ctx context.Context, mode mastery.Mode, tally coding.Tally, snap mastery.Snapshot) (string, error) {
	if r.url == "" {
		return "", fmt.Errorf("reasoning service not configured")
	}
	resp, err := r.http.Summary(ctx, r.url, clients.SummaryReq{Mode: string(mode), Tally: tally, Snapshot: snap})
	if err != nil {
		return "", err
	}
	return resp.Analysis, nil
}

// applyRoles marks parent as RoleParent and every other speaker as RoleChild.
func applyRoles(utts []Utterance, parent int) {
	for i := range utts {
		if utts[i].Speaker == parent {
			utts[i].Role = RoleParent
		} else {
			utts[i].Role = RoleChild
		}
	}
}

func applyTags(utts []Utterance, tags []coding.Tag) {
	for i := range utts {
		if i < len(tags) {
			utts[i].Tag = tags[i]
		}
	}
}

func tagsOf(utts []Utterance) []coding.Tag {
	out := make([]coding.Tag, len(utts))
	for i, u := range utts {
		out[i] = u.Tag
	}
	return out
}
