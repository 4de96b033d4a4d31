package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pridepath/session-pipeline/coding"
	"github.com/pridepath/session-pipeline/mastery"
)

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

type Utterance struct {
	Speaker int        `json:"speaker"` // provider-local index
	Text    string     `json:"text"`
	Start   float64    `json:"start"` // sec
	End     float64    `json:"end"`   // sec
	Tag     coding.Tag `json:"tag,omitempty"`
	Role    Role       `json:"role,omitempty"`
}

// Label is the resolved role, or "Speaker N" when roles are unknown.
func (u Utterance) Label() string {
	if u.Role != "" {
		return string(u.Role)
	}
	return fmt.Sprintf("Speaker %d", u.Speaker)
}

// Result is a normalized transcription. Utterances is never empty.
type Result struct {
	Provider   string      `json:"provider"`
	Utterances []Utterance `json:"utterances"`
	Duration   float64     `json:"duration"` // sec
}

// Report is everything one pipeline run produced.
type Report struct {
	RunID         uuid.UUID          `json:"run_id"`
	SessionID     string             `json:"session_id"`
	Mode          mastery.Mode       `json:"mode"`
	Provider      string             `json:"provider"`
	Duration      float64            `json:"duration"`
	Utterances    []Utterance        `json:"utterances"`
	ParentSpeaker *int               `json:"parent_speaker,omitempty"`
	CodingOK      bool               `json:"coding_ok"`
	CodedText     string             `json:"coded_text,omitempty"`
	Effectiveness float64            `json:"effectiveness,omitempty"`
	Tally         coding.Tally       `json:"tally"`
	Snapshot      mastery.Snapshot   `json:"snapshot"`
	Summary       string             `json:"summary,omitempty"`
	SpeakingShare map[string]float64 `json:"speaking_share,omitempty"`
	OverlapRate   float64            `json:"overlap_rate,omitempty"`
	Flagged       bool               `json:"flagged"`
	CreatedAt     time.Time          `json:"created_at"`
}
