// Package store persists completed session records in SQLite.
package store

import (
	"time"

	"github.com/pridepath/session-pipeline/coding"
)

// Record is one completed session as the progress views see it.
type Record struct {
	ID              string       `json:"id"`
	Mode            string       `json:"mode"`
	DurationSeconds float64      `json:"duration_seconds"`
	Tally           coding.Tally `json:"tally"`
	Effectiveness   float64      `json:"effectiveness"`
	Overall         int          `json:"overall_progress"`
	MasteryAchieved bool         `json:"mastery_achieved"`
	Flagged         bool         `json:"flagged_for_review"`
	Provider        string       `json:"provider"`
	Summary         string       `json:"summary,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}
