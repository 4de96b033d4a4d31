// Package mastery turns a session tally into per-skill progress toward targets.
package mastery

import (
	"fmt"
	"math"

	"github.com/pridepath/session-pipeline/coding"
)

type Mode string

const (
	Relationship Mode = "relationship"
	Discipline   Mode = "discipline"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Relationship, Discipline:
		return Mode(s), nil
	case "":
		return Relationship, nil
	}
	return "", fmt.Errorf("unknown mode %q (want %s or %s)", s, Relationship, Discipline)
}

// Skill names used in snapshots.
const (
	SkillAvoid         = "avoid"
	SkillCommands      = "commands"
	SkillPraise        = "praise"
	SkillEffectiveness = "effectiveness"
)

type SkillProgress struct {
	Name     string  `json:"name"`
	Current  float64 `json:"current"`
	Target   float64 `json:"target"`
	Percent  float64 `json:"percent"`
	Inverted bool    `json:"inverted,omitempty"`
}

type Snapshot struct {
	Mode    Mode            `json:"mode"`
	Skills  []SkillProgress `json:"skills"`
	Overall int             `json:"overallProgress"`
}

// Achieved reports the terminal mastery state.
func (s Snapshot) Achieved() bool { return s.Overall >= 100 }

func (s Snapshot) Skill(name string) (SkillProgress, bool) {
	for _, sk := range s.Skills {
		if sk.Name == name {
			return sk, true
		}
	}
	return SkillProgress{}, false
}

type RelationshipTargets struct {
	Praise, Reflect, Describe, Imitate int
	// AvoidMax is the ceiling on question+command+criticism; each unit above it
	// costs AvoidDecay points.
	AvoidMax   int
	AvoidDecay int
}

func (t RelationshipTargets) target(tag coding.Tag) int {
	switch tag {
	case coding.Praise:
		return t.Praise
	case coding.Reflect:
		return t.Reflect
	case coding.Describe:
		return t.Describe
	case coding.Imitate:
		return t.Imitate
	}
	return 0
}

type DisciplineTargets struct {
	Commands      int
	Praise        int
	Effectiveness float64
}

type Targets struct {
	Relationship RelationshipTargets
	Discipline   DisciplineTargets
}

func DefaultTargets() Targets {
	return Targets{
		Relationship: RelationshipTargets{Praise: 10, Reflect: 10, Describe: 10, Imitate: 10, AvoidMax: 3, AvoidDecay: 20},
		Discipline:   DisciplineTargets{Commands: 5, Praise: 5, Effectiveness: 75},
	}
}

// Scorer computes snapshots against a fixed set of targets.
type Scorer struct {
	targets Targets
}

func NewScorer(t Targets) *Scorer { return &Scorer{targets: t} }

// Score dispatches on mode. effectiveness is only read in discipline mode.
func (s *Scorer) Score(mode Mode, tally coding.Tally, effectiveness float64) Snapshot {
	if mode == Discipline {
		return s.ScoreDiscipline(tally, effectiveness)
	}
	return s.ScoreRelationship(tally)
}

func (s *Scorer) ScoreRelationship(tally coding.Tally) Snapshot {
	t := s.targets.Relationship
	skills := make([]SkillProgress, 0, len(coding.DoTags)+1)
	for _, tag := range coding.DoTags {
		skills = append(skills, countSkill(string(tag), tally.Get(tag), t.target(tag)))
	}
	skills = append(skills, avoidSkill(tally.TotalAvoid(), t.AvoidMax, t.AvoidDecay))
	return Snapshot{Mode: Relationship, Skills: skills, Overall: overall(skills)}
}

func (s *Scorer) ScoreDiscipline(tally coding.Tally, effectiveness float64) Snapshot {
	t := s.targets.Discipline
	skills := []SkillProgress{
		countSkill(SkillCommands, tally.Command, t.Commands),
		countSkill(SkillPraise, tally.Praise, t.Praise),
		ratioSkill(SkillEffectiveness, effectiveness, t.Effectiveness),
	}
	return Snapshot{Mode: Discipline, Skills: skills, Overall: overall(skills)}
}

func countSkill(name string, current, target int) SkillProgress {
	return ratioSkill(name, float64(current), float64(target))
}

func ratioSkill(name string, current, target float64) SkillProgress {
	pct := 100.0
	if target > 0 {
		pct = math.Min(current/target, 1) * 100
	}
	return SkillProgress{Name: name, Current: current, Target: target, Percent: clamp(pct)}
}

// avoidSkill is full marks at or below the ceiling and loses decay points per unit over it.
func avoidSkill(current, ceiling, decay int) SkillProgress {
	pct := 100.0
	if current > ceiling {
		pct = math.Max(100-float64((current-ceiling)*decay), 0)
	}
	return SkillProgress{
		Name:     SkillAvoid,
		Current:  float64(current),
		Target:   float64(ceiling),
		Percent:  clamp(pct),
		Inverted: true,
	}
}

func overall(skills []SkillProgress) int {
	if len(skills) == 0 {
		return 0
	}
	sum := 0.0
	for _, sk := range skills {
		sum += sk.Percent
	}
	return int(math.Round(clamp(sum / float64(len(skills)))))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
