// Package coding holds the behavioral tag taxonomy and the pure tally reducer
// over coded utterances.
package coding

import (
	"slices"
	"strings"
)

type Tag string

const (
	Praise    Tag = "praise"
	Reflect   Tag = "reflect"
	Describe  Tag = "describe"
	Imitate   Tag = "imitate"
	Question  Tag = "question"
	Command   Tag = "command"
	Criticism Tag = "criticism"
	Neutral   Tag = "neutral"
)

// Family is the marker prefix a tag must appear under.
type Family string

const (
	Do      Family = "DO"
	Avoid   Family = "DON'T"
	Neither Family = "NEUTRAL"
)

var (
	DoTags    = []Tag{Praise, Reflect, Describe, Imitate}
	AvoidTags = []Tag{Question, Command, Criticism}
	AllTags   = []Tag{Praise, Reflect, Describe, Imitate, Question, Command, Criticism, Neutral}
)

func (t Tag) Family() Family {
	switch {
	case slices.Contains(DoTags, t):
		return Do
	case slices.Contains(AvoidTags, t):
		return Avoid
	case t == Neutral:
		return Neither
	}
	return ""
}

func (t Tag) Valid() bool { return slices.Contains(AllTags, t) }

// ParseTag validates a marker's family and name. It returns false for anything
// outside the taxonomy, including a known name under the wrong family.
func ParseTag(family, name string) (Tag, bool) {
	fam := normalizeFamily(family)
	name = strings.ToLower(strings.TrimSpace(name))

	if fam == Neither {
		if name == "" || name == string(Neutral) {
			return Neutral, true
		}
		return "", false
	}
	t := Tag(name)
	if !t.Valid() {
		return "", false
	}
	if t == Neutral {
		return Neutral, true
	}
	if t.Family() != fam {
		return "", false
	}
	return t, true
}

func normalizeFamily(s string) Family {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	switch s {
	case "DO":
		return Do
	case "DON'T", "DONT", "DO NOT":
		return Avoid
	case "NEUTRAL":
		return Neither
	}
	return ""
}
