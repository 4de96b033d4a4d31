package coding

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	markerRe = regexp.MustCompile(`(?i)\[\s*(DO|DON['’]?T|DO NOT|NEUTRAL)\s*(?::\s*([A-Za-z]+))?\s*\]`)
	indexRe  = regexp.MustCompile(`^\s*\[(\d+)\]`)
)

// Tally counts tagged utterances. It is always rebuilt from a full sequence.
type Tally struct {
	Praise    int `json:"praise"`
	Reflect   int `json:"reflect"`
	Describe  int `json:"describe"`
	Imitate   int `json:"imitate"`
	Question  int `json:"question"`
	Command   int `json:"command"`
	Criticism int `json:"criticism"`
	Neutral   int `json:"neutral"`
}

func (t Tally) TotalPride() int { return t.sum(DoTags) }

func (t Tally) TotalAvoid() int { return t.sum(AvoidTags) }

func (t Tally) sum(tags []Tag) int {
	n := 0
	for _, tag := range tags {
		n += t.Get(tag)
	}
	return n
}

func (t Tally) Get(tag Tag) int {
	switch tag {
	case Praise:
		return t.Praise
	case Reflect:
		return t.Reflect
	case Describe:
		return t.Describe
	case Imitate:
		return t.Imitate
	case Question:
		return t.Question
	case Command:
		return t.Command
	case Criticism:
		return t.Criticism
	case Neutral:
		return t.Neutral
	}
	return 0
}

func (t *Tally) add(tag Tag) {
	switch tag {
	case Praise:
		t.Praise++
	case Reflect:
		t.Reflect++
	case Describe:
		t.Describe++
	case Imitate:
		t.Imitate++
	case Question:
		t.Question++
	case Command:
		t.Command++
	case Criticism:
		t.Criticism++
	case Neutral:
		t.Neutral++
	}
}

// MarshalJSON adds the derived totals so API consumers don't recompute them.
func (t Tally) MarshalJSON() ([]byte, error) {
	type plain Tally
	return json.Marshal(struct {
		plain
		TotalPride int `json:"totalPride"`
		TotalAvoid int `json:"totalAvoid"`
	}{plain(t), t.TotalPride(), t.TotalAvoid()})
}

// Count reduces a tag sequence to a fresh tally. Empty and unknown tags are skipped.
func Count(tags []Tag) Tally {
	var t Tally
	for _, tag := range tags {
		if tag.Valid() {
			t.add(tag)
		}
	}
	return t
}

// ParseCoded counts every well-formed marker in a coded text blob.
func ParseCoded(text string) Tally {
	return Count(tagsIn(text))
}

type codedLine struct {
	idx     int
	indexed bool
	tags    []Tag
}

// Annotate maps coded text back onto n utterances, at most one tag each.
//
// A line prefixed "[i]" belongs to utterance i and any other marker-bearing line to
// the next position; lines with neither a prefix nor a valid marker (preambles,
// chatter) take no position. The first valid marker on a line wins. Unindexed text
// carrying more markers than marker lines is read as one marker per utterance in
// order, which covers services that code a whole transcript on a single line.
func Annotate(text string, n int) []Tag {
	out := make([]Tag, n)
	var (
		lines   []codedLine
		indexed bool
		markers int
	)
	for _, raw := range strings.Split(text, "\n") {
		l := codedLine{tags: tagsIn(raw)}
		if m := indexRe.FindStringSubmatch(raw); m != nil {
			if i, err := strconv.Atoi(m[1]); err == nil {
				l.idx, l.indexed, indexed = i, true, true
			}
		}
		if !l.indexed && len(l.tags) == 0 {
			continue
		}
		markers += len(l.tags)
		lines = append(lines, l)
	}

	if !indexed && markers > len(lines) {
		k := 0
		for _, l := range lines {
			for _, tag := range l.tags {
				if k < n {
					out[k] = tag
				}
				k++
			}
		}
		return out
	}

	pos := 0
	for _, l := range lines {
		idx := pos
		if l.indexed {
			idx = l.idx
		}
		pos = idx + 1
		if idx >= n || out[idx] != "" || len(l.tags) == 0 {
			continue
		}
		out[idx] = l.tags[0]
	}
	return out
}

// tagsIn returns the valid markers in s in order of appearance.
func tagsIn(s string) []Tag {
	var out []Tag
	for _, m := range markerRe.FindAllStringSubmatch(s, -1) {
		if tag, ok := ParseTag(m[1], m[2]); ok {
			out = append(out, tag)
		}
	}
	return out
}
