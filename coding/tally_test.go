package coding

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodedScenario(t *testing.T) {
	tally := ParseCoded("[DO: Praise] Great job! [DON'T: Command] Sit down.")

	assert.Equal(t, Tally{Praise: 1, Command: 1}, tally)
	assert.Equal(t, 1, tally.TotalPride())
	assert.Equal(t, 1, tally.TotalAvoid())
}

func TestParseCodedIgnoresMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Tally
	}{
		{"unknown name", "[DO: Hug] there you go", Tally{}},
		{"wrong family", "[DO: Command] sit [DON'T: Praise] nice", Tally{}},
		{"no name", "[DO] something", Tally{}},
		{"unclosed", "[DO: Praise nice", Tally{}},
		{"neutral bare", "[NEUTRAL] ok", Tally{Neutral: 1}},
		{"neutral named", "[DO: Neutral] ok", Tally{Neutral: 1}},
		{"case and spacing", "[ do : reflect ] you built it", Tally{Reflect: 1}},
		{"dont variants", "[DONT: Question] [DO NOT: Criticism] [Don’t: Command]", Tally{Question: 1, Criticism: 1, Command: 1}},
		{"empty", "", Tally{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCoded(tt.text))
		})
	}
}

func TestParseCodedDeterministic(t *testing.T) {
	a := "Mom: [DO: Describe] You are stacking blocks.\nChild: yes\nMom: [DON'T: Question] Is it red?"
	b := "Child: yes\nMom: [DON'T: Question] Is it red? extra words\nMom: [DO: Describe] You are stacking blocks."

	assert.Equal(t, ParseCoded(a), ParseCoded(a))
	assert.Equal(t, ParseCoded(a), ParseCoded(b))
}

func TestTotalsMatchConstituents(t *testing.T) {
	for _, tally := range []Tally{
		{},
		{Praise: 3, Reflect: 1, Describe: 2, Imitate: 4, Question: 5, Command: 6, Criticism: 7, Neutral: 9},
		{Imitate: 1, Criticism: 2},
	} {
		assert.Equal(t, tally.Praise+tally.Reflect+tally.Describe+tally.Imitate, tally.TotalPride())
		assert.Equal(t, tally.Question+tally.Command+tally.Criticism, tally.TotalAvoid())
	}
}

func TestCount(t *testing.T) {
	tally := Count([]Tag{Praise, "", Praise, Tag("hug"), Neutral, Criticism})
	assert.Equal(t, Tally{Praise: 2, Neutral: 1, Criticism: 1}, tally)
	assert.Equal(t, Tally{}, Count(nil))
}

func TestAnnotate(t *testing.T) {
	t.Run("positional", func(t *testing.T) {
		text := "Speaker 0: Great tower! [DO: Praise]\n\nSpeaker 1: Look! [NEUTRAL]\nSpeaker 0: Put it down. [DON'T: Command]"
		assert.Equal(t, []Tag{Praise, Neutral, Command}, Annotate(text, 3))
	})
	t.Run("inline markers on one line", func(t *testing.T) {
		text := "[DO: Praise] Great job! [DON'T: Command] Sit down."
		got := Annotate(text, 2)
		assert.Equal(t, []Tag{Praise, Command}, got)
		assert.Equal(t, ParseCoded(text), Count(got))
	})
	t.Run("preamble takes no position", func(t *testing.T) {
		text := "Here is the coded transcript:\nGreat job! [DO: Praise]\nSit down. [DON'T: Command]"
		assert.Equal(t, []Tag{Praise, Command}, Annotate(text, 2))
	})
	t.Run("more markers than lines", func(t *testing.T) {
		text := "Coded:\nGreat tower! [DO: Praise] Put it down. [DON'T: Command]\nWhy? [DON'T: Question]"
		assert.Equal(t, []Tag{Praise, Command, Question}, Annotate(text, 3))
		assert.Equal(t, []Tag{Praise, Command}, Annotate(text, 2), "extra markers beyond n are dropped")
	})
	t.Run("first marker wins on a line", func(t *testing.T) {
		text := "[0] Good! [DO: Praise] [DO: Praise]\n[1] Stop. [DON'T: Command]"
		assert.Equal(t, []Tag{Praise, Command}, Annotate(text, 2))
	})
	t.Run("indexed line without marker", func(t *testing.T) {
		text := "[0] hmm\n[1] Nice! [DO: Praise]"
		assert.Equal(t, []Tag{"", Praise}, Annotate(text, 2))
	})
	t.Run("indexed", func(t *testing.T) {
		text := "[2] You drew a sun. [DO: Describe]\n[0] Hi [NEUTRAL]"
		assert.Equal(t, []Tag{Neutral, "", Describe}, Annotate(text, 3))
	})
	t.Run("out of range ignored", func(t *testing.T) {
		text := "[5] [DO: Praise] nice\n[0] [DO: Reflect] you said red"
		assert.Equal(t, []Tag{Reflect}, Annotate(text, 1))
	})
	t.Run("count matches annotate", func(t *testing.T) {
		text := "[0] [DO: Imitate] vroom\n[1] [DON'T: Criticism] no, wrong"
		assert.Equal(t, ParseCoded(text), Count(Annotate(text, 2)))
	})
}

func TestTagFamilies(t *testing.T) {
	for _, tag := range AllTags {
		assert.True(t, tag.Valid(), tag)
	}
	for _, tag := range DoTags {
		assert.Equal(t, Do, tag.Family())
	}
	for _, tag := range AvoidTags {
		assert.Equal(t, Avoid, tag.Family())
	}
	assert.Equal(t, Neither, Neutral.Family())
	assert.False(t, Tag("shout").Valid())
	assert.Equal(t, len(AllTags), len(DoTags)+len(AvoidTags)+1)
}

func TestTallyJSONIncludesTotals(t *testing.T) {
	b, err := json.Marshal(Tally{Praise: 2, Question: 1})
	require.NoError(t, err)

	var m map[string]int
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, 2, m["praise"])
	assert.Equal(t, 2, m["totalPride"])
	assert.Equal(t, 1, m["totalAvoid"])

	var back Tally
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Tally{Praise: 2, Question: 1}, back)
}
