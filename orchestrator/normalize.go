package orchestrator

import (
	"strconv"
	"strings"
)

// Word is one diarized word as a provider reports it.
type Word struct {
	Text    string
	Start   float64
	End     float64
	Speaker string // raw label, e.g. "speaker_1"
}

// Turn is one diarized speech turn as a provider reports it.
type Turn struct {
	Speaker string // raw label: "A", "1", "speaker_0"
	Text    string
	Start   float64
	End     float64
}

// SpeakerIndex maps a provider label to a zero-based index:
// "speaker_3" -> 3, "2" -> 2, "A" -> 0, "b" -> 1.
func SpeakerIndex(label string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(label))
	for _, prefix := range []string{"speaker_", "speaker ", "speaker", "spk_"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n, true
	}
	if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
		return int(s[0] - 'a'), true
	}
	return 0, false
}

// speakerMap resolves labels, handing out first-seen indices for labels that don't parse.
type speakerMap struct {
	unknown map[string]int
	next    int
}

func (m *speakerMap) index(label string) int {
	if n, ok := SpeakerIndex(label); ok {
		if n >= m.next {
			m.next = n + 1
		}
		return n
	}
	if m.unknown == nil {
		m.unknown = map[string]int{}
	}
	if n, ok := m.unknown[label]; ok {
		return n
	}
	n := m.next
	m.unknown[label] = n
	m.next++
	return n
}

// GroupWords folds consecutive same-speaker words into utterances. A new utterance
// starts exactly when the speaker label changes; its end is its last word's end.
func GroupWords(words []Word) []Utterance {
	var (
		out   []Utterance
		parts []string
		cur   *Utterance
		label string
		spk   speakerMap
	)
	flush := func() {
		if cur != nil && len(parts) > 0 {
			cur.Text = strings.Join(parts, " ")
			out = append(out, *cur)
		}
		cur, parts = nil, nil
	}
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		if cur == nil || w.Speaker != label {
			flush()
			label = w.Speaker
			cur = &Utterance{Speaker: spk.index(w.Speaker), Start: w.Start}
		}
		parts = append(parts, text)
		cur.End = w.End
	}
	flush()
	return out
}

// FromTurns maps each non-empty turn to one utterance.
func FromTurns(turns []Turn) []Utterance {
	var spk speakerMap
	out := make([]Utterance, 0, len(turns))
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		out = append(out, Utterance{Speaker: spk.index(t.Speaker), Text: text, Start: t.Start, End: t.End})
	}
	return out
}

// Fallback is the non-diarized shape: one speaker-0 utterance over the whole recording.
func Fallback(text string, duration float64) []Utterance {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return []Utterance{{Speaker: 0, Text: text, Start: 0, End: duration}}
}

// orFallback keeps diarized utterances when there are any, otherwise falls back to the
// plain transcript.
func orFallback(utts []Utterance, text string, duration float64) []Utterance {
	if len(utts) > 0 {
		return utts
	}
	return Fallback(text, duration)
}
