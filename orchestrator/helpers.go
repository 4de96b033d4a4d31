package orchestrator

import (
	"math"
	"sort"
)

// speakingShare returns each label's fraction of total talk time and the fraction
// of the session during which more than one speaker was talking.
func speakingShare(utts []Utterance) (map[string]float64, float64) {
	if len(utts) == 0 {
		return nil, 0
	}
	share := map[string]float64{}
	total := 0.0

	type edge struct {
		t     float64
		delta int
	}
	edges := make([]edge, 0, 2*len(utts))
	start, end := utts[0].Start, utts[0].End
	for _, u := range utts {
		d := math.Max(0, u.End-u.Start)
		total += d
		share[u.Label()] += d
		edges = append(edges, edge{t: u.Start, delta: +1}, edge{t: u.End, delta: -1})
		start = math.Min(start, u.Start)
		end = math.Max(end, u.End)
	}
	// ends sort before starts at the same instant so touching turns don't overlap
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].t == edges[j].t {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].t < edges[j].t
	})

	active := 0
	last := edges[0].t
	overlap := 0.0
	for _, e := range edges {
		if active > 1 {
			overlap += e.t - last
		}
		active += e.delta
		last = e.t
	}

	if total > 0 {
		for k := range share {
			share[k] /= total
		}
	}
	rate := 0.0
	if span := end - start; span > 0 {
		rate = overlap / span
	}
	return share, rate
}
