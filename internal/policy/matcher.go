package policy

import (
	"sort"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Per-dimension match weights. More specific dimensions weigh more.
const (
	WeightMeasure  = 3
	WeightIndustry = 2
	WeightAdmin    = 1
)

// candidate accumulates the score of one clause while tags are looked up.
type candidate struct {
	idx          int
	score        int
	intersection blackboard.TagSet
}

// Match scores every clause sharing at least one tag with the measure and returns them
// best first: score descending, then fewer clause tags, then clause ID. It is a pure
// function of its inputs; an empty tag set yields an empty result.
func Match(measureID string, tags blackboard.TagSet, corpus *Corpus) blackboard.MatchResult {
	result := blackboard.MatchResult{MeasureID: measureID, Matches: []blackboard.ClauseMatch{}}
	if corpus == nil || tags.IsEmpty() {
		return result
	}

	found := make(map[int]*candidate)
	lookup := func(dim map[string][]int, measureTags []string, weight int, add func(*blackboard.TagSet, string)) {
		for _, tag := range blackboard.NormalizeTags(measureTags) {
			for _, idx := range dim[tag] {
				c, ok := found[idx]
				if !ok {
					c = &candidate{idx: idx}
					found[idx] = c
				}
				c.score += weight
				add(&c.intersection, tag)
			}
		}
	}

	lookup(corpus.byMeasure, tags.MeasureIDs, WeightMeasure, func(t *blackboard.TagSet, tag string) {
		t.MeasureIDs = append(t.MeasureIDs, tag)
	})
	lookup(corpus.byIndustry, tags.IndustryCodes, WeightIndustry, func(t *blackboard.TagSet, tag string) {
		t.IndustryCodes = append(t.IndustryCodes, tag)
	})
	lookup(corpus.byAdmin, tags.AdminCodes, WeightAdmin, func(t *blackboard.TagSet, tag string) {
		t.AdminCodes = append(t.AdminCodes, tag)
	})

	for _, c := range found {
		if c.score <= 0 {
			continue
		}
		clause := corpus.clauses[c.idx]
		result.Matches = append(result.Matches, blackboard.ClauseMatch{
			ClauseID:     clause.ID,
			Score:        c.score,
			Specificity:  clause.Specificity(),
			Intersection: nonNilTags(c.intersection),
		})
	}

	sort.Slice(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Specificity != b.Specificity {
			return a.Specificity < b.Specificity
		}
		return a.ClauseID < b.ClauseID
	})

	return result
}

// nonNilTags replaces nil dimensions with empty slices so encoded results are stable.
func nonNilTags(t blackboard.TagSet) blackboard.TagSet {
	if t.AdminCodes == nil {
		t.AdminCodes = []string{}
	}
	if t.IndustryCodes == nil {
		t.IndustryCodes = []string{}
	}
	if t.MeasureIDs == nil {
		t.MeasureIDs = []string{}
	}
	return t
}
