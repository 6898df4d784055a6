package study

import (
	"sort"

	"gopkg.in/guregu/null.v3"
)

// Well-known quantity keys. Superkingdom read counts use the kingdom name
// itself as the key (e.g. "Bacteria"), and FracKey derives the per-sample
// fraction key from it.
const (
	PctVir          = "pct_vir"
	PctCel          = "pct_cel"
	NumVirusSpecies = "num_virus_species"
)

// FracKey returns the quantity key for a kingdom's fraction of total reads.
func FracKey(kingdom string) string { return kingdom + "_frac" }

// Sample is one sequenced library for one subject. Quantity values live in
// Values; relative-to-baseline values are filled into Rel by the trend
// package. A missing quantity is an invalid null.Float, never a zero.
type Sample struct {
	Acc     string
	Library string
	Subject string
	Day     float64
	Bucket  string

	Values map[string]null.Float
	Rel    map[string]null.Float
}

// Value returns the sample's value for key, invalid when absent.
func (s *Sample) Value(key string) null.Float {
	return s.Values[key]
}

// SetValue records a valid value for key.
func (s *Sample) SetValue(key string, v float64) {
	if s.Values == nil {
		s.Values = make(map[string]null.Float)
	}
	s.Values[key] = null.FloatFrom(v)
}

// SetRel records a relative-to-baseline value for key.
func (s *Sample) SetRel(key string, v null.Float) {
	if s.Rel == nil {
		s.Rel = make(map[string]null.Float)
	}
	s.Rel[key] = v
}

// RelValue returns the sample's relative value for key, invalid when absent.
func (s *Sample) RelValue(key string) null.Float {
	return s.Rel[key]
}

// Subject owns a day-ordered sequence of samples.
type Subject struct {
	ID      string
	Samples []*Sample
}

// SortByDay orders the subject's samples by day offset. The sort is stable so
// repeated runs over the same input produce the same ordering.
func (s *Subject) SortByDay() {
	sort.SliceStable(s.Samples, func(i, j int) bool {
		return s.Samples[i].Day < s.Samples[j].Day
	})
}

// Dataset is everything loaded for one run.
type Dataset struct {
	// Subjects sorted by ID, samples sorted by day.
	Subjects []*Subject

	// Quantities present in the primary data, in display order.
	Quantities []string

	// Kingdoms with superkingdom read counts, sorted, empty when the
	// optional superkingdom file was absent.
	Kingdoms []string
}

// Subject returns the subject with the given ID, or nil.
func (d *Dataset) Subject(id string) *Subject {
	for _, sub := range d.Subjects {
		if sub.ID == id {
			return sub
		}
	}
	return nil
}

// NSamples counts all samples across subjects.
func (d *Dataset) NSamples() int {
	n := 0
	for _, sub := range d.Subjects {
		n += len(sub.Samples)
	}
	return n
}

// AllKeys lists every quantity key that may carry relative values: the
// primary quantities plus kingdom read counts and fractions.
func (d *Dataset) AllKeys() []string {
	keys := append([]string{}, d.Quantities...)
	for _, k := range d.Kingdoms {
		keys = append(keys, k, FracKey(k))
	}
	return keys
}

// sortSubjects fixes the subject ordering after loading.
func sortSubjects(subjects []*Subject) {
	sort.Slice(subjects, func(i, j int) bool {
		return subjects[i].ID < subjects[j].ID
	})
	for _, sub := range subjects {
		sub.SortByDay()
	}
}
