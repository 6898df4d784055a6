package trend

import (
	"math"

	"github.com/gonum/stat"
	"github.com/montanaflynn/stats"

	"github.com/carbocation/trendreport/study"
)

// Row is one phase's aggregate over all subjects for a single quantity.
type Row struct {
	Phase     string
	NSamples  int
	NSubjects int
	Mean      float64
	StdDev    float64
	StdErr    float64
	Median    float64
}

// Table is a per-quantity summary, rows in configured phase order. Phases
// with no valid data are absent rather than zero-filled.
type Table struct {
	Key      string
	Relative bool
	Rows     []Row
}

// Empty reports whether the table has no rows at all.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Summarize aggregates one quantity across all subjects, by phase, in the
// given phase order. When relative is true the samples' relative-to-baseline
// values are aggregated instead of the absolute ones; invalid values never
// contribute. The overflow bucket is never summarized.
func Summarize(subjects []*study.Subject, key string, relative bool, phaseOrder []string) Table {
	out := Table{Key: key, Relative: relative}

	for _, phase := range phaseOrder {
		var vals []float64
		subjectsSeen := make(map[string]bool)

		for _, sub := range subjects {
			for _, sample := range sub.Samples {
				if sample.Bucket != phase {
					continue
				}
				v := sample.Value(key)
				if relative {
					v = sample.RelValue(key)
				}
				if !v.Valid {
					continue
				}
				vals = append(vals, v.Float64)
				subjectsSeen[sub.ID] = true
			}
		}

		if len(vals) == 0 {
			continue
		}

		row := Row{
			Phase:     phase,
			NSamples:  len(vals),
			NSubjects: len(subjectsSeen),
		}

		if len(vals) == 1 {
			// A lone value has no sample spread; report zero rather than
			// letting the n-1 denominator produce NaN.
			row.Mean = vals[0]
			row.Median = vals[0]
		} else {
			row.Mean, row.StdDev = stat.MeanStdDev(vals, nil)
			row.StdErr = row.StdDev / math.Sqrt(float64(len(vals)))
			if med, err := stats.Median(vals); err == nil {
				row.Median = med
			}
		}

		out.Rows = append(out.Rows, row)
	}

	return out
}

// CollapseBaseline merges the baseline-phase rows of a relative summary into
// a single "baseline" row for plotting, weighted by sample counts, so the
// fold-change charts show one pre-treatment reference point instead of
// several near-1.0 points. Tables without baseline rows pass through
// untouched.
func CollapseBaseline(t Table, baselinePhases []string) Table {
	var combined Row
	var wsum float64
	firstAt := -1

	for i, row := range t.Rows {
		if !inPhases(row.Phase, baselinePhases) {
			continue
		}
		if firstAt < 0 {
			firstAt = i
		}
		w := float64(row.NSamples)
		combined.Mean += row.Mean * w
		combined.StdErr += row.StdErr * w
		combined.Median += row.Median * w
		combined.NSamples += row.NSamples
		combined.NSubjects += row.NSubjects
		wsum += w
	}

	if firstAt < 0 {
		return t
	}

	combined.Phase = "baseline"
	combined.Mean /= wsum
	combined.StdErr /= wsum
	combined.Median /= wsum

	out := Table{Key: t.Key, Relative: t.Relative}
	for i, row := range t.Rows {
		if i == firstAt {
			out.Rows = append(out.Rows, combined)
		}
		if inPhases(row.Phase, baselinePhases) {
			continue
		}
		out.Rows = append(out.Rows, row)
	}

	return out
}

// Summaries holds the absolute and relative tables for every quantity key.
type Summaries struct {
	Absolute map[string]Table
	Relative map[string]Table
}

// SummarizeAll builds absolute and relative tables for all of the dataset's
// quantity keys, including kingdom reads and fractions when present.
func SummarizeAll(ds *study.Dataset, phaseOrder []string) Summaries {
	out := Summaries{
		Absolute: make(map[string]Table),
		Relative: make(map[string]Table),
	}

	for _, key := range ds.AllKeys() {
		out.Absolute[key] = Summarize(ds.Subjects, key, false, phaseOrder)
		out.Relative[key] = Summarize(ds.Subjects, key, true, phaseOrder)
	}

	return out
}
