package trend

import (
	"math"
	"testing"

	"github.com/carbocation/trendreport/study"
)

func TestSummarizePhaseOrderIndependentOfInputOrder(t *testing.T) {
	phases := []string{"baseline", "early", "late"}

	mk := func(subject, bucket string, v float64) *study.Sample {
		s := &study.Sample{Subject: subject, Bucket: bucket}
		s.SetValue(study.PctVir, v)
		return s
	}

	// Buckets deliberately out of phase order within each subject.
	subjects := []*study.Subject{
		{ID: "S1", Samples: []*study.Sample{
			mk("S1", "late", 3),
			mk("S1", "baseline", 1),
			mk("S1", "early", 2),
		}},
		{ID: "S2", Samples: []*study.Sample{
			mk("S2", "early", 4),
			mk("S2", "late", 5),
			mk("S2", "baseline", 3),
		}},
	}

	table := Summarize(subjects, study.PctVir, false, phases)

	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table.Rows))
	}
	for i, expected := range phases {
		if table.Rows[i].Phase != expected {
			t.Fatalf("row %d: got phase %q, expected %q", i, table.Rows[i].Phase, expected)
		}
	}

	early := table.Rows[1]
	if early.NSamples != 2 || early.NSubjects != 2 {
		t.Fatalf("early: got n=%d subjects=%d, expected 2/2", early.NSamples, early.NSubjects)
	}
	if math.Abs(early.Mean-3.0) > 1e-12 {
		t.Fatalf("early mean: got %v, expected 3.0", early.Mean)
	}
	if math.Abs(early.Median-3.0) > 1e-12 {
		t.Fatalf("early median: got %v, expected 3.0", early.Median)
	}
}

// A single subject with one pre-treatment and one treated sample: the treated
// phase summarizes to the raw value absolutely and to the fold change
// relatively.
func TestSummarizeSingleSubjectExample(t *testing.T) {
	cfg := study.DefaultConfig()
	cfg.PhaseOrder = []string{"day0", "early"}
	cfg.BaselinePhases = []string{"day0"}
	cfg.FallbackPhases = []string{"day0"}

	sub := &study.Subject{ID: "S1", Samples: []*study.Sample{
		newSample("S1", 0, 10.0, 100.0),
		newSample("S1", 14, 5.0, 50.0),
	}}
	AssignBuckets(sub, cfg.PhaseOrder)
	Relativize(sub, cfg, []string{study.PctVir})

	abs := Summarize([]*study.Subject{sub}, study.PctVir, false, cfg.PhaseOrder)
	rel := Summarize([]*study.Subject{sub}, study.PctVir, true, cfg.PhaseOrder)

	if len(abs.Rows) != 2 || abs.Rows[1].Phase != "early" {
		t.Fatalf("unexpected absolute table: %+v", abs.Rows)
	}
	if abs.Rows[1].Mean != 5.0 {
		t.Fatalf("early absolute mean: got %v, expected 5.0", abs.Rows[1].Mean)
	}
	if rel.Rows[1].Mean != 0.5 {
		t.Fatalf("early relative mean: got %v, expected 0.5", rel.Rows[1].Mean)
	}

	// Lone values must not produce NaN spread.
	if math.IsNaN(abs.Rows[1].StdDev) || math.IsNaN(abs.Rows[1].StdErr) {
		t.Fatalf("single-value phase produced NaN spread: %+v", abs.Rows[1])
	}
}

func TestSummarizeSkipsInvalidAndOverflow(t *testing.T) {
	phases := []string{"baseline", "early"}

	sub := &study.Subject{ID: "S1", Samples: []*study.Sample{
		{Subject: "S1", Bucket: "baseline"},              // no value at all
		{Subject: "S1", Bucket: study.OverflowBucket},    // never summarized
		{Subject: "S1", Bucket: "early"},                 // no value at all
	}}

	table := Summarize([]*study.Subject{sub}, study.PctVir, false, phases)
	if !table.Empty() {
		t.Fatalf("expected empty table for all-missing quantity, got %+v", table.Rows)
	}
}

func TestSummarizeDeterministic(t *testing.T) {
	cfg := study.DefaultConfig()

	sub := &study.Subject{ID: "S1", Samples: []*study.Sample{
		newSample("S1", -2, 2, 20),
		newSample("S1", -1, 4, 40),
		newSample("S1", 0, 6, 60),
		newSample("S1", 1, 8, 80),
	}}
	AssignBuckets(sub, cfg.PhaseOrder)
	Relativize(sub, cfg, []string{study.PctVir, study.PctCel})

	a := Summarize([]*study.Subject{sub}, study.PctVir, false, cfg.PhaseOrder)
	b := Summarize([]*study.Subject{sub}, study.PctVir, false, cfg.PhaseOrder)

	if len(a.Rows) != len(b.Rows) {
		t.Fatalf("row counts differ: %d vs %d", len(a.Rows), len(b.Rows))
	}
	for i := range a.Rows {
		if a.Rows[i] != b.Rows[i] {
			t.Fatalf("row %d differs: %+v vs %+v", i, a.Rows[i], b.Rows[i])
		}
	}
}

func TestCollapseBaseline(t *testing.T) {
	baseline := []string{"pre-2d", "pre-1d", "day0"}

	table := Table{
		Key:      study.PctVir,
		Relative: true,
		Rows: []Row{
			{Phase: "pre-9w", NSamples: 2, NSubjects: 2, Mean: 1.0},
			{Phase: "pre-2d", NSamples: 1, NSubjects: 1, Mean: 1.0},
			{Phase: "pre-1d", NSamples: 3, NSubjects: 3, Mean: 2.0},
			{Phase: "day1", NSamples: 2, NSubjects: 2, Mean: 4.0},
		},
	}

	out := CollapseBaseline(table, baseline)

	expected := []string{"pre-9w", "baseline", "day1"}
	if len(out.Rows) != len(expected) {
		t.Fatalf("expected %d rows, got %+v", len(expected), out.Rows)
	}
	for i, phase := range expected {
		if out.Rows[i].Phase != phase {
			t.Fatalf("row %d: got %q, expected %q", i, out.Rows[i].Phase, phase)
		}
	}

	combined := out.Rows[1]
	if combined.NSamples != 4 {
		t.Fatalf("combined n: got %d, expected 4", combined.NSamples)
	}
	// Weighted mean: (1*1 + 2*3) / 4 = 1.75
	if math.Abs(combined.Mean-1.75) > 1e-12 {
		t.Fatalf("combined mean: got %v, expected 1.75", combined.Mean)
	}

	// No baseline rows: table passes through untouched.
	noBase := Table{Rows: []Row{{Phase: "day1"}, {Phase: "day2"}}}
	if out := CollapseBaseline(noBase, baseline); len(out.Rows) != 2 {
		t.Fatalf("expected passthrough, got %+v", out.Rows)
	}
}

func TestMergeKingdomReads(t *testing.T) {
	ds := &study.Dataset{Subjects: []*study.Subject{
		{ID: "S1", Samples: []*study.Sample{
			{Subject: "S1", Library: "lib1"},
		}},
	}}

	reads := map[string]map[string]float64{
		"lib1": {"Bacteria": 75, "Viruses": 25},
	}

	MergeKingdomReads(ds, reads)

	if len(ds.Kingdoms) != 2 || ds.Kingdoms[0] != "Bacteria" || ds.Kingdoms[1] != "Viruses" {
		t.Fatalf("kingdoms: got %v", ds.Kingdoms)
	}

	sample := ds.Subjects[0].Samples[0]
	if v := sample.Value("Bacteria"); !v.Valid || v.Float64 != 75 {
		t.Fatalf("Bacteria reads: got %+v", v)
	}
	if v := sample.Value(study.FracKey("Bacteria")); !v.Valid || math.Abs(v.Float64-0.75) > 1e-12 {
		t.Fatalf("Bacteria fraction: got %+v", v)
	}
	if v := sample.Value(study.FracKey("Viruses")); !v.Valid || math.Abs(v.Float64-0.25) > 1e-12 {
		t.Fatalf("Viruses fraction: got %+v", v)
	}
}
