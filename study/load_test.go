package study

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

const measurementsCSV = `acc,sample_name,name,pct
SRR000001,lib1,Viruses,2.0
SRR000001,lib1,cellular organisms,98.0
SRR000002,lib2,Viruses,4.0
SRR000002,lib2,cellular organisms,96.0
SRR000003,lib3,Viruses,1.0
SRR000003,lib3,cellular organisms,99.0
SRR000004,lib4,Viruses,notanumber
`

const mappingCSV = `library,subject,day
lib1,S1,-63
lib2,S1,0
lib3,CAA,0
`

func TestLoad(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	writeFile(t, dir, cfg.MeasurementsCSV, measurementsCSV)
	writeFile(t, dir, cfg.MappingCSV, mappingCSV)

	ds, err := Load(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(ds.Subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(ds.Subjects))
	}
	// Subjects sorted by ID.
	if ds.Subjects[0].ID != "CAA" || ds.Subjects[1].ID != "S1" {
		t.Fatalf("unexpected subject order: %s, %s", ds.Subjects[0].ID, ds.Subjects[1].ID)
	}

	s1 := ds.Subject("S1")
	if len(s1.Samples) != 2 {
		t.Fatalf("S1: expected 2 samples, got %d", len(s1.Samples))
	}
	// Samples sorted by day; long rows pivoted wide.
	first := s1.Samples[0]
	if first.Library != "lib1" || first.Day != -63 {
		t.Fatalf("S1 first sample: %+v", first)
	}
	if v := first.Value(PctVir); !v.Valid || v.Float64 != 2.0 {
		t.Fatalf("lib1 pct_vir: %+v", v)
	}
	if v := first.Value(PctCel); !v.Valid || v.Float64 != 98.0 {
		t.Fatalf("lib1 pct_cel: %+v", v)
	}

	// Without the species file, only the two primary quantities exist.
	if len(ds.Quantities) != 2 {
		t.Fatalf("expected 2 quantities, got %v", ds.Quantities)
	}
}

func TestLoadMissingPrimaryIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	writeFile(t, dir, cfg.MappingCSV, mappingCSV)

	if _, err := Load(cfg, dir); err == nil {
		t.Fatal("expected error for missing primary measurements file")
	}
}

func TestLoadMissingMappingIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	writeFile(t, dir, cfg.MeasurementsCSV, measurementsCSV)

	if _, err := Load(cfg, dir); err == nil {
		t.Fatal("expected error for missing subject-to-sample mapping")
	}
}

func TestLoadPrefersDataSubdirectory(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "data"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "data"), cfg.MeasurementsCSV, measurementsCSV)
	writeFile(t, filepath.Join(dir, "data"), cfg.MappingCSV, mappingCSV)

	ds, err := Load(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(ds.Subjects))
	}
}

func TestLoadMergesSpeciesCounts(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	writeFile(t, dir, cfg.MeasurementsCSV, measurementsCSV)
	writeFile(t, dir, cfg.MappingCSV, mappingCSV)
	// The class-level normalized column is preferred over num_virus_species.
	writeFile(t, dir, cfg.SpeciesCSV, `sample_name,num_virus_species,tax_id_normalized_to_class_level_count
lib1,99,20
lib2,99,40
`)

	ds, err := Load(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(ds.Quantities) != 3 || ds.Quantities[2] != NumVirusSpecies {
		t.Fatalf("expected species quantity, got %v", ds.Quantities)
	}

	s1 := ds.Subject("S1")
	if v := s1.Samples[0].Value(NumVirusSpecies); !v.Valid || v.Float64 != 20 {
		t.Fatalf("lib1 species count: %+v", v)
	}
}

func TestLoadMappingWithDates(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	writeFile(t, dir, cfg.MeasurementsCSV, measurementsCSV)
	writeFile(t, dir, cfg.MappingCSV, `library,subject,day,date
lib1,S1,,2019-01-01
lib2,S1,,2019-01-15
`)

	ds, err := Load(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}

	s1 := ds.Subject("S1")
	if len(s1.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(s1.Samples))
	}
	if s1.Samples[0].Day != 0 || s1.Samples[1].Day != 14 {
		t.Fatalf("date-derived days: got %v and %v, expected 0 and 14", s1.Samples[0].Day, s1.Samples[1].Day)
	}
}

func TestFilterControls(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	writeFile(t, dir, cfg.MeasurementsCSV, measurementsCSV)
	writeFile(t, dir, cfg.MappingCSV, mappingCSV)

	ds, err := Load(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}

	FilterControls(ds, cfg.ControlSubjects)

	if len(ds.Subjects) != 1 || ds.Subjects[0].ID != "S1" {
		t.Fatalf("expected only S1 after control filtering, got %d subjects", len(ds.Subjects))
	}
}

func TestLoadOptionalFilesAbsent(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()

	if ranks, err := LoadTaxaRanks(cfg, dir); err != nil || ranks != nil {
		t.Fatalf("absent taxa ranks: got %v, %v", ranks, err)
	}
	if reads, err := LoadTaxaReads(cfg, dir); err != nil || reads != nil {
		t.Fatalf("absent taxa reads: got %v, %v", reads, err)
	}
	if sk, err := LoadSuperkingdomReads(cfg, dir); err != nil || sk != nil {
		t.Fatalf("absent superkingdom reads: got %v, %v", sk, err)
	}
}

func TestLoadSuperkingdomReads(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	writeFile(t, dir, cfg.SuperkingdomCSV, `sample_name,name,total_count
lib1,Bacteria,1000
lib1,Viruses,50
lib2,Bacteria,2000
lib2,Viruses,bogus
`)

	reads, err := LoadSuperkingdomReads(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(reads) != 2 {
		t.Fatalf("expected 2 libraries, got %d", len(reads))
	}
	if reads["lib1"]["Bacteria"] != 1000 || reads["lib1"]["Viruses"] != 50 {
		t.Fatalf("lib1 counts: %+v", reads["lib1"])
	}
	// The malformed lib2 Viruses row is skipped, not fatal.
	if _, ok := reads["lib2"]["Viruses"]; ok {
		t.Fatalf("expected malformed row to be skipped: %+v", reads["lib2"])
	}
}

func TestLoadTaxaRanksSortedDescending(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	writeFile(t, dir, cfg.TaxaRanksCSV, `rank,num_taxa
genus,3094
species,120825
,7
order,4015
`)

	ranks, err := LoadTaxaRanks(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}

	// Blank ranks dropped; remainder sorted by count, descending.
	expected := []RankCount{
		{Rank: "species", Count: 120825},
		{Rank: "order", Count: 4015},
		{Rank: "genus", Count: 3094},
	}
	if len(ranks) != len(expected) {
		t.Fatalf("expected %d ranks, got %+v", len(expected), ranks)
	}
	for i := range expected {
		if ranks[i] != expected[i] {
			t.Fatalf("rank %d: got %+v, expected %+v", i, ranks[i], expected[i])
		}
	}
}

func TestLoadGzippedMeasurements(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()

	buf := &bytes.Buffer{}
	zw := gzip.NewWriter(buf)
	if _, err := zw.Write([]byte(measurementsCSV)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, cfg.MeasurementsCSV), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, cfg.MappingCSV, mappingCSV)

	ds, err := Load(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Subjects) != 2 {
		t.Fatalf("expected 2 subjects from gzipped input, got %d", len(ds.Subjects))
	}
}

func TestLoadSkipsShortRows(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()

	// A truncated row must be skipped, not crash the load.
	short := `acc,sample_name,name,pct
SRR000001,lib1,Viruses,2.0
SRR000001,lib1,cellular organisms,98.0
SRR000002,lib2
SRR000002,lib2,Viruses,4.0
`
	writeFile(t, dir, cfg.MeasurementsCSV, short)
	writeFile(t, dir, cfg.MappingCSV, mappingCSV)

	ds, err := Load(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}

	s1 := ds.Subject("S1")
	if s1 == nil || len(s1.Samples) != 2 {
		t.Fatalf("expected 2 S1 samples after skipping the short row, got %+v", s1)
	}
	lib2 := s1.Samples[1]
	if v := lib2.Value(PctVir); !v.Valid || v.Float64 != 4.0 {
		t.Fatalf("lib2 pct_vir: %+v", v)
	}
	if v := lib2.Value(PctCel); v.Valid {
		t.Fatalf("lib2 pct_cel should be missing, got %+v", v)
	}
}
