// Package study holds the data model and file loaders for the per-subject
// trend report: measurement samples keyed by subject and library, with
// optional virus-species and superkingdom read counts.
package study

// OverflowBucket is assigned to samples that fall past the last configured
// phase. They are kept on the subject but excluded from every summary.
const OverflowBucket = "other"

// Config carries the fixed study constants. A single value is constructed at
// startup and passed through the pipeline; nothing reads these as globals.
type Config struct {
	// PhaseOrder is the ordered list of phase buckets used on the X axis.
	// Changing it changes bucket assignment and all downstream tables.
	PhaseOrder []string

	// BaselinePhases are the immediate pre-treatment buckets whose mean
	// defines a subject's baseline.
	BaselinePhases []string

	// FallbackPhases are tried in order when no sample landed in a baseline
	// phase; the first matching sample becomes the baseline.
	FallbackPhases []string

	// ControlSubjects are removed from the analysis entirely.
	ControlSubjects []string

	// Input file names, resolved against <base>/data/ then <base>/.
	MeasurementsCSV string
	MappingXLS      string
	MappingCSV      string
	SpeciesCSV      string
	TaxaRanksCSV    string
	TaxaReadsCSV    string
	SuperkingdomCSV string

	// Output defaults.
	PDFOut  string
	LogFile string
}

// DefaultConfig returns the ciprofloxacin study constants.
func DefaultConfig() Config {
	return Config{
		PhaseOrder: []string{
			"pre-9w",
			"pre-2d",
			"pre-1d",
			"day0",
			"day1",
			"day2",
			"day3",
			"day4",
			"day5",
			"day6",
			"day7",
			"day8",
			"day10",
			"day18",
			"day28",
			"day77",
		},
		BaselinePhases:  []string{"pre-2d", "pre-1d", "day0"},
		FallbackPhases:  []string{"pre-9w", "day0"},
		ControlSubjects: []string{"CAN", "CAC", "CAM", "CAK", "CAA"},

		MeasurementsCSV: "sample_to_virus_and_cellular_org_pct.csv",
		MappingXLS:      "subject_to_sample.xls",
		MappingCSV:      "subject_to_sample.csv",
		SpeciesCSV:      "sample_to_num_of_virus_species.csv",
		TaxaRanksCSV:    "virus_taxa_count_by_rank.csv",
		TaxaReadsCSV:    "self_count_per_taxa_rank.csv",
		SuperkingdomCSV: "reads_total_count_per_superkingdom.csv",

		PDFOut:  "per_subject_trends.pdf",
		LogFile: "trendreport.log",
	}
}
