package study

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"

	"github.com/carbocation/trendreport"
)

// RankCount is one taxonomic rank with an associated count (distinct taxa or
// classified reads, depending on the source file).
type RankCount struct {
	Rank  string
	Count float64
}

// Numeric columns are declared as strings and parsed leniently so one
// malformed row is skipped instead of aborting the whole file.
type taxaRankRow struct {
	Rank    string `csv:"rank"`
	NumTaxa string `csv:"num_taxa"`
}

type taxaReadsRow struct {
	Rank  string `csv:"rank"`
	Reads string `csv:"reads_at_rank"`
}

// parseCount converts a cell into a count, reporting absence or garbage as
// invalid.
func parseCount(cell string) null.Float {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

// LoadTaxaRanks reads the optional distinct-taxa-per-rank file. Returns nil
// with a logged notice when the file is absent.
func LoadTaxaRanks(cfg Config, baseDir string) ([]RankCount, error) {
	path := ResolveDataPath(baseDir, cfg.TaxaRanksCSV)
	f, err := trendreport.OpenDataFile(path)
	if os.IsNotExist(err) {
		log.Printf("Virus taxa CSV not found at %s; skipping taxa pages", path)
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	rows := []*taxaRankRow{}
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]RankCount, 0, len(rows))
	for _, row := range rows {
		count := parseCount(row.NumTaxa)
		if row.Rank == "" || !count.Valid {
			continue
		}
		out = append(out, RankCount{Rank: row.Rank, Count: count.Float64})
	}
	sortRankCounts(out)

	log.Printf("Loaded %d taxonomic ranks from %s", len(out), path)

	return out, nil
}

// LoadTaxaReads reads the optional classified-reads-per-rank file. Returns
// nil with a logged notice when the file is absent.
func LoadTaxaReads(cfg Config, baseDir string) ([]RankCount, error) {
	path := ResolveDataPath(baseDir, cfg.TaxaReadsCSV)
	f, err := trendreport.OpenDataFile(path)
	if os.IsNotExist(err) {
		log.Printf("Virus taxa reads CSV not found at %s; skipping reads page", path)
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	rows := []*taxaReadsRow{}
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]RankCount, 0, len(rows))
	for _, row := range rows {
		count := parseCount(row.Reads)
		if row.Rank == "" || !count.Valid {
			continue
		}
		out = append(out, RankCount{Rank: row.Rank, Count: count.Float64})
	}
	sortRankCounts(out)

	log.Printf("Loaded %d taxonomic ranks with read counts from %s", len(out), path)

	return out, nil
}

func sortRankCounts(rc []RankCount) {
	sort.SliceStable(rc, func(i, j int) bool {
		return rc[i].Count > rc[j].Count
	})
}

type superkingdomRow struct {
	SampleName string `csv:"sample_name"`
	Name       string `csv:"name"`
	TotalCount string `csv:"total_count"`
}

// LoadSuperkingdomReads reads the optional per-sample, per-superkingdom total
// read counts, returning library -> kingdom -> count. Returns nil with a
// logged notice when the file is absent.
func LoadSuperkingdomReads(cfg Config, baseDir string) (map[string]map[string]float64, error) {
	path := ResolveDataPath(baseDir, cfg.SuperkingdomCSV)
	f, err := trendreport.OpenDataFile(path)
	if os.IsNotExist(err) {
		log.Printf("Superkingdom reads CSV not found at %s; skipping superkingdom pages", path)
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	rows := []*superkingdomRow{}
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make(map[string]map[string]float64)
	skipped := 0
	for _, row := range rows {
		count := parseCount(row.TotalCount)
		if row.SampleName == "" || row.Name == "" || !count.Valid {
			skipped++
			continue
		}
		byKingdom := out[row.SampleName]
		if byKingdom == nil {
			byKingdom = make(map[string]float64)
			out[row.SampleName] = byKingdom
		}
		byKingdom[row.Name] = count.Float64
	}

	if skipped > 0 {
		log.Printf("Warning: skipped %d malformed superkingdom rows in %s", skipped, path)
	}
	log.Printf("Loaded superkingdom read counts for %d libraries", len(out))

	return out, nil
}
