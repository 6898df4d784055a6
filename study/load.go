package study

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/carbocation/pfx"
	"github.com/extrame/xls"
	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"

	"github.com/carbocation/trendreport"
)

// ResolveDataPath returns the path for filename, preferring
// <baseDir>/data/<filename> when it exists.
func ResolveDataPath(baseDir, filename string) string {
	dataPath := filepath.Join(baseDir, "data", filename)
	if _, err := os.Stat(dataPath); err == nil {
		return dataPath
	}
	return filepath.Join(baseDir, filename)
}

// Load reads the primary measurements file and the subject-to-sample mapping
// under baseDir and returns the merged dataset. Both files are required; the
// optional per-sample species-count file is merged in when present. Malformed
// rows are skipped with a logged warning.
func Load(cfg Config, baseDir string) (*Dataset, error) {
	measurements, err := loadMeasurements(ResolveDataPath(baseDir, cfg.MeasurementsCSV))
	if err != nil {
		return nil, pfx.Err(err)
	}

	mapping, err := loadMapping(cfg, baseDir)
	if err != nil {
		return nil, pfx.Err(err)
	}

	ds := mergeMeasurements(measurements, mapping)

	hasSpecies, err := mergeSpecies(ds, ResolveDataPath(baseDir, cfg.SpeciesCSV))
	if err != nil {
		return nil, pfx.Err(err)
	}

	ds.Quantities = []string{PctVir, PctCel}
	if hasSpecies {
		ds.Quantities = append(ds.Quantities, NumVirusSpecies)
	}

	log.Printf("Loaded %d samples across %d subjects", ds.NSamples(), len(ds.Subjects))

	return ds, nil
}

// measurement is the wide form of one library's rows from the long-format
// primary CSV (acc, sample_name, name, pct).
type measurement struct {
	Acc    string
	PctVir null.Float
	PctCel null.Float
}

func loadMeasurements(path string) (map[string]measurement, error) {
	f, err := trendreport.OpenDataFile(path)
	if err != nil {
		return nil, fmt.Errorf("primary measurements file: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	delim := trendreport.DetermineDelimiter(bytes.NewReader(raw))

	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = delim
	r.FieldsPerRecord = -1

	var accCol, libCol, nameCol, pctCol, maxCol int
	out := make(map[string]measurement)

	for i := 0; ; i++ {
		line, err := r.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		if i == 0 {
			cols, err := headerIndex(line, "acc", "sample_name", "name", "pct")
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			accCol, libCol, nameCol, pctCol = cols[0], cols[1], cols[2], cols[3]
			for _, c := range cols {
				if c > maxCol {
					maxCol = c
				}
			}
			continue
		}

		if len(line) <= maxCol {
			log.Printf("Warning: skipping row %d of %s: %d fields, expected at least %d", i+1, filepath.Base(path), len(line), maxCol+1)
			continue
		}

		pct, err := strconv.ParseFloat(strings.TrimSpace(line[pctCol]), 64)
		if err != nil {
			log.Printf("Warning: skipping row %d of %s: bad pct %q", i+1, filepath.Base(path), line[pctCol])
			continue
		}

		lib := line[libCol]
		m := out[lib]
		m.Acc = line[accCol]

		// Pivot the long format wide: one column per organism group.
		switch line[nameCol] {
		case "Viruses":
			m.PctVir = null.FloatFrom(pct)
		case "cellular organisms":
			m.PctCel = null.FloatFrom(pct)
		default:
			continue
		}

		out[lib] = m
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no usable measurement rows", path)
	}

	return out, nil
}

func headerIndex(header []string, names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		out[i] = -1
		for j, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), name) {
				out[i] = j
				break
			}
		}
		if out[i] < 0 {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return out, nil
}

// mappingEntry links a library to its subject and sampling day. Day may be
// given directly or derived from a parseable date column.
type mappingEntry struct {
	Subject string
	Day     float64
	HasDay  bool
	Date    time.Time
	HasDate bool
}

type mappingRow struct {
	Library string `csv:"library"`
	Subject string `csv:"subject"`
	Day     string `csv:"day"`
	Date    string `csv:"date"`
}

// loadMapping reads the subject-to-sample mapping, preferring the legacy xls
// workbook and falling back to CSV. A missing mapping is fatal.
func loadMapping(cfg Config, baseDir string) (map[string]mappingEntry, error) {
	xlsPath := ResolveDataPath(baseDir, cfg.MappingXLS)
	if _, err := os.Stat(xlsPath); err == nil {
		return loadMappingXLS(xlsPath)
	}

	csvPath := ResolveDataPath(baseDir, cfg.MappingCSV)
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("subject-to-sample mapping: tried %s and %s: %w", xlsPath, csvPath, err)
	}
	defer f.Close()

	rows := []*mappingRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", csvPath, err)
	}

	return mappingFromRows(rows, csvPath)
}

func loadMappingXLS(path string) (map[string]mappingEntry, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cells := wb.ReadAllCells(1 << 20)
	if len(cells) < 2 {
		return nil, fmt.Errorf("%s: workbook has no data rows", path)
	}

	cols, err := headerIndex(cells[0], "library", "subject", "day")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	libCol, subjCol, dayCol := cols[0], cols[1], cols[2]

	rows := make([]*mappingRow, 0, len(cells)-1)
	for _, cell := range cells[1:] {
		if len(cell) <= libCol || len(cell) <= subjCol || len(cell) <= dayCol {
			continue
		}
		rows = append(rows, &mappingRow{
			Library: cell[libCol],
			Subject: cell[subjCol],
			Day:     cell[dayCol],
		})
	}

	return mappingFromRows(rows, path)
}

func mappingFromRows(rows []*mappingRow, path string) (map[string]mappingEntry, error) {
	out := make(map[string]mappingEntry)

	for i, row := range rows {
		if row.Library == "" || row.Subject == "" {
			log.Printf("Warning: skipping row %d of %s: missing library or subject", i+2, filepath.Base(path))
			continue
		}

		entry := mappingEntry{Subject: row.Subject}

		if day, err := strconv.ParseFloat(strings.TrimSpace(row.Day), 64); err == nil {
			entry.Day = day
			entry.HasDay = true
		} else if row.Date != "" {
			date, err := dateparse.ParseAny(row.Date)
			if err != nil {
				log.Printf("Warning: skipping row %d of %s: bad day %q and date %q", i+2, filepath.Base(path), row.Day, row.Date)
				continue
			}
			entry.Date = date
			entry.HasDate = true
		} else {
			log.Printf("Warning: skipping row %d of %s: bad day %q", i+2, filepath.Base(path), row.Day)
			continue
		}

		out[row.Library] = entry
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no usable mapping rows", path)
	}

	resolveDates(out)

	return out, nil
}

// resolveDates converts date-only entries into day offsets relative to the
// subject's earliest dated sample.
func resolveDates(mapping map[string]mappingEntry) {
	earliest := make(map[string]time.Time)
	for _, entry := range mapping {
		if !entry.HasDate {
			continue
		}
		min, ok := earliest[entry.Subject]
		if !ok || entry.Date.Before(min) {
			earliest[entry.Subject] = entry.Date
		}
	}

	for lib, entry := range mapping {
		if !entry.HasDate || entry.HasDay {
			continue
		}
		entry.Day = entry.Date.Sub(earliest[entry.Subject]).Hours() / 24
		entry.HasDay = true
		mapping[lib] = entry
	}
}

func mergeMeasurements(measurements map[string]measurement, mapping map[string]mappingEntry) *Dataset {
	libs := make([]string, 0, len(measurements))
	for lib := range measurements {
		libs = append(libs, lib)
	}
	sort.Strings(libs)

	bySubject := make(map[string]*Subject)
	unmapped := 0

	for _, lib := range libs {
		entry, ok := mapping[lib]
		if !ok || !entry.HasDay {
			unmapped++
			continue
		}

		m := measurements[lib]
		sample := &Sample{
			Acc:     m.Acc,
			Library: lib,
			Subject: entry.Subject,
			Day:     entry.Day,
			Values:  map[string]null.Float{PctVir: m.PctVir, PctCel: m.PctCel},
			Rel:     map[string]null.Float{},
		}

		sub := bySubject[entry.Subject]
		if sub == nil {
			sub = &Subject{ID: entry.Subject}
			bySubject[entry.Subject] = sub
		}
		sub.Samples = append(sub.Samples, sample)
	}

	if unmapped > 0 {
		log.Printf("Warning: %d measured libraries had no subject mapping and were dropped", unmapped)
	}

	subjects := make([]*Subject, 0, len(bySubject))
	for _, sub := range bySubject {
		subjects = append(subjects, sub)
	}
	sortSubjects(subjects)

	return &Dataset{Subjects: subjects}
}

type speciesRow struct {
	SampleName string `csv:"sample_name"`
	ClassCount string `csv:"tax_id_normalized_to_class_level_count"`
	NumSpecies string `csv:"num_virus_species"`
}

// mergeSpecies left-joins the optional species-count file onto the dataset,
// preferring the class-level normalized count when both columns are present.
// Absence of the file is not an error.
func mergeSpecies(ds *Dataset, path string) (bool, error) {
	f, err := trendreport.OpenDataFile(path)
	if os.IsNotExist(err) {
		log.Printf("No species CSV at %s; proceeding without %s", path, NumVirusSpecies)
		return false, nil
	} else if err != nil {
		return false, err
	}
	defer f.Close()

	rows := []*speciesRow{}
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}

	counts := make(map[string]null.Float, len(rows))
	for _, row := range rows {
		// Prefer the class-level normalized count when both are present.
		if v := parseCount(row.ClassCount); v.Valid {
			counts[row.SampleName] = v
		} else if v := parseCount(row.NumSpecies); v.Valid {
			counts[row.SampleName] = v
		}
	}

	if len(counts) == 0 {
		log.Printf("Species CSV %s missing expected columns; skipping", path)
		return false, nil
	}

	merged := false
	for _, sub := range ds.Subjects {
		for _, sample := range sub.Samples {
			if v, ok := counts[sample.Library]; ok {
				sample.Values[NumVirusSpecies] = v
				merged = true
			}
		}
	}

	log.Printf("Merged species counts for %d libraries", len(counts))

	return merged, nil
}

// FilterControls removes the configured control subjects from the dataset.
func FilterControls(ds *Dataset, controls []string) {
	if len(controls) == 0 {
		return
	}

	drop := make(map[string]bool, len(controls))
	for _, c := range controls {
		drop[c] = true
	}

	kept := ds.Subjects[:0]
	for _, sub := range ds.Subjects {
		if !drop[sub.ID] {
			kept = append(kept, sub)
		}
	}
	ds.Subjects = kept

	remaining := make([]string, 0, len(ds.Subjects))
	for _, sub := range ds.Subjects {
		remaining = append(remaining, sub.ID)
	}
	log.Printf("Removed control subjects %v; %d subjects remain: %v", controls, len(remaining), remaining)
}
