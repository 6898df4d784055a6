package report

import (
	"fmt"
	"log"
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/carbocation/trendreport/study"
	"github.com/carbocation/trendreport/trend"
)

// A4 portrait, in millimeters.
const (
	pageWidthMM  = 210
	pageHeightMM = 297

	sideMarginMM = 10
	topMarginMM  = 20
	chartGapMM   = 3

	chartDPM     = float64(chartWidthPx) / (pageWidthMM - 2*sideMarginMM)
	chartBlockMM = float64(chartHeightPx)/chartDPM + chartGapMM
)

// Page is one page of the output document. Figures are rendered lazily when
// the page is drawn, so building a plan is cheap and deterministic.
type Page struct {
	Title string
	draw  func(ctx *canvas.Context, fam *canvas.FontFamily) error
}

// Titles returns the ordered page titles of a plan.
func Titles(pages []Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Title
	}
	return out
}

// Report plans and writes the trend report document.
type Report struct {
	cfg study.Config
}

func New(cfg study.Config) *Report {
	return &Report{cfg: cfg}
}

// Plan assembles the ordered page list: the cover, methodology, and taxonomy
// note pages first, then the optional taxa and superkingdom pages, the
// cross-subject summaries, and finally the per-subject pages grouped by
// subject. Figures with no valid data points are skipped with a log notice;
// a page whose figures are all skipped is omitted entirely.
func (r *Report) Plan(ds *study.Dataset, sums trend.Summaries, taxaRanks, taxaReads []study.RankCount) []Page {
	pages := []Page{
		r.coverPage(ds),
		r.methodologyPage(),
		r.taxonomyNotePage(),
	}

	if len(taxaRanks) > 0 {
		pages = append(pages, chartPage("Virus Taxonomy Tree Structure",
			barFigure{Title: "Distinct taxa per rank", YLabel: "Number of unique taxa", Items: taxaRanks}))
	}
	if len(taxaReads) > 0 {
		pages = append(pages, chartPage("Read Distribution per Taxonomic Rank",
			barFigure{Title: "Classified reads per rank", YLabel: "Reads at rank", Items: taxaReads}))
	}

	pages = append(pages, r.kingdomSummaryPages(ds, sums)...)

	if page, ok := r.summaryPage("Summary (absolute)", sums, []string{study.PctVir, study.PctCel}, false); ok {
		pages = append(pages, page)
	}
	if page, ok := r.summaryPage("Summary (fold change relative to baseline)", sums, []string{study.PctVir, study.PctCel}, true); ok {
		pages = append(pages, page)
	}
	if page, ok := r.speciesPage(ds, sums); ok {
		pages = append(pages, page)
	}

	pages = append(pages, r.subjectPages(ds)...)

	return pages
}

// summaryPage builds one page of stacked summary figures for the given keys.
func (r *Report) summaryPage(title string, sums trend.Summaries, keys []string, relative bool) (Page, bool) {
	figs := []figure{}

	for _, key := range keys {
		table := sums.Absolute[key]
		if relative {
			table = trend.CollapseBaseline(sums.Relative[key], r.cfg.BaselinePhases)
		}
		fig, ok := summaryFigure(table, relative)
		if !ok {
			log.Printf("No data for %s (%s); skipping figure", key, variant(relative))
			continue
		}
		figs = append(figs, fig)
	}

	if len(figs) == 0 {
		log.Printf("All figures empty for page %q; skipping page", title)
		return Page{}, false
	}

	return chartPage(title, figs...), true
}

// speciesPage shows the virus-species-count summaries, absolute and relative,
// when the optional species data was loaded.
func (r *Report) speciesPage(ds *study.Dataset, sums trend.Summaries) (Page, bool) {
	if !hasQuantity(ds, study.NumVirusSpecies) {
		return Page{}, false
	}

	figs := []figure{}
	if fig, ok := summaryFigure(sums.Absolute[study.NumVirusSpecies], false); ok {
		figs = append(figs, fig)
	}
	if fig, ok := summaryFigure(trend.CollapseBaseline(sums.Relative[study.NumVirusSpecies], r.cfg.BaselinePhases), true); ok {
		figs = append(figs, fig)
	}

	if len(figs) == 0 {
		log.Printf("No valid species counts; skipping species summary page")
		return Page{}, false
	}

	return chartPage("Virus Species Summary", figs...), true
}

// kingdomSummaryPages builds one page per superkingdom: absolute reads on a
// log axis, the fraction of total reads, and the fraction fold-change.
func (r *Report) kingdomSummaryPages(ds *study.Dataset, sums trend.Summaries) []Page {
	pages := []Page{}

	for _, kingdom := range ds.Kingdoms {
		figs := []figure{}

		if lf, ok := summaryFigure(sums.Absolute[kingdom], false); ok {
			lf.Title = fmt.Sprintf("%s reads per bucket (mean ± SE)", kingdom)
			lf.YLabel = "Total reads"
			lf.LogY = true
			figs = append(figs, lf)
		}
		if lf, ok := summaryFigure(sums.Absolute[study.FracKey(kingdom)], false); ok {
			lf.Title = fmt.Sprintf("%s fraction of total reads (mean ± SE)", kingdom)
			lf.YLabel = "Fraction of total reads"
			figs = append(figs, lf)
		}
		if lf, ok := summaryFigure(trend.CollapseBaseline(sums.Relative[study.FracKey(kingdom)], r.cfg.BaselinePhases), true); ok {
			lf.Title = fmt.Sprintf("%s fraction fold change relative to baseline", kingdom)
			figs = append(figs, lf)
		}

		if len(figs) == 0 {
			log.Printf("No data for superkingdom %s; skipping page", kingdom)
			continue
		}
		pages = append(pages, chartPage(fmt.Sprintf("%s Reads", kingdom), figs...))
	}

	return pages
}

// subjectPages builds each subject's raw-trend page, fold-change page, and
// per-kingdom read pages, in subject order.
func (r *Report) subjectPages(ds *study.Dataset) []Page {
	pages := []Page{}

	for _, sub := range ds.Subjects {
		if page, ok := r.subjectTrendPage(sub, ds.Quantities, false); ok {
			pages = append(pages, page)
		} else {
			log.Printf("Subject %s has no plottable samples; skipping", sub.ID)
			continue
		}
		if page, ok := r.subjectTrendPage(sub, ds.Quantities, true); ok {
			pages = append(pages, page)
		}
		pages = append(pages, r.subjectKingdomPages(sub, ds.Kingdoms)...)
	}

	return pages
}

func (r *Report) subjectTrendPage(sub *study.Subject, quantities []string, relative bool) (Page, bool) {
	title := fmt.Sprintf("Subject %s", sub.ID)
	if relative {
		title = fmt.Sprintf("Subject %s — fold change", sub.ID)
	}

	figs := []figure{}
	for _, key := range quantities {
		labels, values := subjectSeries(sub, key, relative)
		if len(values) == 0 {
			log.Printf("Subject %s: no valid %s (%s); skipping figure", sub.ID, key, variant(relative))
			continue
		}
		figs = append(figs, lineFigure{
			Title:    fmt.Sprintf("%s (%s)", quantityTitle(key), variant(relative)),
			YLabel:   quantityYLabel(key, relative),
			Labels:   labels,
			Values:   values,
			RefAtOne: relative,
		})
	}

	if len(figs) == 0 {
		return Page{}, false
	}
	return chartPage(title, figs...), true
}

func (r *Report) subjectKingdomPages(sub *study.Subject, kingdoms []string) []Page {
	pages := []Page{}

	for _, kingdom := range kingdoms {
		figs := []figure{}

		if labels, values := subjectSeries(sub, kingdom, false); len(values) > 0 {
			figs = append(figs, lineFigure{
				Title:  fmt.Sprintf("%s reads (absolute)", kingdom),
				YLabel: "Total reads",
				Labels: labels,
				Values: values,
				LogY:   true,
			})
		}
		if labels, values := subjectSeries(sub, study.FracKey(kingdom), false); len(values) > 0 {
			figs = append(figs, lineFigure{
				Title:  fmt.Sprintf("%s fraction of total reads", kingdom),
				YLabel: "Fraction of total reads",
				Labels: labels,
				Values: values,
			})
		}

		if len(figs) == 0 {
			continue
		}
		pages = append(pages, chartPage(fmt.Sprintf("%s reads for subject %s", kingdom, sub.ID), figs...))
	}

	return pages
}

// subjectSeries extracts the subject's plottable points for one quantity,
// in bucket order, excluding the overflow bucket and invalid values. Labels
// carry the bucket and library so a reader can trace a point to its sample.
func subjectSeries(sub *study.Subject, key string, relative bool) (labels []string, values []float64) {
	for _, sample := range sub.Samples {
		if sample.Bucket == study.OverflowBucket || sample.Bucket == "" {
			continue
		}
		v := sample.Value(key)
		if relative {
			v = sample.RelValue(key)
		}
		if !v.Valid {
			continue
		}
		labels = append(labels, fmt.Sprintf("%s (%s)", sample.Bucket, sample.Library))
		values = append(values, v.Float64)
	}
	return labels, values
}

// summaryFigure converts a summary table into a line figure with a ±SE band.
func summaryFigure(t trend.Table, relative bool) (lineFigure, bool) {
	if t.Empty() {
		return lineFigure{}, false
	}

	labels := make([]string, len(t.Rows))
	values := make([]float64, len(t.Rows))
	upper := make([]float64, len(t.Rows))
	lower := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		labels[i] = fmt.Sprintf("%s (n=%d)", row.Phase, row.NSubjects)
		values[i] = row.Mean
		upper[i] = row.Mean + row.StdErr
		lower[i] = row.Mean - row.StdErr
	}

	return lineFigure{
		Title:    fmt.Sprintf("Mean %s per bucket (%s)", quantityTitle(t.Key), variant(relative)),
		YLabel:   quantityYLabel(t.Key, relative),
		Labels:   labels,
		Values:   values,
		Upper:    upper,
		Lower:    lower,
		RefAtOne: relative,
	}, true
}

func variant(relative bool) string {
	if relative {
		return "relative to baseline"
	}
	return "absolute"
}

func quantityTitle(key string) string {
	switch key {
	case study.PctVir:
		return "VIRUS %"
	case study.PctCel:
		return "cellular organisms %"
	case study.NumVirusSpecies:
		return "# virus species"
	}
	return key
}

func quantityYLabel(key string, relative bool) string {
	if relative {
		return "Fold change (relative to baseline)"
	}
	switch key {
	case study.PctVir:
		return "% Viruses"
	case study.PctCel:
		return "% cellular organisms"
	case study.NumVirusSpecies:
		return "# virus species"
	}
	return key
}

func hasQuantity(ds *study.Dataset, key string) bool {
	for _, q := range ds.Quantities {
		if q == key {
			return true
		}
	}
	return false
}

// chartPage stacks the given figures under a page title.
func chartPage(title string, figs ...figure) Page {
	return Page{
		Title: title,
		draw: func(ctx *canvas.Context, fam *canvas.FontFamily) error {
			drawPageTitle(ctx, fam, title)

			y := float64(topMarginMM)
			for _, fig := range figs {
				img, err := fig.render()
				if err != nil {
					return err
				}
				ctx.DrawImage(sideMarginMM, y, img, canvas.Resolution(chartDPM))
				y += chartBlockMM
			}
			return nil
		},
	}
}

// coverPage summarizes the study: subjects, sample counts, and the analysis
// conventions the rest of the document relies on.
func (r *Report) coverPage(ds *study.Dataset) Page {
	subjects := make([]string, 0, len(ds.Subjects))
	inAnalysis := 0
	for _, sub := range ds.Subjects {
		subjects = append(subjects, sub.ID)
		for _, sample := range sub.Samples {
			if sample.Bucket != study.OverflowBucket && sample.Bucket != "" {
				inAnalysis++
			}
		}
	}

	body := []string{
		"Ciprofloxacin Study — Virome and Cellular Organism Analysis",
		"",
		"This report tracks longitudinal changes in viral and cellular populations " +
			"across multiple subjects during and after brief ciprofloxacin administration. " +
			"Samples were characterized using metagenomic sequencing. Fold changes are " +
			"computed relative to each subject's pre-treatment baseline.",
		"",
		"Subjects: " + strings.Join(subjects, ", "),
		"",
		fmt.Sprintf("Total samples collected: %d", ds.NSamples()),
		fmt.Sprintf("Samples included in analysis: %d", inAnalysis),
		"Method: taxonomic abundance aggregated by time bucket per subject.",
		fmt.Sprintf("Baseline: per-subject mean of immediate pre-treatment samples (%s).",
			strings.Join(r.cfg.BaselinePhases, ", ")),
		"Summary plots show mean ± SE across subjects; per-subject pages label each " +
			"point with its time bucket and library.",
	}
	if len(r.cfg.ControlSubjects) > 0 {
		body = append(body, "",
			fmt.Sprintf("Note: control subjects (%s) were omitted from analysis.",
				strings.Join(r.cfg.ControlSubjects, ", ")))
	}

	return textPage("Brief Antibiotic Use Drives Human Gut Bacteria Towards Low-Cost Resistance", body)
}

func (r *Report) methodologyPage() Page {
	return textPage("Methodology & Data Analysis", []string{
		"Baseline definition:",
		fmt.Sprintf("- For each subject, the baseline is the mean of available immediate "+
			"pre-treatment samples (%s).", strings.Join(r.cfg.BaselinePhases, ", ")),
		fmt.Sprintf("- If none of these are available, the earliest %s sample is used.",
			strings.Join(r.cfg.FallbackPhases, " or ")),
		"",
		"Fold change:",
		"- Fold change = sample value / baseline value. Values above 1 indicate an " +
			"increase relative to baseline. A missing or zero baseline leaves the fold " +
			"change undefined; such points are omitted rather than plotted.",
		"",
		"Aggregation and plotting:",
		"- Summary plots show the mean ± standard error across subjects per time bucket.",
		"- Relative plots collapse the immediate pre-treatment buckets into a single " +
			"baseline point for clarity.",
		"- Samples past the last defined time bucket are excluded from all summaries.",
	})
}

func (r *Report) taxonomyNotePage() Page {
	return textPage("Choosing the Taxonomy Level for Viral Diversity", []string{
		"Metagenomic classifiers do not always classify reads to species level; many " +
			"reads are only classified to genus, family, or higher ranks. Counting only " +
			"species-level assignments loses information and introduces technical noise: " +
			"apparent diversity changes may reflect classification uncertainty rather than " +
			"biology.",
		"",
		"Two complementary distributions were analyzed: the number of distinct taxa per " +
			"rank, and where the classified reads actually concentrate. The two often tell " +
			"different stories — many species may exist on paper while most reads resolve " +
			"only to genus or family.",
		"",
		"Diversity counts in this report are therefore normalized at the genus-like " +
			"level, which receives strong read support, is stable against classification " +
			"errors, and unites species of the same genus into a reliable metric.",
	})
}
