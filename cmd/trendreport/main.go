// trendreport generates the per-subject trend PDF for the ciprofloxacin
// study: it loads the sample measurement tables, buckets each subject's
// samples into study phases, normalizes them to a per-subject baseline, and
// renders summary and per-subject charts into a single document.
package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/carbocation/pfx"

	"github.com/carbocation/trendreport"
	"github.com/carbocation/trendreport/buildinfo"
	"github.com/carbocation/trendreport/report"
	"github.com/carbocation/trendreport/study"
	"github.com/carbocation/trendreport/trend"
)

func main() {
	cfg := study.DefaultConfig()

	var baseDir, pdfOut, logFile string
	flag.StringVar(&baseDir, "base", ".", "Directory containing the input files (or a data/ subdirectory with them)")
	flag.StringVar(&pdfOut, "out", cfg.PDFOut, "Path for the output PDF")
	flag.StringVar(&logFile, "log", cfg.LogFile, "Path for the diagnostic log file")
	flag.Parse()

	baseDir = trendreport.ExpandHome(baseDir)
	pdfOut = trendreport.ExpandHome(pdfOut)
	logFile = trendreport.ExpandHome(logFile)

	lf, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	defer lf.Close()
	log.SetOutput(io.MultiWriter(os.Stderr, lf))

	log.Println("=== RUN START ===")
	log.Println(buildinfo.Get())

	if err := run(cfg, baseDir, pdfOut); err != nil {
		log.Fatalln(pfx.Err(err))
	}

	log.Println("Done. Output written to", pdfOut)
}

func run(cfg study.Config, baseDir, pdfOut string) error {
	log.Println("Loading datasets from", baseDir)
	ds, err := study.Load(cfg, baseDir)
	if err != nil {
		return err
	}
	study.FilterControls(ds, cfg.ControlSubjects)

	log.Println("Assigning phase buckets and baselines")
	for _, sub := range ds.Subjects {
		trend.AssignBuckets(sub, cfg.PhaseOrder)
	}

	kingdomReads, err := study.LoadSuperkingdomReads(cfg, baseDir)
	if err != nil {
		return err
	}
	trend.MergeKingdomReads(ds, kingdomReads)

	for _, sub := range ds.Subjects {
		trend.Relativize(sub, cfg, ds.AllKeys())
	}

	log.Println("Computing summary tables")
	sums := trend.SummarizeAll(ds, cfg.PhaseOrder)

	taxaRanks, err := study.LoadTaxaRanks(cfg, baseDir)
	if err != nil {
		return err
	}
	taxaReads, err := study.LoadTaxaReads(cfg, baseDir)
	if err != nil {
		return err
	}

	log.Println("Rendering report to", pdfOut)
	rep := report.New(cfg)
	pages := rep.Plan(ds, sums, taxaRanks, taxaReads)
	log.Printf("Planned %d pages", len(pages))

	return rep.WritePDF(pdfOut, pages)
}
