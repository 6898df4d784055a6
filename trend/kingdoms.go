package trend

import (
	"log"
	"sort"

	"gopkg.in/guregu/null.v3"

	"github.com/carbocation/trendreport/study"
)

// MergeKingdomReads attaches per-superkingdom read counts to every sample and
// derives each kingdom's fraction of the sample's total reads. Samples with
// superkingdom data but no entry for a given kingdom count as zero reads; the
// fraction is invalid when the sample's total is zero. The kingdoms seen are
// recorded on the dataset in sorted order.
func MergeKingdomReads(ds *study.Dataset, reads map[string]map[string]float64) {
	if len(reads) == 0 {
		return
	}

	kingdomSet := make(map[string]bool)
	for _, byKingdom := range reads {
		for k := range byKingdom {
			kingdomSet[k] = true
		}
	}

	kingdoms := make([]string, 0, len(kingdomSet))
	for k := range kingdomSet {
		kingdoms = append(kingdoms, k)
	}
	sort.Strings(kingdoms)

	matched := 0
	for _, sub := range ds.Subjects {
		for _, sample := range sub.Samples {
			byKingdom, ok := reads[sample.Library]
			if !ok {
				continue
			}
			matched++

			total := 0.0
			for _, k := range kingdoms {
				count := byKingdom[k]
				sample.SetValue(k, count)
				total += count
			}

			for _, k := range kingdoms {
				if total > 0 {
					sample.SetValue(study.FracKey(k), byKingdom[k]/total)
				} else {
					sample.Values[study.FracKey(k)] = null.Float{}
				}
			}
		}
	}

	ds.Kingdoms = kingdoms
	log.Printf("Merged superkingdom reads (%v) onto %d samples", kingdoms, matched)
}
