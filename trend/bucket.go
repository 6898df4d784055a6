// Package trend turns loaded study samples into phase buckets, baselines,
// relative values, and per-phase summary tables.
package trend

import (
	"log"

	"github.com/carbocation/trendreport/study"
)

// AssignBuckets labels each of the subject's samples with a phase bucket.
// Samples are ordered by day and assigned ordinally: the i-th sample gets the
// i-th phase label. Samples past the end of the phase list land in the
// overflow bucket, which is excluded from all summaries. Assignment is
// idempotent: the day sort is stable, so re-running it changes nothing.
func AssignBuckets(sub *study.Subject, phaseOrder []string) {
	sub.SortByDay()

	for i, sample := range sub.Samples {
		if i < len(phaseOrder) {
			sample.Bucket = phaseOrder[i]
		} else {
			sample.Bucket = study.OverflowBucket
		}
	}

	if n := len(sub.Samples) - len(phaseOrder); n > 0 {
		log.Printf("Subject %s: %d samples past the last phase assigned to %q", sub.ID, n, study.OverflowBucket)
	}
}
