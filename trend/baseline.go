package trend

import (
	"log"

	"gopkg.in/guregu/null.v3"

	"github.com/carbocation/trendreport/study"
)

// Relativize fills each sample's relative-to-baseline value for every key.
// The baseline for a key is the mean over the subject's valid values in the
// configured baseline phases; when none of those phases has a value, the
// first sample found in the fallback phases (tried in order) is used. A
// missing, zero, or negative baseline makes every relative value for that key
// invalid rather than infinite. Buckets must already be assigned.
func Relativize(sub *study.Subject, cfg study.Config, keys []string) {
	for _, key := range keys {
		baseline := baselineValue(sub, key, cfg)

		for _, sample := range sub.Samples {
			v := sample.Value(key)
			if !baseline.Valid || !v.Valid {
				sample.SetRel(key, null.Float{})
				continue
			}
			sample.SetRel(key, null.FloatFrom(v.Float64/baseline.Float64))
		}
	}
}

// baselineValue resolves the subject's baseline for one quantity key.
func baselineValue(sub *study.Subject, key string, cfg study.Config) null.Float {
	var sum float64
	var n int
	for _, sample := range sub.Samples {
		if !inPhases(sample.Bucket, cfg.BaselinePhases) {
			continue
		}
		if v := sample.Value(key); v.Valid {
			sum += v.Float64
			n++
		}
	}
	if n > 0 {
		return guardBaseline(sub.ID, key, sum/float64(n))
	}

	// No immediate pre-treatment data; fall back to the earliest sample in
	// the fallback phases, preferring the phases in their configured order.
	for _, phase := range cfg.FallbackPhases {
		for _, sample := range sub.Samples {
			if sample.Bucket != phase {
				continue
			}
			if v := sample.Value(key); v.Valid {
				return guardBaseline(sub.ID, key, v.Float64)
			}
			break
		}
	}

	log.Printf("Subject %s: no baseline for %s; relative values marked missing", sub.ID, key)
	return null.Float{}
}

func guardBaseline(subject, key string, b float64) null.Float {
	if b <= 0 {
		log.Printf("Subject %s: baseline for %s is %g; relative values marked missing", subject, key, b)
		return null.Float{}
	}
	return null.FloatFrom(b)
}

func inPhases(bucket string, phases []string) bool {
	for _, p := range phases {
		if bucket == p {
			return true
		}
	}
	return false
}
