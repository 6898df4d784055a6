package trendreport

import (
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// delimiterSampleBytes caps how much of the input the detector examines; the
// leading rows are enough to identify the delimiter.
const delimiterSampleBytes = 64 << 10

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file. At most the first
// delimiterSampleBytes of the reader are consumed.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(io.LimitReader(r, delimiterSampleBytes), '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}
