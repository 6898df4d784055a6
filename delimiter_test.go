package trendreport

import (
	"io"
	"strings"
	"testing"
)

func TestDetermineDelimiter(t *testing.T) {
	tests := []struct {
		input string
		want  rune
	}{
		{"a,b,c\n1,2,3\n4,5,6\n", ','},
		{"a;b;c\n1;2;3\n4;5;6\n", ';'},
		{"a\tb\tc\n1\t2\t3\n4\t5\t6\n", '\t'},
	}

	for _, test := range tests {
		if got := DetermineDelimiter(strings.NewReader(test.input)); got != test.want {
			t.Fatalf("input %q: got %q, expected %q", test.input, got, test.want)
		}
	}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestDetermineDelimiterBoundedConsumption(t *testing.T) {
	// A file far larger than the sample window must not be read in full.
	big := strings.Repeat("a,b,c\n1,2,3\n", 100000)
	cr := &countingReader{r: strings.NewReader(big)}

	if got := DetermineDelimiter(cr); got != ',' {
		t.Fatalf("got %q, expected ','", got)
	}
	if cr.n > delimiterSampleBytes {
		t.Fatalf("detector consumed %d bytes, cap is %d", cr.n, delimiterSampleBytes)
	}
}
