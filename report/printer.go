// Package report prints the outcome of a cache simulation.
package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sarchlab/cachesim/mem/cache"
)

// A Printer writes one line per access followed by a summary:
//
//	0000,0,MISS
//	NUM HITS 1
//	NUM MISSES 2
//	HIT RATE 0.333333
type Printer struct {
	w   *bufio.Writer
	err error
}

// NewPrinter creates a printer that writes to w. Output is buffered until
// Flush.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: bufio.NewWriter(w)}
}

// PrintAccess writes the line of one access. hex is the address as it
// appeared in the trace.
func (p *Printer) PrintAccess(hex string, r cache.AccessResult) {
	p.printf("%s,%d,%s\n", hex, r.SetIndex, r.Outcome)
}

// PrintSummary writes the aggregate hit and miss counts.
func (p *Printer) PrintSummary(stats cache.Stats) {
	p.printf("NUM HITS %d\n", stats.NumHits)
	p.printf("NUM MISSES %d\n", stats.NumMisses)
	p.printf("HIT RATE %f\n", stats.HitRate())
}

// Flush writes any buffered output and returns the first error seen.
func (p *Printer) Flush() error {
	if p.err != nil {
		return p.err
	}

	return p.w.Flush()
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}

	_, p.err = fmt.Fprintf(p.w, format, args...)
}
