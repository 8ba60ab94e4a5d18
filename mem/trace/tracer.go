// Package trace loads address traces and records what a cache simulator
// does with them.
package trace

import (
	"fmt"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// Table names written by the DBTracer.
const (
	AccessTable  = "cache_accesses"
	SummaryTable = "cache_summary"
	LineTable    = "cache_lines"
)

// AccessEntry is one row of the access table. Addresses and tags are stored
// as int64 bit patterns because SQLite integers are signed.
type AccessEntry struct {
	RunID      string
	Seq        int64
	Hex        string
	Address    int64
	SetIndex   int
	WayID      int
	Tag        int64
	ByteOffset int64
	Outcome    string
	Evicted    bool
	EvictedTag int64
}

// SummaryEntry is the row written once per run.
type SummaryEntry struct {
	RunID         string
	CacheName     string
	TotalBytes    int
	LineBytes     int
	Associativity int
	AddressWidth  int
	NumSets       int
	NumAccesses   int64
	NumHits       int64
	NumMisses     int64
	HitRate       float64
}

// LineEntry is the final state of one cache line.
type LineEntry struct {
	RunID      string
	SetID      int
	WayID      int
	Tag        int64
	IsValid    bool
	LastAccess int64
}

// A DBTracer is a hook that records every access of a simulator into a data
// recorder.
type DBTracer struct {
	runID        string
	dataRecorder datarecording.DataRecorder
}

// NewDBTracer creates the tables and returns the tracer. Each tracer gets a
// unique run ID so several runs can share one database.
func NewDBTracer(dataRecorder datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{
		runID:        xid.New().String(),
		dataRecorder: dataRecorder,
	}

	t.dataRecorder.CreateTable(AccessTable, AccessEntry{})
	t.dataRecorder.CreateTable(SummaryTable, SummaryEntry{})
	t.dataRecorder.CreateTable(LineTable, LineEntry{})

	return t
}

// RunID returns the ID stamped on every row of this tracer.
func (t *DBTracer) RunID() string {
	return t.runID
}

// Func records an access.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != cache.HookPosAccess {
		return
	}

	result := ctx.Item.(cache.AccessResult)
	digits := 4

	if s, ok := ctx.Domain.(*cache.Simulator); ok {
		digits = s.Geometry().HexDigits()
	}

	t.dataRecorder.InsertData(AccessTable, AccessEntry{
		RunID:      t.runID,
		Seq:        int64(result.Time),
		Hex:        fmt.Sprintf("%0*x", digits, result.Address),
		Address:    int64(result.Address),
		SetIndex:   result.SetIndex,
		WayID:      result.WayID,
		Tag:        int64(result.Tag),
		ByteOffset: int64(result.Offset),
		Outcome:    result.Outcome.String(),
		Evicted:    result.Evicted,
		EvictedTag: int64(result.EvictedTag),
	})
}

// Finish records the summary and the final cache contents, then flushes.
func (t *DBTracer) Finish(s *cache.Simulator) {
	g := s.Geometry()
	stats := s.Stats()

	t.dataRecorder.InsertData(SummaryTable, SummaryEntry{
		RunID:         t.runID,
		CacheName:     s.Name(),
		TotalBytes:    g.TotalBytes,
		LineBytes:     g.LineBytes,
		Associativity: g.Associativity,
		AddressWidth:  g.AddressWidth,
		NumSets:       g.NumSets,
		NumAccesses:   int64(stats.NumAccesses),
		NumHits:       int64(stats.NumHits),
		NumMisses:     int64(stats.NumMisses),
		HitRate:       stats.HitRate(),
	})

	for _, line := range s.Snapshot() {
		t.dataRecorder.InsertData(LineTable, LineEntry{
			RunID:      t.runID,
			SetID:      line.SetID,
			WayID:      line.WayID,
			Tag:        int64(line.Tag),
			IsValid:    line.IsValid,
			LastAccess: int64(line.LastAccess),
		})
	}

	t.dataRecorder.Flush()
}

// A LogTracer is a hook that logs every access at debug level.
type LogTracer struct {
	logger logrus.FieldLogger
}

// NewLogTracer creates a new LogTracer.
func NewLogTracer(logger logrus.FieldLogger) *LogTracer {
	return &LogTracer{logger: logger}
}

// Func logs an access.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != cache.HookPosAccess {
		return
	}

	result := ctx.Item.(cache.AccessResult)
	entry := t.logger.WithFields(logrus.Fields{
		"time":    result.Time,
		"address": fmt.Sprintf("0x%x", result.Address),
		"set":     result.SetIndex,
		"way":     result.WayID,
		"outcome": result.Outcome.String(),
	})

	if result.Evicted {
		entry = entry.WithField("evicted_tag",
			fmt.Sprintf("0x%x", result.EvictedTag))
	}

	entry.Debug("access")
}
