// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package solid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polybase-io/solid/internal/event"
	"github.com/polybase-io/solid/internal/log"
	"github.com/polybase-io/solid/internal/metrics"
	"github.com/polybase-io/solid/internal/outq"
)

// Core is the Solid event loop (spec §4.4): a single-threaded state machine
// driven by Submit and its own timeout firings, structured the way the
// teacher's core.go pairs a mainEventLoop goroutine with a subscribeEvents
// event.Feed fan-out — here internal/event plays that role for anything a
// future host-side observer (a CLI, a metrics scraper) wants to watch
// alongside the outq.Queue the host actually drains.
type Core struct {
	cfg    Config
	logger *log.Logger
	mx     *metrics.Registry

	register *Register
	accepts  *AcceptRegister
	backlog  *Backlog
	timeout  timeoutDriver

	// committed is broadcast on every OutCommit, independent of outq — a
	// cheap way for tests and in-process observers to watch progress
	// without draining the host queue (spec §6 "OutCommit").
	committed event.Feed[Commit]

	inbox     chan interface{}
	fires     chan fire
	syncFires chan uint64
	out       *outq.Queue

	// syncTimer is the futureProposalTimer: armed whenever out-of-sync is
	// entered or re-entered at a higher target, so a peer_hint that never
	// resolves doesn't wedge the node forever (teacher: futureProposalTimer).
	// Only ever touched from the loop goroutine.
	syncTimer *time.Timer

	mu      sync.Mutex
	round   Round
	syncing bool
	target  uint64
	pending []byte // latest ProposeTransactions payload, consumed on propose
}

// NewCore builds a Core anchored at cfg.Genesis, ready to Run.
func NewCore(cfg Config, logger *log.Logger) *Core {
	if cfg.RoundTimeout == 0 {
		cfg.RoundTimeout = DefaultRoundTimeout
	}
	if cfg.Digest == nil {
		panic("solid: Config.Digest must not be nil")
	}
	if cfg.FutureProposalTimeout == 0 {
		cfg.FutureProposalTimeout = DefaultFutureProposalTimeout
	}
	c := &Core{
		cfg:       cfg,
		logger:    logger,
		mx:        &metrics.Registry{},
		register:  NewRegister(cfg.Peers, cfg.Genesis, cfg.Digest, logger),
		accepts:   NewAcceptRegister(cfg.Peers),
		backlog:   NewBacklog(),
		inbox:     make(chan interface{}, 256),
		fires:     make(chan fire, 4),
		syncFires: make(chan uint64, 4),
		out:       outq.New(4096),
		round:     Round{Height: cfg.Genesis.Height + 1, Skips: 0},
	}
	return c
}

// Submit enqueues an inbound event (spec §6). It blocks only if the host is
// submitting faster than the loop drains, which mirrors a bounded channel
// anywhere else in the teacher's stack.
func (c *Core) Submit(ev interface{}) { c.inbox <- ev }

// SetRoundTimeout changes the deadline used for rounds entered from now on
// (config/config.go's live-reload hook; spec §9 supplemented
// "Configuration"). A round already waiting keeps its original deadline —
// only the next enterRound picks up the new value.
func (c *Core) SetRoundTimeout(d time.Duration) {
	c.mu.Lock()
	c.cfg.RoundTimeout = d
	c.mu.Unlock()
}

// Drain returns, and removes, every outbound event queued since the last
// call — the host's half of the "outbound events are a queue the host
// drains" contract (spec §6).
func (c *Core) Drain() []interface{} { return c.out.Drain() }

// Subscribe lets an in-process observer watch commits without going
// through the outq (used by tests and by cmd/solidnode's commit persister).
func (c *Core) Subscribe() *event.Subscription[Commit] { return c.committed.Subscribe() }

// Metrics returns a point-in-time snapshot of the diagnostic counters (spec
// §9 supplemented "Metrics").
func (c *Core) Metrics() metrics.Snapshot { return c.mx.Snapshot() }

// Run drives the event loop until ctx is canceled or a Shutdown event is
// submitted, returning a non-nil error only if a Fatal-kind invariant
// violation forced the core to stop (spec §7: "the core halts and the host
// must restart").
func (c *Core) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.loop(ctx) })
	return g.Wait()
}

func (c *Core) loop(ctx context.Context) error {
	c.enterRound(c.round)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.inbox:
			if _, ok := ev.(Shutdown); ok {
				c.timeout.cancel()
				if c.syncTimer != nil {
					c.syncTimer.Stop()
				}
				return nil
			}
			if err := c.handle(ev); err != nil {
				return err
			}
		case f := <-c.fires:
			c.handleTimeout(f.round)
		case target := <-c.syncFires:
			c.handleSyncTimeout(target)
		}
	}
}

func (c *Core) handle(ev interface{}) error {
	switch e := ev.(type) {
	case InProposal:
		return c.handleProposal(e.Manifest, e.Raw)
	case InAccept:
		return c.handleAccept(e.Accept)
	case ProposeTransactions:
		c.mu.Lock()
		c.pending = e.Txns
		c.mu.Unlock()
	case SyncComplete:
		c.handleSyncComplete(e.Confirmed)
	default:
		return fmt.Errorf("solid: unrecognized event %T", ev)
	}
	return nil
}

// enterRound is the "On round entry (h, s)" transition (spec §4.4). It
// replays anything the backlog already has for this exact round, proposes
// if this node leads it, and arms the round timer either way.
func (c *Core) enterRound(r Round) {
	c.mu.Lock()
	c.round = r
	syncing := c.syncing
	roundTimeout := c.cfg.RoundTimeout
	c.mu.Unlock()

	if h, ok := c.backlog.Lookup(r); ok {
		if m, ok := c.register.Get(h); ok {
			c.sendAcceptFor(m, h)
		}
	}

	if !syncing && LeaderFor(r.Skips, c.cfg.Peers) == c.cfg.SelfID {
		c.propose(r)
	}

	c.timeout.schedule(roundTimeout, r, c.fires)
}

// propose synthesizes and inserts this node's own manifest for round r,
// emitting OutProposal and immediately casting this node's own Accept
// (spec §4.4 "if self is the leader... construct and insert a manifest").
func (c *Core) propose(r Round) {
	confirmed := c.register.Confirmed()

	c.mu.Lock()
	txns := c.pending
	c.pending = nil
	c.mu.Unlock()

	m := ProposalManifest{
		LastProposalHash: confirmed.Hash,
		Skips:            r.Skips,
		Height:           r.Height,
		LeaderID:         c.cfg.SelfID,
		Peers:            c.cfg.Peers,
		Txns:             txns,
	}
	raw := m.canonicalBytes()
	outcome, h, err := c.register.Insert(m, raw)
	if err != nil && KindOf(err) != KindOutOfSync {
		// Self-produced proposals are constructed from local state and
		// must always validate; anything else is an invariant break.
		c.logger.Error("self-produced proposal rejected", "err", err, "round", r)
		return
	}
	if outcome != Fresh {
		return
	}
	c.backlog.Record(r, h)
	c.out.Push(OutProposal{Manifest: m})
	c.sendAcceptFor(m, h)
}

// sendAcceptFor casts this node's Accept for an already-registered manifest
// at its own round, per "send Accept(m.hash) to leader_for(m.skips+1,
// peers)" (spec §4.4, both the InProposal and round-entry transitions).
func (c *Core) sendAcceptFor(m ProposalManifest, hash Hash) {
	acc := Accept{ProposalHash: hash, Height: m.Height, Skips: m.Skips, From: c.cfg.SelfID}
	c.sendAccept(acc, LeaderFor(m.Skips+1, c.cfg.Peers))
}

// sendAccept either loops an Accept addressed to this node straight back
// into the local tally, or queues it for the host to deliver (spec §6
// "OutAccept(accept, to): unicast to the designated next leader").
func (c *Core) sendAccept(acc Accept, to PeerID) {
	if to == c.cfg.SelfID {
		_ = c.handleAccept(acc)
		return
	}
	c.out.Push(OutAccept{Accept: acc, To: to})
}

// handleProposal is "On InProposal(m)" (spec §4.4).
func (c *Core) handleProposal(m ProposalManifest, raw []byte) error {
	outcome, h, err := c.register.Insert(m, raw)
	if err != nil {
		switch KindOf(err) {
		case KindDuplicate:
			c.out.Push(OutDuplicate{Hash: h})
			c.mx.Dropped(metrics.KindDuplicate)
			return nil
		case KindOutOfDate:
			c.out.Push(OutOutOfDate{Hash: h})
			c.mx.Dropped(metrics.KindOutOfDate)
			return nil
		case KindOutOfSync:
			c.enterOutOfSync(m.Height)
			c.backlog.Record(Round{Height: m.Height, Skips: m.Skips}, h)
			return nil
		case KindValidation:
			c.mx.Dropped(metrics.KindValidation)
			return nil
		default:
			return fmt.Errorf("solid: fatal proposal insert error: %w", err)
		}
	}
	if outcome == Duplicate {
		c.out.Push(OutDuplicate{Hash: h})
		c.mx.Dropped(metrics.KindDuplicate)
		return nil
	}

	round := Round{Height: m.Height, Skips: m.Skips}
	c.backlog.Record(round, h)

	c.mu.Lock()
	current := c.round
	syncing := c.syncing
	c.mu.Unlock()

	if !syncing && round == current && m.LeaderID == LeaderFor(m.Skips, c.cfg.Peers) {
		c.sendAcceptFor(m, h)
	}

	// A quorum of accepts may have arrived before this proposal did (spec
	// §4.4 edge case "Accepts arriving before their proposal: buffered;
	// revalidated when a matching proposal arrives").
	if !syncing && c.accepts.HasQuorum(m.Height, m.Skips, h) {
		c.commit(m, h)
	}
	return nil
}

// handleAccept is "On InAccept(a)" (spec §4.4). Per spec §6, OutAccept is a
// unicast the transport addresses to one peer; a node only ever sees an
// InAccept the host chose to deliver to it, so there is no separate
// "am I the intended recipient" check here beyond what validateAccept
// already enforces.
func (c *Core) handleAccept(a Accept) error {
	if err := c.validateAccept(a); err != nil {
		c.mx.Dropped(metrics.KindValidation)
		return nil
	}

	confirmed := c.register.Confirmed()
	if a.Height <= confirmed.Height {
		// Already surpassed: not an error, just stale (spec §4.4 edge case).
		return nil
	}

	c.accepts.Record(a)

	isSkip := a.ProposalHash == SkipSentinel(c.cfg.Digest, a.Round())
	if !c.accepts.HasQuorum(a.Height, a.Skips, a.ProposalHash) {
		return nil
	}

	if isSkip {
		c.mx.RoundChanged()
		c.timeout.cancel()
		c.enterRound(a.Round().Skip())
		return nil
	}

	if a.Height != confirmed.Height+1 {
		// Quorum on a future height's hash: can't apply out of order yet;
		// wait for the intervening heights to commit first.
		return nil
	}
	m, ok := c.register.Get(a.ProposalHash)
	if !ok {
		// Quorum reached before the manifest itself arrived; handleProposal
		// re-checks quorum once it does.
		return nil
	}
	c.commit(m, a.ProposalHash)
	return nil
}

// validateAccept is the "An accept is valid when" rule (spec §4.3).
func (c *Core) validateAccept(a Accept) error {
	if !c.cfg.Peers.Contains(a.From) {
		return wrapKind(KindValidation, errFromNotPeer)
	}
	confirmed := c.register.Confirmed()
	if a.Height < confirmed.Height {
		return wrapKind(KindValidation, errAcceptTooOld)
	}
	if a.Height == confirmed.Height+1 {
		isSkip := a.ProposalHash == SkipSentinel(c.cfg.Digest, a.Round())
		if !isSkip {
			if _, ok := c.register.Get(a.ProposalHash); !ok {
				return wrapKind(KindValidation, errNoSuchProposal)
			}
		}
	}
	return nil
}

// commit is "On commit of p at height h" (spec §4.4).
func (c *Core) commit(m ProposalManifest, hash Hash) {
	c.mu.Lock()
	syncing := c.syncing
	c.mu.Unlock()
	if syncing {
		c.out.Push(OutOutOfSync{TargetHeight: m.Height})
		return
	}

	confirmed := Confirmed{Hash: hash, Height: m.Height}
	c.register.DropForks(hash, m.Height)
	c.register.Advance(confirmed)
	c.accepts.DropBelow(m.Height)
	c.backlog.DropBelowHeight(m.Height)

	c.mx.CommitEmitted()
	c.out.Push(OutCommit{Manifest: m})
	c.committed.Send(Commit{ProposalHash: hash, Height: m.Height, Manifest: m})

	c.mx.HeightChanged()
	c.timeout.cancel()
	c.enterRound(confirmed.Round().Next())
}

// Round returns the coordinate Confirmed sits at, so commit can reuse
// Round.Next() the same way a round coordinate does.
func (cf Confirmed) Round() Round { return Round{Height: cf.Height} }

// handleTimeout is "On Timeout for round (h, s)" (spec §4.4).
func (c *Core) handleTimeout(r Round) {
	c.mu.Lock()
	current := c.round
	syncing := c.syncing
	c.mu.Unlock()
	if r != current {
		// Stale timer, already superseded by a commit or a skip quorum.
		return
	}

	sentinel := SkipSentinel(c.cfg.Digest, r)
	acc := Accept{ProposalHash: sentinel, Height: r.Height, Skips: r.Skips, From: c.cfg.SelfID}
	c.sendAccept(acc, LeaderFor(r.Skips+1, c.cfg.Peers))
	c.mx.SkipAcceptSent()

	if !syncing {
		c.enterRound(r.Skip())
	}
}

// enterOutOfSync is the host-notification half of the Out-of-Sync Protocol
// (spec §4.5): a future-height manifest was observed, so progress halts
// until the host reports SyncComplete.
func (c *Core) enterOutOfSync(targetHeight uint64) {
	c.mu.Lock()
	already := c.syncing && c.target >= targetHeight
	c.syncing = true
	if targetHeight > c.target {
		c.target = targetHeight
	}
	c.mu.Unlock()
	if already {
		return
	}
	c.mx.OutOfSyncEntered()
	c.out.Push(OutOutOfSync{TargetHeight: targetHeight})
	c.armSyncTimer(targetHeight)
}

// armSyncTimer (re)schedules the futureProposalTimer for target, canceling
// whatever was previously pending. Only ever called from the loop
// goroutine, so syncTimer itself needs no separate lock.
func (c *Core) armSyncTimer(target uint64) {
	if c.syncTimer != nil {
		c.syncTimer.Stop()
	}
	c.syncTimer = time.AfterFunc(c.cfg.FutureProposalTimeout, func() {
		select {
		case c.syncFires <- target:
		default:
		}
	})
}

// handleSyncTimeout fires when a SyncComplete never arrived for the target
// this node is waiting on: it re-announces OutOutOfSync (a fresh hint
// request to the host) and re-arms, rather than waiting silently forever.
func (c *Core) handleSyncTimeout(target uint64) {
	c.mu.Lock()
	stillWaiting := c.syncing && c.target == target
	c.mu.Unlock()
	if !stillWaiting {
		return
	}
	c.out.Push(OutOutOfSync{TargetHeight: target})
	c.armSyncTimer(target)
}

// handleSyncComplete is the resolution half of the Out-of-Sync Protocol
// (spec §4.5): the register is pruned and re-anchored, the accept tally and
// backlog are cleared, and the round resets to (new_height+1, 0).
func (c *Core) handleSyncComplete(confirmed Confirmed) {
	c.register.ResetTo(confirmed)
	c.accepts.Reset()
	c.backlog.Reset()
	c.timeout.cancel()
	if c.syncTimer != nil {
		c.syncTimer.Stop()
		c.syncTimer = nil
	}

	c.mu.Lock()
	c.syncing = false
	c.target = 0
	c.mu.Unlock()

	c.mx.HeightChanged()
	c.enterRound(Round{Height: confirmed.Height + 1, Skips: 0})
}
