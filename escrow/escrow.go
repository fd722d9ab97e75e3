// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package escrow

import (
	"bytes"
	"sync"

	"github.com/bitmark-inc/logger"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/rubelhassan/kerireg/counter"
	"github.com/rubelhassan/kerireg/fault"
	"github.com/rubelhassan/kerireg/registry"
)

// Event - an already verified registry event offered for logging
//
// Body is the signed serialisation, Digest its self-addressing
// identifier and Sn the ordinal the event claims within the prefix
type Event struct {
	Prefix []byte
	Sn     uint64
	Digest []byte
	Body   []byte
}

// Disposition - the outcome of an Ingest call
type Disposition int

// possible Ingest outcomes
const (
	Accepted    Disposition = iota // appended to the canonical log
	Escrowed                       // parked in one or more pending queues
	Duplicate                      // same digest already canonical at this ordinal
	Conflicting                    // a different digest holds this ordinal
)

func (d Disposition) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Escrowed:
		return "escrowed"
	case Duplicate:
		return "duplicate"
	case Conflicting:
		return "conflicting"
	default:
		return "unknown"
	}
}

// Queues - bit set naming the pending queues holding an entry
type Queues uint8

// one bit per pending queue
const (
	QueueOutOfOrder    Queues = 1 << iota // predecessor ordinal missing
	QueuePartWitnessed                    // witness signatures below quorum
	QueueAnchorless                       // no anchoring seal recorded
)

var queueNames = []struct {
	flag Queues
	name string
}{
	{QueueOutOfOrder, "out-of-order"},
	{QueuePartWitnessed, "partly-witnessed"},
	{QueueAnchorless, "anchorless"},
}

func (q Queues) String() string {
	s := ""
	for _, n := range queueNames {
		if 0 == q&n.flag {
			continue
		}
		if 0 != len(s) {
			s += "|"
		}
		s += n.name
	}
	if 0 == len(s) {
		return "none"
	}
	return s
}

// Result - what Ingest decided for one event
//
// Queues is only set for the Escrowed disposition and Fn only for
// Accepted and Duplicate
type Result struct {
	Disposition Disposition
	Queues      Queues
	Fn          uint64
}

// ThresholdSource - supplies the witness quorum for an event
//
// a nil source means no quorum is required
type ThresholdSource interface {
	Threshold(prefix []byte, sn uint64, digest []byte) (uint64, error)
}

// ThresholdFunc - adapt an ordinary function to a ThresholdSource
type ThresholdFunc func(prefix []byte, sn uint64, digest []byte) (uint64, error)

// Threshold - call the wrapped function
func (f ThresholdFunc) Threshold(prefix []byte, sn uint64, digest []byte) (uint64, error) {
	return f(prefix, sn, digest)
}

// StalePolicy - report whether a pending entry should be discarded
//
// a nil policy keeps entries pending indefinitely
type StalePolicy func(prefix []byte, sn uint64, digest []byte) bool

// Trigger - the external write that a Notify call reports
type Trigger int

// notification reasons
const (
	TriggerWitnessSig Trigger = iota // witness signatures were stored
	TriggerAnchor                    // an anchoring seal was stored
	TriggerGap                       // a missing predecessor was filled
)

func (tr Trigger) String() string {
	switch tr {
	case TriggerWitnessSig:
		return "witness-signature"
	case TriggerAnchor:
		return "anchor"
	case TriggerGap:
		return "gap-fill"
	default:
		return "unknown"
	}
}

// Options - tuning for a Manager
type Options struct {
	Thresholds ThresholdSource
	Stale      StalePolicy
}

// one pending queue: its result flag, its backing table and the
// predicate that blocks release while it returns true
type queue struct {
	flag    Queues
	table   *registry.SeqIndex
	blocked func(prefix []byte, sn uint64, digest []byte) (bool, error)
}

// Manager - escrow decisions over one registry
type Manager struct {
	reg        *registry.Registry
	thresholds ThresholdSource
	stale      StalePolicy
	qs         []queue
	locks      *xsync.MapOf[string, *sync.Mutex]

	// the store routes any write issued while a transaction is open
	// into that transaction, so every mutating path must hold this
	// mutex whether or not it opens a transaction itself
	trxMu sync.Mutex

	log *logger.L

	ingested counter.Counter
	promoted counter.Counter
	dropped  counter.Counter
	sweeps   counter.Counter
}

// New - create a manager over an opened registry
func New(reg *registry.Registry, options Options) (*Manager, error) {
	if nil == reg {
		return nil, fault.NotInitialised
	}

	m := &Manager{
		reg:        reg,
		thresholds: options.Thresholds,
		stale:      options.Stale,
		locks:      xsync.NewMapOf[string, *sync.Mutex](),
		log:        logger.New("escrow"),
	}

	// release checks run in this order during ingest and sweep
	m.qs = []queue{
		{flag: QueueOutOfOrder, table: reg.OutOfOrder, blocked: m.gapBlocked},
		{flag: QueuePartWitnessed, table: reg.PartWitnessed, blocked: m.quorumBlocked},
		{flag: QueueAnchorless, table: reg.Anchorless, blocked: m.anchorBlocked},
	}

	return m, nil
}

// per-prefix serialisation of ingest and sweep
func (m *Manager) lockFor(prefix []byte) *sync.Mutex {
	lock, _ := m.locks.LoadOrCompute(string(prefix), func() *sync.Mutex {
		return new(sync.Mutex)
	})
	return lock
}

// an event above ordinal zero needs its predecessor logged
func (m *Manager) gapBlocked(prefix []byte, sn uint64, digest []byte) (bool, error) {
	if 0 == sn {
		return false, nil
	}
	has, err := m.reg.Log.Has(prefix, sn-1)
	if nil != err {
		return false, err
	}
	return !has, nil
}

// stored witness signatures must reach the configured quorum
func (m *Manager) quorumBlocked(prefix []byte, sn uint64, digest []byte) (bool, error) {
	if nil == m.thresholds {
		return false, nil
	}
	threshold, err := m.thresholds.Threshold(prefix, sn, digest)
	if nil != err {
		return false, err
	}
	if 0 == threshold {
		return false, nil
	}
	n, err := m.reg.WitnessSigs.Count(prefix, digest)
	if nil != err {
		return false, err
	}
	return n < threshold, nil
}

// every event needs an anchoring seal before it is logged
func (m *Manager) anchorBlocked(prefix []byte, sn uint64, digest []byte) (bool, error) {
	has, err := m.reg.Anchors.Has(prefix, digest)
	if nil != err {
		return false, err
	}
	return !has, nil
}

// Ingest - offer one event for canonical logging
//
// The body is stored unconditionally.  When every release check passes
// the event is appended to the canonical log and a sweep releases any
// successors that were waiting on the gap.  Otherwise the event is
// parked in one pending queue per failed check.  An ordinal already
// held by a different digest, canonical or pending, rejects the
// newcomer without filing it anywhere; resolving such a conflict is
// the caller's decision, normally a Drop of the loser.
func (m *Manager) Ingest(ev Event) (Result, error) {
	if 0 == len(ev.Prefix) || 0 == len(ev.Digest) || 0 == len(ev.Body) {
		return Result{}, fault.InvalidEvent
	}

	lock := m.lockFor(ev.Prefix)
	lock.Lock()
	defer lock.Unlock()

	m.ingested.Increment()

	// bodies are content addressed so a repeated store is harmless
	err := m.storeBody(ev)
	if nil != err {
		return Result{}, err
	}

	current, err := m.reg.Log.Get(ev.Prefix, ev.Sn)
	if nil != err {
		return Result{}, err
	}
	if nil != current {
		if bytes.Equal(current, ev.Digest) {
			return Result{Disposition: Duplicate, Fn: ev.Sn}, nil
		}
		m.log.Warnf("conflicting event: prefix: %q  sn: %d", ev.Prefix, ev.Sn)
		return Result{Disposition: Conflicting}, nil
	}

	blocked := Queues(0)
	for _, q := range m.qs {
		failed, err := q.blocked(ev.Prefix, ev.Sn, ev.Digest)
		if nil != err {
			return Result{}, err
		}
		if failed {
			blocked |= q.flag
		}
	}

	if 0 == blocked {
		added, err := m.appendCanonical(ev)
		if nil != err {
			return Result{}, err
		}
		if !added {
			// slot was empty above and the prefix lock is held
			logger.Panicf("escrow: canonical slot occupied after check: prefix: %q  sn: %d", ev.Prefix, ev.Sn)
		}
		m.log.Infof("accepted: prefix: %q  sn: %d", ev.Prefix, ev.Sn)

		// the new entry may have been the gap blocking successors
		_, err = m.sweepLocked(ev.Prefix)
		if nil != err {
			return Result{}, err
		}
		return Result{Disposition: Accepted, Fn: ev.Sn}, nil
	}

	// one candidate per ordinal across the whole escrow: a pending
	// slot held by a different digest rejects the newcomer, even in a
	// queue the newcomer itself is not blocked on
	for _, q := range m.qs {
		held, err := q.table.Get(ev.Prefix, ev.Sn)
		if nil != err {
			return Result{}, err
		}
		if nil != held && !bytes.Equal(held, ev.Digest) {
			m.log.Warnf("conflicting pending event: prefix: %q  sn: %d", ev.Prefix, ev.Sn)
			return Result{Disposition: Conflicting}, nil
		}
	}

	err = m.fileToQueues(ev, blocked)
	if nil != err {
		return Result{}, err
	}
	m.log.Debugf("escrowed: prefix: %q  sn: %d  queues: %s", ev.Prefix, ev.Sn, blocked)

	return Result{Disposition: Escrowed, Queues: blocked}, nil
}

// store the event body, serialised against open transactions
func (m *Manager) storeBody(ev Event) error {
	m.trxMu.Lock()
	defer m.trxMu.Unlock()

	_, err := m.reg.Events.Put(ev.Prefix, ev.Digest, ev.Body)
	return err
}

// append the canonical row, serialised against open transactions
func (m *Manager) appendCanonical(ev Event) (bool, error) {
	m.trxMu.Lock()
	defer m.trxMu.Unlock()

	return m.reg.Log.Put(ev.Prefix, ev.Sn, ev.Digest)
}

// park the event in every blocked queue, serialised against open
// transactions; filing is insert-only so a repeat offer is a no-op
func (m *Manager) fileToQueues(ev Event, blocked Queues) error {
	m.trxMu.Lock()
	defer m.trxMu.Unlock()

	for _, q := range m.qs {
		if 0 == blocked&q.flag {
			continue
		}
		_, err := q.table.Put(ev.Prefix, ev.Sn, ev.Digest)
		if nil != err {
			return err
		}
	}
	return nil
}
