// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package escrow

import (
	"bytes"
	"sort"
)

// one pending entry due for re-examination
type candidate struct {
	sn     uint64
	digest []byte
	queues Queues
}

// PendingCounts - per-queue entry counts for one prefix
type PendingCounts struct {
	OutOfOrder    uint64
	PartWitnessed uint64
	Anchorless    uint64
}

// Stats - lifetime totals for one manager
type Stats struct {
	Ingested uint64
	Promoted uint64
	Dropped  uint64
	Sweeps   uint64
}

// Sweep - re-examine every pending entry for one prefix
//
// Entries are visited in ascending ordinal order and each pass repeats
// until no entry is promoted, so one call settles a whole released
// chain.  Stale entries and entries whose ordinal is already canonical
// are removed along the way.  The promotion count is returned.
//
// A sweep only moves entries forward or removes settled ones, so
// re-running it after a crash is harmless.
func (m *Manager) Sweep(prefix []byte) (int, error) {
	lock := m.lockFor(prefix)
	lock.Lock()
	defer lock.Unlock()

	return m.sweepLocked(prefix)
}

// Notify - record that signatures, seals or predecessors arrived out
// of band and run the sweep those writes may have unblocked
func (m *Manager) Notify(kind Trigger, prefix []byte) (int, error) {
	m.log.Debugf("notify: %s: prefix: %q", kind, prefix)
	return m.Sweep(prefix)
}

// caller holds the prefix lock
func (m *Manager) sweepLocked(prefix []byte) (int, error) {
	m.sweeps.Increment()

	total := 0
passes:
	for {
		candidates, err := m.collect(prefix)
		if nil != err {
			return total, err
		}
		if 0 == len(candidates) {
			break passes
		}

		promotedThisPass := 0
		for _, c := range candidates {

			if nil != m.stale && m.stale(prefix, c.sn, c.digest) {
				err = m.remove(prefix, c)
				if nil != err {
					return total, err
				}
				m.dropped.Increment()
				m.log.Infof("dropped stale entry: prefix: %q  sn: %d", prefix, c.sn)
				continue
			}

			current, err := m.reg.Log.Get(prefix, c.sn)
			if nil != err {
				return total, err
			}
			if nil != current {
				// ordinal settled while this entry was pending
				err = m.remove(prefix, c)
				if nil != err {
					return total, err
				}
				if !bytes.Equal(current, c.digest) {
					m.dropped.Increment()
					m.log.Infof("dropped superseded entry: prefix: %q  sn: %d", prefix, c.sn)
				}
				continue
			}

			ready := true
			for _, q := range m.qs {
				failed, err := q.blocked(prefix, c.sn, c.digest)
				if nil != err {
					return total, err
				}
				if failed {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}

			err = m.promote(prefix, c)
			if nil != err {
				return total, err
			}
			promotedThisPass += 1
			total += 1
		}

		if 0 == promotedThisPass {
			break passes
		}
	}
	return total, nil
}

// merge the three queues into one ascending ordinal worklist
func (m *Manager) collect(prefix []byte) ([]candidate, error) {
	merged := map[uint64]*candidate{}
	order := []uint64{}

	for _, q := range m.qs {
		items := q.table.Items(prefix, 0)
		for items.Next() {
			sn := items.Ordinal()
			c, ok := merged[sn]
			if !ok {
				c = &candidate{
					sn:     sn,
					digest: items.Digest(),
				}
				merged[sn] = c
				order = append(order, sn)
			}
			c.queues |= q.flag
		}
		if err := items.Error(); nil != err {
			return nil, err
		}
	}

	sort.Slice(order, func(i int, j int) bool {
		return order[i] < order[j]
	})

	out := make([]candidate, 0, len(order))
	for _, sn := range order {
		out = append(out, *merged[sn])
	}
	return out, nil
}

// move one entry to the canonical log: its queue rows are deleted and
// the canonical row appended in a single store transaction
func (m *Manager) promote(prefix []byte, c candidate) error {
	m.trxMu.Lock()
	defer m.trxMu.Unlock()

	store := m.reg.Store()
	err := store.Begin()
	if nil != err {
		return err
	}

	for _, q := range m.qs {
		if 0 == c.queues&q.flag {
			continue
		}
		_, err = q.table.Delete(prefix, c.sn)
		if nil != err {
			store.Abort()
			return err
		}
	}

	added, err := m.reg.Log.Put(prefix, c.sn, c.digest)
	if nil != err {
		store.Abort()
		return err
	}
	if !added {
		// the slot was checked empty under the prefix lock
		store.Abort()
		m.log.Criticalf("promotion lost ordinal %d of prefix %q", c.sn, prefix)
		return nil
	}

	err = store.Commit()
	if nil != err {
		return err
	}

	m.promoted.Increment()
	m.log.Infof("promoted: prefix: %q  sn: %d", prefix, c.sn)
	return nil
}

// delete an entry's rows from every queue holding it, atomically
func (m *Manager) remove(prefix []byte, c candidate) error {
	m.trxMu.Lock()
	defer m.trxMu.Unlock()

	store := m.reg.Store()
	err := store.Begin()
	if nil != err {
		return err
	}

	for _, q := range m.qs {
		if 0 == c.queues&q.flag {
			continue
		}
		_, err = q.table.Delete(prefix, c.sn)
		if nil != err {
			store.Abort()
			return err
		}
	}

	return store.Commit()
}

// Drop - discard the pending entry at one ordinal
//
// All queue rows for the ordinal are removed in a single transaction.
// The stored body is retained since other events may reference it.
// Returns false when nothing was pending at the ordinal.
func (m *Manager) Drop(prefix []byte, sn uint64) (bool, error) {
	lock := m.lockFor(prefix)
	lock.Lock()
	defer lock.Unlock()

	m.trxMu.Lock()
	defer m.trxMu.Unlock()

	store := m.reg.Store()
	err := store.Begin()
	if nil != err {
		return false, err
	}

	removed := false
	for _, q := range m.qs {
		deleted, err := q.table.Delete(prefix, sn)
		if nil != err {
			store.Abort()
			return false, err
		}
		removed = removed || deleted
	}

	if !removed {
		store.Abort()
		return false, nil
	}

	err = store.Commit()
	if nil != err {
		return false, err
	}

	m.dropped.Increment()
	m.log.Infof("dropped: prefix: %q  sn: %d", prefix, sn)
	return true, nil
}

// Pending - count the queued entries for one prefix
func (m *Manager) Pending(prefix []byte) (PendingCounts, error) {
	lock := m.lockFor(prefix)
	lock.Lock()
	defer lock.Unlock()

	counts := PendingCounts{}
	for _, q := range m.qs {
		n, err := q.table.Count(prefix, 0)
		if nil != err {
			return PendingCounts{}, err
		}
		switch q.flag {
		case QueueOutOfOrder:
			counts.OutOfOrder = n
		case QueuePartWitnessed:
			counts.PartWitnessed = n
		case QueueAnchorless:
			counts.Anchorless = n
		}
	}
	return counts, nil
}

// Stats - lifetime totals since the manager was created
func (m *Manager) Stats() Stats {
	return Stats{
		Ingested: m.ingested.Uint64(),
		Promoted: m.promoted.Uint64(),
		Dropped:  m.dropped.Uint64(),
		Sweeps:   m.sweeps.Uint64(),
	}
}
