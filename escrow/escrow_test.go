// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package escrow_test

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rubelhassan/kerireg/escrow"
	"github.com/rubelhassan/kerireg/fault"
	"github.com/rubelhassan/kerireg/fixtures"
	"github.com/rubelhassan/kerireg/registry"
	"github.com/rubelhassan/kerireg/storage"
)

func TestMain(m *testing.M) {
	fixtures.SetupTestLogger()
	rc := m.Run()
	fixtures.TeardownTestLogger()
	os.Exit(rc)
}

// run one test body against a manager over every storage engine
func withEachManager(t *testing.T, options escrow.Options, f func(t *testing.T, r *registry.Registry, m *escrow.Manager)) {
	engines := []struct {
		name      string
		directory string
	}{
		{storage.EngineLevelDB, "test.escrow.leveldb"},
		{storage.EnginePebble, "test.escrow.pebble"},
	}

	for _, engine := range engines {
		engine := engine
		t.Run(engine.name, func(t *testing.T) {
			os.RemoveAll(engine.directory)
			store, err := storage.Open(storage.Config{
				Directory: engine.directory,
				Engine:    engine.name,
			})
			if nil != err {
				t.Fatalf("open %s error: %s", engine.name, err)
			}
			defer func() {
				store.Close()
				os.RemoveAll(engine.directory)
			}()

			r, err := registry.New(store)
			if nil != err {
				t.Fatalf("registry error: %s", err)
			}
			m, err := escrow.New(r, options)
			if nil != err {
				t.Fatalf("escrow error: %s", err)
			}

			f(t, r, m)
		})
	}
}

// build the event at one ordinal of a prefix
func testEvent(prefix string, sn uint64, kind string) escrow.Event {
	return escrow.Event{
		Prefix: []byte(prefix),
		Sn:     sn,
		Digest: []byte(fixtures.EventDigest(prefix, sn, kind)),
		Body:   fixtures.EventBody(prefix, sn, kind),
	}
}

// store the seal that satisfies the anchor check for one event
func anchorEvent(t *testing.T, r *registry.Registry, ev escrow.Event) {
	quad := fixtures.SealQuadruple("anchor:"+string(ev.Digest), ev.Sn, 0)
	_, err := r.Anchors.Put(ev.Prefix, ev.Digest, quad)
	assert.Nil(t, err, "anchor error")
}

func TestIngestReverseOrder(t *testing.T) {
	withEachManager(t, escrow.Options{}, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		prefix := fixtures.Prefix("escrow-reverse")

		events := make([]escrow.Event, 6)
		for sn := 0; sn < len(events); sn += 1 {
			kind := "vrt"
			if 0 == sn {
				kind = "vcp"
			}
			events[sn] = testEvent(prefix, uint64(sn), kind)
			anchorEvent(t, r, events[sn])
		}

		// everything except the inception arrives first, newest first
		for sn := 5; sn >= 1; sn -= 1 {
			res, err := m.Ingest(events[sn])
			assert.Nil(t, err, "ingest error")
			assert.Equal(t, escrow.Escrowed, res.Disposition, "not escrowed")
			assert.Equal(t, escrow.QueueOutOfOrder, res.Queues, "wrong queue set")
		}

		counts, err := m.Pending([]byte(prefix))
		assert.Nil(t, err, "pending error")
		assert.Equal(t, uint64(5), counts.OutOfOrder, "wrong pending count")

		// the inception fills the gap and the whole chain settles
		res, err := m.Ingest(events[0])
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Accepted, res.Disposition, "inception not accepted")
		assert.Equal(t, uint64(0), res.Fn, "wrong ordinal")

		for sn := uint64(0); sn <= 5; sn += 1 {
			has, err := r.Log.Has([]byte(prefix), sn)
			assert.Nil(t, err, "has error")
			assert.True(t, has, "ordinal not canonical")
		}

		counts, err = m.Pending([]byte(prefix))
		assert.Nil(t, err, "pending error")
		assert.Equal(t, escrow.PendingCounts{}, counts, "queues not empty")

		stats := m.Stats()
		assert.Equal(t, escrow.Stats{Ingested: 6, Promoted: 5, Dropped: 0, Sweeps: 1}, stats, "wrong stats")

		// rerunning the sweep finds the same fixed point
		promoted, err := m.Sweep([]byte(prefix))
		assert.Nil(t, err, "sweep error")
		assert.Equal(t, 0, promoted, "second sweep moved entries")

		stats = m.Stats()
		assert.Equal(t, escrow.Stats{Ingested: 6, Promoted: 5, Dropped: 0, Sweeps: 2}, stats, "wrong stats")
	})
}

func TestIngestMultiQueue(t *testing.T) {
	options := escrow.Options{
		Thresholds: escrow.ThresholdFunc(func(prefix []byte, sn uint64, digest []byte) (uint64, error) {
			return 2, nil
		}),
	}
	withEachManager(t, options, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		prefix := fixtures.Prefix("escrow-multi")

		// no predecessor, no signatures, no seal
		ev := testEvent(prefix, 2, "vrt")
		res, err := m.Ingest(ev)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Escrowed, res.Disposition, "not escrowed")
		all := escrow.QueueOutOfOrder | escrow.QueuePartWitnessed | escrow.QueueAnchorless
		assert.Equal(t, all, res.Queues, "wrong queue set")

		counts, err := m.Pending([]byte(prefix))
		assert.Nil(t, err, "pending error")
		expected := escrow.PendingCounts{OutOfOrder: 1, PartWitnessed: 1, Anchorless: 1}
		assert.Equal(t, expected, counts, "wrong pending counts")

		// satisfy the conditions one at a time: predecessors first
		for _, e := range []escrow.Event{testEvent(prefix, 0, "vcp"), testEvent(prefix, 1, "vrt")} {
			anchorEvent(t, r, e)
			for i := 0; i < 2; i += 1 {
				sig := []byte(fixtures.IndexedSig("wit:"+string(e.Digest), i))
				_, err := r.WitnessSigs.Add(e.Prefix, e.Digest, sig)
				assert.Nil(t, err, "sig error")
			}
			res, err := m.Ingest(e)
			assert.Nil(t, err, "ingest error")
			assert.Equal(t, escrow.Accepted, res.Disposition, "predecessor not accepted")
		}

		// gap closed but quorum still missing
		has, err := r.Log.Has([]byte(prefix), 2)
		assert.Nil(t, err, "has error")
		assert.False(t, has, "released without quorum")

		// quorum next
		for i := 0; i < 2; i += 1 {
			sig := []byte(fixtures.IndexedSig("wit:"+string(ev.Digest), i))
			_, err := r.WitnessSigs.Add(ev.Prefix, ev.Digest, sig)
			assert.Nil(t, err, "sig error")
		}
		promoted, err := m.Notify(escrow.TriggerWitnessSig, []byte(prefix))
		assert.Nil(t, err, "notify error")
		assert.Equal(t, 0, promoted, "released without seal")

		// the seal releases the entry
		anchorEvent(t, r, ev)
		promoted, err = m.Notify(escrow.TriggerAnchor, []byte(prefix))
		assert.Nil(t, err, "notify error")
		assert.Equal(t, 1, promoted, "entry not released")

		has, err = r.Log.Has([]byte(prefix), 2)
		assert.Nil(t, err, "has error")
		assert.True(t, has, "ordinal not canonical")

		// promotion cleared every queue row
		counts, err = m.Pending([]byte(prefix))
		assert.Nil(t, err, "pending error")
		assert.Equal(t, escrow.PendingCounts{}, counts, "queues not empty")
	})
}

func TestIngestDuplicateAndConflict(t *testing.T) {
	withEachManager(t, escrow.Options{}, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		prefix := fixtures.Prefix("escrow-conflict")

		ev := testEvent(prefix, 0, "vcp")
		anchorEvent(t, r, ev)
		res, err := m.Ingest(ev)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Accepted, res.Disposition, "not accepted")

		// same digest again
		res, err = m.Ingest(ev)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Duplicate, res.Disposition, "not a duplicate")
		assert.Equal(t, uint64(0), res.Fn, "wrong ordinal")

		// a different digest for a settled ordinal is rejected
		forged := testEvent(prefix, 0, "iss")
		res, err = m.Ingest(forged)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Conflicting, res.Disposition, "forgery not rejected")

		dig, err := r.Log.Get([]byte(prefix), 0)
		assert.Nil(t, err, "get error")
		assert.Equal(t, ev.Digest, dig, "canonical digest replaced")

		// a different digest for a pending ordinal is rejected too
		pending := testEvent(prefix, 2, "vrt")
		anchorEvent(t, r, pending)
		res, err = m.Ingest(pending)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Escrowed, res.Disposition, "not escrowed")

		rival := testEvent(prefix, 2, "iss")
		anchorEvent(t, r, rival)
		res, err = m.Ingest(rival)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Conflicting, res.Disposition, "rival not rejected")

		held, err := r.OutOfOrder.Get([]byte(prefix), 2)
		assert.Nil(t, err, "get error")
		assert.Equal(t, pending.Digest, held, "pending digest replaced")

		counts, err := m.Pending([]byte(prefix))
		assert.Nil(t, err, "pending error")
		assert.Equal(t, uint64(1), counts.OutOfOrder, "rival was filed")
	})
}

// rivals for one ordinal must collide even when their pending queues
// are disjoint
func TestIngestConflictAcrossQueues(t *testing.T) {
	options := escrow.Options{
		Thresholds: escrow.ThresholdFunc(func(prefix []byte, sn uint64, digest []byte) (uint64, error) {
			return 1, nil
		}),
	}
	withEachManager(t, options, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		prefix := fixtures.Prefix("escrow-disjoint")

		// settle the inception so the gap check passes at ordinal one
		inception := testEvent(prefix, 0, "vcp")
		anchorEvent(t, r, inception)
		sig := []byte(fixtures.IndexedSig("wit:"+string(inception.Digest), 0))
		_, err := r.WitnessSigs.Add(inception.Prefix, inception.Digest, sig)
		assert.Nil(t, err, "sig error")
		res, err := m.Ingest(inception)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Accepted, res.Disposition, "inception not accepted")

		// anchored but below quorum: waits in the witness queue only
		pending := testEvent(prefix, 1, "vrt")
		anchorEvent(t, r, pending)
		res, err = m.Ingest(pending)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Escrowed, res.Disposition, "not escrowed")
		assert.Equal(t, escrow.QueuePartWitnessed, res.Queues, "wrong queue set")

		// quorum met but unanchored: would wait in the anchorless queue
		rival := testEvent(prefix, 1, "iss")
		sig = []byte(fixtures.IndexedSig("wit:"+string(rival.Digest), 0))
		_, err = r.WitnessSigs.Add(rival.Prefix, rival.Digest, sig)
		assert.Nil(t, err, "sig error")
		res, err = m.Ingest(rival)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Conflicting, res.Disposition, "rival not rejected")

		counts, err := m.Pending([]byte(prefix))
		assert.Nil(t, err, "pending error")
		assert.Equal(t, escrow.PendingCounts{PartWitnessed: 1}, counts, "rival was filed")

		held, err := r.PartWitnessed.Get([]byte(prefix), 1)
		assert.Nil(t, err, "get error")
		assert.Equal(t, pending.Digest, held, "pending digest replaced")
	})
}

func TestSweepStalePolicy(t *testing.T) {
	options := escrow.Options{
		Stale: func(prefix []byte, sn uint64, digest []byte) bool {
			return sn >= 100
		},
	}
	withEachManager(t, options, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		prefix := fixtures.Prefix("escrow-stale")

		ev := testEvent(prefix, 100, "vrt")
		anchorEvent(t, r, ev)
		res, err := m.Ingest(ev)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Escrowed, res.Disposition, "not escrowed")

		promoted, err := m.Sweep([]byte(prefix))
		assert.Nil(t, err, "sweep error")
		assert.Equal(t, 0, promoted, "stale entry promoted")

		counts, err := m.Pending([]byte(prefix))
		assert.Nil(t, err, "pending error")
		assert.Equal(t, escrow.PendingCounts{}, counts, "stale entry still pending")

		// the body outlives the queue entry
		has, err := r.Events.Has(ev.Prefix, ev.Digest)
		assert.Nil(t, err, "has error")
		assert.True(t, has, "body discarded")

		stats := m.Stats()
		assert.Equal(t, uint64(1), stats.Dropped, "wrong drop count")
		assert.Equal(t, uint64(0), stats.Promoted, "wrong promotion count")
	})
}

func TestDrop(t *testing.T) {
	withEachManager(t, escrow.Options{}, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		prefix := fixtures.Prefix("escrow-drop")

		// missing predecessor and seal
		ev := testEvent(prefix, 7, "vrt")
		res, err := m.Ingest(ev)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Escrowed, res.Disposition, "not escrowed")
		assert.Equal(t, escrow.QueueOutOfOrder|escrow.QueueAnchorless, res.Queues, "wrong queue set")

		dropped, err := m.Drop([]byte(prefix), 7)
		assert.Nil(t, err, "drop error")
		assert.True(t, dropped, "nothing dropped")

		counts, err := m.Pending([]byte(prefix))
		assert.Nil(t, err, "pending error")
		assert.Equal(t, escrow.PendingCounts{}, counts, "queues not empty")

		has, err := r.Events.Has(ev.Prefix, ev.Digest)
		assert.Nil(t, err, "has error")
		assert.True(t, has, "body discarded")

		dropped, err = m.Drop([]byte(prefix), 7)
		assert.Nil(t, err, "drop error")
		assert.False(t, dropped, "dropped twice")

		stats := m.Stats()
		assert.Equal(t, uint64(1), stats.Dropped, "wrong drop count")
	})
}

func TestSweepSuperseded(t *testing.T) {
	withEachManager(t, escrow.Options{}, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		prefix := fixtures.Prefix("escrow-supersede")

		// parked waiting for its predecessor and seal
		loser := testEvent(prefix, 1, "vrt")
		res, err := m.Ingest(loser)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Escrowed, res.Disposition, "not escrowed")

		// recovery writes the canonical rows directly
		dig0 := []byte(fixtures.EventDigest(prefix, 0, "vcp"))
		winner := []byte(fixtures.EventDigest(prefix, 1, "iss"))
		added, err := r.Log.Put([]byte(prefix), 0, dig0)
		assert.Nil(t, err, "put error")
		assert.True(t, added, "not stored")
		added, err = r.Log.Put([]byte(prefix), 1, winner)
		assert.Nil(t, err, "put error")
		assert.True(t, added, "not stored")

		promoted, err := m.Sweep([]byte(prefix))
		assert.Nil(t, err, "sweep error")
		assert.Equal(t, 0, promoted, "superseded entry promoted")

		counts, err := m.Pending([]byte(prefix))
		assert.Nil(t, err, "pending error")
		assert.Equal(t, escrow.PendingCounts{}, counts, "loser still pending")

		dig, err := r.Log.Get([]byte(prefix), 1)
		assert.Nil(t, err, "get error")
		assert.Equal(t, winner, dig, "canonical digest replaced")

		stats := m.Stats()
		assert.Equal(t, uint64(1), stats.Dropped, "wrong drop count")

		// an entry whose own digest was settled elsewhere is just removed
		settled := testEvent(prefix, 3, "vrt")
		res, err = m.Ingest(settled)
		assert.Nil(t, err, "ingest error")
		assert.Equal(t, escrow.Escrowed, res.Disposition, "not escrowed")

		added, err = r.Log.Put([]byte(prefix), 2, []byte(fixtures.EventDigest(prefix, 2, "vrt")))
		assert.Nil(t, err, "put error")
		assert.True(t, added, "not stored")
		added, err = r.Log.Put([]byte(prefix), 3, settled.Digest)
		assert.Nil(t, err, "put error")
		assert.True(t, added, "not stored")

		promoted, err = m.Sweep([]byte(prefix))
		assert.Nil(t, err, "sweep error")
		assert.Equal(t, 0, promoted, "settled entry promoted")

		counts, err = m.Pending([]byte(prefix))
		assert.Nil(t, err, "pending error")
		assert.Equal(t, escrow.PendingCounts{}, counts, "settled entry still pending")

		// settling an entry's own digest is not a drop
		stats = m.Stats()
		assert.Equal(t, uint64(1), stats.Dropped, "wrong drop count")
	})
}

func TestIngestValidation(t *testing.T) {
	withEachManager(t, escrow.Options{}, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		prefix := fixtures.Prefix("escrow-validate")

		bad := []escrow.Event{
			{},
			{Prefix: []byte(prefix), Sn: 0, Digest: []byte("dig"), Body: nil},
			{Prefix: []byte(prefix), Sn: 0, Digest: nil, Body: []byte("body")},
			{Prefix: nil, Sn: 0, Digest: []byte("dig"), Body: []byte("body")},
		}
		for i, ev := range bad {
			_, err := m.Ingest(ev)
			assert.Equal(t, fault.InvalidEvent, err, "case %d not rejected", i)
		}
	})
}

func TestThresholdSourceError(t *testing.T) {
	boom := fault.ProcessError("threshold unavailable")
	options := escrow.Options{
		Thresholds: escrow.ThresholdFunc(func(prefix []byte, sn uint64, digest []byte) (uint64, error) {
			return 0, boom
		}),
	}
	withEachManager(t, options, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		prefix := fixtures.Prefix("escrow-threshold-error")

		ev := testEvent(prefix, 0, "vcp")
		anchorEvent(t, r, ev)
		_, err := m.Ingest(ev)
		assert.Equal(t, boom, err, "source error lost")
	})
}

func TestPendingPrefixIsolation(t *testing.T) {
	withEachManager(t, escrow.Options{}, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		one := fixtures.Prefix("escrow-iso-one")
		two := fixtures.Prefix("escrow-iso-two")

		for _, prefix := range []string{one, two} {
			res, err := m.Ingest(testEvent(prefix, 2, "vrt"))
			assert.Nil(t, err, "ingest error")
			assert.Equal(t, escrow.Escrowed, res.Disposition, "not escrowed")
		}

		counts, err := m.Pending([]byte(one))
		assert.Nil(t, err, "pending error")
		expected := escrow.PendingCounts{OutOfOrder: 1, Anchorless: 1}
		assert.Equal(t, expected, counts, "wrong pending counts")

		counts, err = m.Pending([]byte(fixtures.Prefix("escrow-iso-empty")))
		assert.Nil(t, err, "pending error")
		assert.Equal(t, escrow.PendingCounts{}, counts, "phantom pending entries")
	})
}

func TestConcurrentPrefixes(t *testing.T) {
	withEachManager(t, escrow.Options{}, func(t *testing.T, r *registry.Registry, m *escrow.Manager) {
		prefixes := []string{
			fixtures.Prefix("escrow-conc-one"),
			fixtures.Prefix("escrow-conc-two"),
			fixtures.Prefix("escrow-conc-three"),
			fixtures.Prefix("escrow-conc-four"),
		}

		const chain = 10

		events := map[string][]escrow.Event{}
		for _, prefix := range prefixes {
			chainEvents := make([]escrow.Event, chain)
			for sn := 0; sn < chain; sn += 1 {
				kind := "vrt"
				if 0 == sn {
					kind = "vcp"
				}
				chainEvents[sn] = testEvent(prefix, uint64(sn), kind)
				anchorEvent(t, r, chainEvents[sn])
			}
			events[prefix] = chainEvents
		}

		errs := make(chan error, len(prefixes)*chain)
		wg := sync.WaitGroup{}
		for _, prefix := range prefixes {
			wg.Add(1)
			go func(chainEvents []escrow.Event) {
				defer wg.Done()
				// newest first so every prefix exercises the sweep
				for sn := chain - 1; sn >= 0; sn -= 1 {
					_, err := m.Ingest(chainEvents[sn])
					if nil != err {
						errs <- err
					}
				}
			}(events[prefix])
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.Nil(t, err, "ingest error")
		}

		for _, prefix := range prefixes {
			for sn := uint64(0); sn < chain; sn += 1 {
				has, err := r.Log.Has([]byte(prefix), sn)
				assert.Nil(t, err, "has error")
				assert.True(t, has, "ordinal not canonical")
			}
			counts, err := m.Pending([]byte(prefix))
			assert.Nil(t, err, "pending error")
			assert.Equal(t, escrow.PendingCounts{}, counts, "queues not empty")
		}

		stats := m.Stats()
		assert.Equal(t, uint64(len(prefixes)*chain), stats.Ingested, "wrong ingest count")
		assert.Equal(t, uint64(len(prefixes)*(chain-1)), stats.Promoted, "wrong promotion count")
	})
}

func TestNewNilRegistry(t *testing.T) {
	_, err := escrow.New(nil, escrow.Options{})
	assert.Equal(t, fault.NotInitialised, err, "nil registry accepted")
}

func TestQueueNames(t *testing.T) {
	assert.Equal(t, "none", escrow.Queues(0).String(), "wrong name")
	assert.Equal(t, "out-of-order", escrow.QueueOutOfOrder.String(), "wrong name")
	all := escrow.QueueOutOfOrder | escrow.QueuePartWitnessed | escrow.QueueAnchorless
	assert.Equal(t, "out-of-order|partly-witnessed|anchorless", all.String(), "wrong name")
	assert.Equal(t, "accepted", escrow.Accepted.String(), "wrong name")
	assert.Equal(t, "conflicting", escrow.Conflicting.String(), "wrong name")
	assert.Equal(t, "witness-signature", escrow.TriggerWitnessSig.String(), "wrong name")
}
