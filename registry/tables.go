// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package registry

import (
	"bytes"

	"github.com/rubelhassan/kerireg/keyspace"
	"github.com/rubelhassan/kerireg/storage"
)

// EventStore - content addressed serialized event bodies
//
// bodies are opaque validated bytes addressed by prefix and digest;
// Put is write once so a stored body can never be silently replaced
type EventStore struct {
	pool *storage.PoolHandle
}

// Put - store a body only if its digest key is absent
func (e *EventStore) Put(prefix []byte, digest []byte, body []byte) (bool, error) {
	return e.pool.Put(keyspace.DigestKey(prefix, digest), body)
}

// Set - store a body overwriting any previous one
func (e *EventStore) Set(prefix []byte, digest []byte, body []byte) error {
	return e.pool.Set(keyspace.DigestKey(prefix, digest), body)
}

// Get - body bytes or nil when absent
func (e *EventStore) Get(prefix []byte, digest []byte) ([]byte, error) {
	return e.pool.Get(keyspace.DigestKey(prefix, digest))
}

// Has - check a body is stored
func (e *EventStore) Has(prefix []byte, digest []byte) (bool, error) {
	return e.pool.Has(keyspace.DigestKey(prefix, digest))
}

// Delete - remove a body, returns true if one was stored
func (e *EventStore) Delete(prefix []byte, digest []byte) (bool, error) {
	return e.pool.Delete(keyspace.DigestKey(prefix, digest))
}

// SeqIndex - ordinal to digest index for one table
//
// the same shape serves the canonical log and all three escrow
// queues; keys order numerically so iteration replays ascending
type SeqIndex struct {
	pool *storage.PoolHandle
}

// Put - file a digest only if the ordinal slot is empty
func (x *SeqIndex) Put(prefix []byte, sn uint64, digest []byte) (bool, error) {
	return x.pool.Put(keyspace.SequenceKey(prefix, sn), digest)
}

// Set - file a digest overwriting any previous one
func (x *SeqIndex) Set(prefix []byte, sn uint64, digest []byte) error {
	return x.pool.Set(keyspace.SequenceKey(prefix, sn), digest)
}

// Get - digest at an ordinal or nil when the slot is empty
func (x *SeqIndex) Get(prefix []byte, sn uint64) ([]byte, error) {
	return x.pool.Get(keyspace.SequenceKey(prefix, sn))
}

// Has - check an ordinal slot is occupied
func (x *SeqIndex) Has(prefix []byte, sn uint64) (bool, error) {
	return x.pool.Has(keyspace.SequenceKey(prefix, sn))
}

// Delete - clear an ordinal slot, returns true if it was occupied
func (x *SeqIndex) Delete(prefix []byte, sn uint64) (bool, error) {
	return x.pool.Delete(keyspace.SequenceKey(prefix, sn))
}

// Items - cursor over (ordinal, digest) pairs of one prefix in
// ascending ordinal order starting at start
func (x *SeqIndex) Items(prefix []byte, start uint64) *OrdinalCursor {
	cursor := x.pool.NewFetchCursor()
	cursor.Seek(keyspace.SequenceKey(prefix, start))

	bound := make([]byte, len(prefix))
	copy(bound, prefix)

	return &OrdinalCursor{
		cursor: cursor,
		prefix: bound,
	}
}

// Count - number of occupied ordinal slots of one prefix from start
func (x *SeqIndex) Count(prefix []byte, start uint64) (uint64, error) {
	n := uint64(0)
	items := x.Items(prefix, start)
	for items.Next() {
		n += 1
	}
	if err := items.Error(); nil != err {
		return 0, err
	}
	return n, nil
}

// number of elements fetched per cursor refill
const ordinalFetchSize = 100

// OrdinalCursor - stepwise ascending iteration of one prefix inside a
// sequence indexed table
//
// steps reopen the underlying scan so the cursor survives interleaved
// writes; iteration ends at the first key of a different prefix
type OrdinalCursor struct {
	cursor  *storage.FetchCursor
	prefix  []byte
	buffer  []storage.Element
	index   int
	ordinal uint64
	digest  []byte
	err     error
	done    bool
}

// Next - advance to the next occupied slot
//
// returns false when exhausted or on error
func (c *OrdinalCursor) Next() bool {
	if c.done {
		return false
	}

	if c.index >= len(c.buffer) {
		batch, err := c.cursor.Fetch(ordinalFetchSize)
		if nil != err {
			c.err = err
			c.done = true
			return false
		}
		if 0 == len(batch) {
			c.done = true
			return false
		}
		c.buffer = batch
		c.index = 0
	}

	e := c.buffer[c.index]
	c.index += 1

	prefix, sn, err := keyspace.ParseSequenceKey(e.Key)
	if nil != err {
		c.err = err
		c.done = true
		return false
	}
	if !bytes.Equal(prefix, c.prefix) {
		c.done = true
		return false
	}

	c.ordinal = sn
	c.digest = e.Value
	return true
}

// Ordinal - the ordinal at the current position
func (c *OrdinalCursor) Ordinal() uint64 {
	return c.ordinal
}

// Digest - the digest at the current position
func (c *OrdinalCursor) Digest() []byte {
	return c.digest
}

// Error - the first failure encountered while stepping
func (c *OrdinalCursor) Error() error {
	return c.err
}

// SigIndex - witness signature sets per event instance
//
// signatures at one digest key form a set replayed in lexicographic
// order, which for indexed signatures is key index order
type SigIndex struct {
	multi *storage.MultiHandle
}

// Add - insert one signature, returns true if it was new
func (s *SigIndex) Add(prefix []byte, digest []byte, sig []byte) (bool, error) {
	return s.multi.Add(keyspace.DigestKey(prefix, digest), sig)
}

// AddAll - insert a group of signatures as one atomic write
func (s *SigIndex) AddAll(prefix []byte, digest []byte, sigs [][]byte) (bool, error) {
	return s.multi.AddAll(keyspace.DigestKey(prefix, digest), sigs)
}

// GetAll - every stored signature in lexicographic order
func (s *SigIndex) GetAll(prefix []byte, digest []byte) ([][]byte, error) {
	return s.multi.GetAll(keyspace.DigestKey(prefix, digest))
}

// Iter - cursor over stored signatures
func (s *SigIndex) Iter(prefix []byte, digest []byte) (*storage.ValueCursor, error) {
	return s.multi.Iter(keyspace.DigestKey(prefix, digest))
}

// Count - number of stored signatures
func (s *SigIndex) Count(prefix []byte, digest []byte) (uint64, error) {
	return s.multi.Count(keyspace.DigestKey(prefix, digest))
}

// Delete - remove one signature
func (s *SigIndex) Delete(prefix []byte, digest []byte, sig []byte) (bool, error) {
	return s.multi.Delete(keyspace.DigestKey(prefix, digest), sig)
}

// DeleteAll - remove every signature of one event instance
func (s *SigIndex) DeleteAll(prefix []byte, digest []byte) (bool, error) {
	return s.multi.DeleteAll(keyspace.DigestKey(prefix, digest))
}

// BackerIndex - backer rosters per management event instance
//
// roster entries replay in the order they were first added, not
// sorted, as roster position is meaningful
type BackerIndex struct {
	list *storage.ListHandle
}

// Add - append one backer, returns true if it was new
func (b *BackerIndex) Add(prefix []byte, digest []byte, backer []byte) (bool, error) {
	return b.list.Add(keyspace.DigestKey(prefix, digest), backer)
}

// AddAll - append a group of backers as one atomic write
func (b *BackerIndex) AddAll(prefix []byte, digest []byte, backers [][]byte) (bool, error) {
	return b.list.AddAll(keyspace.DigestKey(prefix, digest), backers)
}

// GetAll - the roster in insertion order
func (b *BackerIndex) GetAll(prefix []byte, digest []byte) ([][]byte, error) {
	return b.list.GetAll(keyspace.DigestKey(prefix, digest))
}

// Iter - cursor over the roster in insertion order
func (b *BackerIndex) Iter(prefix []byte, digest []byte) (*storage.ValueCursor, error) {
	return b.list.Iter(keyspace.DigestKey(prefix, digest))
}

// Count - roster size
func (b *BackerIndex) Count(prefix []byte, digest []byte) (uint64, error) {
	return b.list.Count(keyspace.DigestKey(prefix, digest))
}

// Delete - remove one backer
func (b *BackerIndex) Delete(prefix []byte, digest []byte, backer []byte) (bool, error) {
	return b.list.Delete(keyspace.DigestKey(prefix, digest), backer)
}

// DeleteAll - remove the whole roster of one event instance
func (b *BackerIndex) DeleteAll(prefix []byte, digest []byte) (bool, error) {
	return b.list.DeleteAll(keyspace.DigestKey(prefix, digest))
}

// AnchorIndex - authorizing seal quadruples per event instance
//
// a single signer authorizer stores one quadruple; a multi signature
// authorizer stores one per signing key at the same digest key
type AnchorIndex struct {
	multi *storage.MultiHandle
}

// Put - insert one quadruple, returns true if it was new
func (a *AnchorIndex) Put(prefix []byte, digest []byte, quadruple []byte) (bool, error) {
	return a.multi.Add(keyspace.DigestKey(prefix, digest), quadruple)
}

// Set - replace every stored quadruple with the given one
func (a *AnchorIndex) Set(prefix []byte, digest []byte, quadruple []byte) error {
	key := keyspace.DigestKey(prefix, digest)
	_, err := a.multi.DeleteAll(key)
	if nil != err {
		return err
	}
	_, err = a.multi.Add(key, quadruple)
	return err
}

// Get - the first stored quadruple or nil when the event is unanchored
//
// multi signature authorizers store several; callers needing the full
// seal use GetAll
func (a *AnchorIndex) Get(prefix []byte, digest []byte) ([]byte, error) {
	quadruples, err := a.multi.GetAll(keyspace.DigestKey(prefix, digest))
	if nil != err {
		return nil, err
	}
	if 0 == len(quadruples) {
		return nil, nil
	}
	return quadruples[0], nil
}

// GetAll - every stored quadruple
func (a *AnchorIndex) GetAll(prefix []byte, digest []byte) ([][]byte, error) {
	return a.multi.GetAll(keyspace.DigestKey(prefix, digest))
}

// Has - check the event is anchored
func (a *AnchorIndex) Has(prefix []byte, digest []byte) (bool, error) {
	quadruple, err := a.Get(prefix, digest)
	if nil != err {
		return false, err
	}
	return nil != quadruple, nil
}

// Delete - remove every stored quadruple
func (a *AnchorIndex) Delete(prefix []byte, digest []byte) (bool, error) {
	return a.multi.DeleteAll(keyspace.DigestKey(prefix, digest))
}
