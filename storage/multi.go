// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"

	"github.com/rubelhassan/kerireg/fault"
)

// MultiHandle - a sorted multi-value region of the store
//
// each logical key holds a set of values kept in lexicographic order;
// a value is stored at most once per key.  Values are embedded in the
// physical row key after a zero separator so the logical key must not
// contain the reserved bytes 0x00 or 0x01.
type MultiHandle struct {
	store *Store
	name  []byte
	limit []byte
}

// reject logical keys that would break the row key framing
func validateSetKey(key []byte) error {
	if bytes.ContainsAny(key, "\x00\x01") {
		return fault.KeyContainsReservedByte
	}
	return nil
}

func (m *MultiHandle) rowKey(key []byte, value []byte) []byte {
	row := make([]byte, 0, len(m.name)+len(key)+1+len(value))
	row = append(row, m.name...)
	row = append(row, key...)
	row = append(row, 0x00)
	row = append(row, value...)
	return row
}

// bounds covering every value row of one logical key
func (m *MultiHandle) rowBounds(key []byte) ([]byte, []byte) {
	start := make([]byte, 0, len(m.name)+len(key)+1)
	start = append(start, m.name...)
	start = append(start, key...)
	start = append(start, 0x00)

	limit := copyBytes(start)
	limit[len(limit)-1] = 0x01
	return start, limit
}

// Add - insert one value under a key
//
// returns true if the value was new for this key
func (m *MultiHandle) Add(key []byte, value []byte) (bool, error) {
	if err := validateSetKey(key); nil != err {
		return false, err
	}

	m.store.Lock()
	defer m.store.Unlock()

	row := m.rowKey(key, value)
	present, err := m.store.hasKey(row)
	if nil != err {
		return false, err
	}
	if present {
		return false, nil
	}
	err = m.store.applyPut(row, []byte{})
	if nil != err {
		return false, err
	}
	return true, nil
}

// AddAll - insert a group of values under a key as one atomic write
//
// duplicates, against the stored set or within the group itself, are
// skipped; returns true if at least one value was new
func (m *MultiHandle) AddAll(key []byte, values [][]byte) (bool, error) {
	if err := validateSetKey(key); nil != err {
		return false, err
	}

	m.store.Lock()
	defer m.store.Unlock()

	b := &writeBatch{}
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		row := m.rowKey(key, value)
		if _, dup := seen[string(row)]; dup {
			continue
		}
		present, err := m.store.hasKey(row)
		if nil != err {
			return false, err
		}
		if present {
			continue
		}
		seen[string(row)] = struct{}{}
		b.put(row, []byte{})
	}
	if 0 == len(b.ops) {
		return false, nil
	}
	err := m.store.applyOps(b)
	if nil != err {
		return false, err
	}
	return true, nil
}

// Has - check if a value is stored under a key
func (m *MultiHandle) Has(key []byte, value []byte) (bool, error) {
	if err := validateSetKey(key); nil != err {
		return false, err
	}

	m.store.RLock()
	defer m.store.RUnlock()

	return m.store.hasKey(m.rowKey(key, value))
}

// GetAll - all values under a key in lexicographic order
//
// returns an empty slice when the key holds nothing
func (m *MultiHandle) GetAll(key []byte) ([][]byte, error) {
	if err := validateSetKey(key); nil != err {
		return nil, err
	}

	m.store.RLock()
	defer m.store.RUnlock()

	start, limit := m.rowBounds(key)
	skip := len(start)

	it := m.store.openIterator(start, limit)
	defer it.Release()

	values := [][]byte{}
	for it.Next() {
		values = append(values, copyBytes(it.Key()[skip:]))
	}
	if err := it.Error(); nil != err {
		return nil, err
	}
	return values, nil
}

// Iter - cursor over the values of a key in lexicographic order
//
// the cursor reopens its iterator on every step so writes interleaved
// with iteration are observed
func (m *MultiHandle) Iter(key []byte) (*ValueCursor, error) {
	if err := validateSetKey(key); nil != err {
		return nil, err
	}

	start, limit := m.rowBounds(key)
	return &ValueCursor{
		store:   m.store,
		start:   start,
		limit:   limit,
		skip:    len(start),
		fromKey: true,
	}, nil
}

// Count - number of values stored under a key
func (m *MultiHandle) Count(key []byte) (uint64, error) {
	if err := validateSetKey(key); nil != err {
		return 0, err
	}

	m.store.RLock()
	defer m.store.RUnlock()

	start, limit := m.rowBounds(key)

	it := m.store.openIterator(start, limit)
	defer it.Release()

	n := uint64(0)
	for it.Next() {
		n += 1
	}
	if err := it.Error(); nil != err {
		return 0, err
	}
	return n, nil
}

// Delete - remove one value from a key
//
// returns true if the value was present
func (m *MultiHandle) Delete(key []byte, value []byte) (bool, error) {
	if err := validateSetKey(key); nil != err {
		return false, err
	}

	m.store.Lock()
	defer m.store.Unlock()

	row := m.rowKey(key, value)
	present, err := m.store.hasKey(row)
	if nil != err {
		return false, err
	}
	if !present {
		return false, nil
	}
	err = m.store.applyDelete(row)
	if nil != err {
		return false, err
	}
	return true, nil
}

// DeleteAll - remove every value under a key as one atomic write
//
// returns true if any value was removed
func (m *MultiHandle) DeleteAll(key []byte) (bool, error) {
	if err := validateSetKey(key); nil != err {
		return false, err
	}

	m.store.Lock()
	defer m.store.Unlock()

	start, limit := m.rowBounds(key)

	it := m.store.openIterator(start, limit)
	defer it.Release()

	b := &writeBatch{}
	for it.Next() {
		b.delete(it.Key())
	}
	if err := it.Error(); nil != err {
		return false, err
	}
	if 0 == len(b.ops) {
		return false, nil
	}
	err := m.store.applyOps(b)
	if nil != err {
		return false, err
	}
	return true, nil
}

// ValueCursor - stepwise access to the values of one logical key
//
// a fresh engine iterator is opened for each step so the cursor stays
// valid across writes; pending transaction writes are not visible
type ValueCursor struct {
	store   *Store
	start   []byte
	limit   []byte
	skip    int
	fromKey bool
	value   []byte
	err     error
	done    bool
}

// Next - advance to the next value
//
// returns false when exhausted or on error
func (c *ValueCursor) Next() bool {
	if c.done {
		return false
	}

	c.store.RLock()
	defer c.store.RUnlock()

	it := c.store.openIterator(copyBytes(c.start), copyBytes(c.limit))
	defer it.Release()

	if !it.Next() {
		c.err = it.Error()
		c.done = true
		return false
	}

	rowKey := it.Key()
	if c.fromKey {
		c.value = copyBytes(rowKey[c.skip:])
	} else {
		c.value = copyBytes(it.Value())
	}

	// resume after this row: its immediate successor key
	c.start = append(copyBytes(rowKey), 0x00)
	return true
}

// Value - the value at the current position
func (c *ValueCursor) Value() []byte {
	return c.value
}

// Error - the first failure encountered while stepping
func (c *ValueCursor) Error() error {
	return c.err
}
