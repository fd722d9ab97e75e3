// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"fmt"
	"strconv"

	"github.com/rubelhassan/kerireg/fault"
	"github.com/rubelhassan/kerireg/keyspace"
)

// ListHandle - an insertion-ordered multi-value region of the store
//
// each logical key holds a sequence of distinct values replayed in
// the order they were first added.  A hidden insertion ordinal is
// appended to the physical row key as zero-padded hex so engine order
// equals insertion order; the next ordinal is one past the ordinal of
// the current last row.  Ordinal assignment scans committed rows only,
// so appends to one key inside an open transaction must arrive as a
// single AddAll group.  The logical key must not contain the reserved
// bytes 0x00 or 0x01.
type ListHandle struct {
	store *Store
	name  []byte
	limit []byte
}

// bounds covering every value row of one logical key
func (l *ListHandle) rowBounds(key []byte) ([]byte, []byte) {
	start := make([]byte, 0, len(l.name)+len(key)+1)
	start = append(start, l.name...)
	start = append(start, key...)
	start = append(start, 0x00)

	limit := copyBytes(start)
	limit[len(limit)-1] = 0x01
	return start, limit
}

func (l *ListHandle) ionRow(key []byte, ion uint64) []byte {
	row := make([]byte, 0, len(l.name)+len(key)+1+keyspace.OrdinalWidth)
	row = append(row, l.name...)
	row = append(row, key...)
	row = append(row, 0x00)
	row = append(row, fmt.Sprintf("%032x", ion)...)
	return row
}

func parseIon(rowKey []byte, skip int) (uint64, error) {
	tail := rowKey[skip:]
	if keyspace.OrdinalWidth != len(tail) {
		return 0, fault.InvalidSequenceKey
	}
	ion, err := strconv.ParseUint(string(tail), 16, 64)
	if nil != err {
		return 0, fault.InvalidSequenceKey
	}
	return ion, nil
}

// Add - append one value under a key
//
// a value already stored under the key is skipped; returns true if
// the value was appended
func (l *ListHandle) Add(key []byte, value []byte) (bool, error) {
	added, err := l.AddAll(key, [][]byte{value})
	return added, err
}

// AddAll - append a group of values under a key as one atomic write
//
// duplicates, against the stored sequence or within the group itself,
// are skipped; returns true if at least one value was appended
func (l *ListHandle) AddAll(key []byte, values [][]byte) (bool, error) {
	if err := validateSetKey(key); nil != err {
		return false, err
	}

	l.store.Lock()
	defer l.store.Unlock()

	start, limit := l.rowBounds(key)
	skip := len(start)

	it := l.store.openIterator(start, limit)

	stored := make(map[string]struct{})
	nextIon := uint64(0)
	for it.Next() {
		stored[string(it.Value())] = struct{}{}
		ion, err := parseIon(it.Key(), skip)
		if nil != err {
			it.Release()
			return false, err
		}
		nextIon = ion + 1
	}
	err := it.Error()
	it.Release()
	if nil != err {
		return false, err
	}

	b := &writeBatch{}
	for _, value := range values {
		if _, dup := stored[string(value)]; dup {
			continue
		}
		stored[string(value)] = struct{}{}
		b.put(l.ionRow(key, nextIon), value)
		nextIon += 1
	}
	if 0 == len(b.ops) {
		return false, nil
	}
	err = l.store.applyOps(b)
	if nil != err {
		return false, err
	}
	return true, nil
}

// Has - check if a value is stored under a key
func (l *ListHandle) Has(key []byte, value []byte) (bool, error) {
	if err := validateSetKey(key); nil != err {
		return false, err
	}

	l.store.RLock()
	defer l.store.RUnlock()

	start, limit := l.rowBounds(key)

	it := l.store.openIterator(start, limit)
	defer it.Release()

	for it.Next() {
		if string(value) == string(it.Value()) {
			return true, nil
		}
	}
	return false, it.Error()
}

// GetAll - all values under a key in insertion order
//
// returns an empty slice when the key holds nothing
func (l *ListHandle) GetAll(key []byte) ([][]byte, error) {
	if err := validateSetKey(key); nil != err {
		return nil, err
	}

	l.store.RLock()
	defer l.store.RUnlock()

	start, limit := l.rowBounds(key)

	it := l.store.openIterator(start, limit)
	defer it.Release()

	values := [][]byte{}
	for it.Next() {
		values = append(values, copyBytes(it.Value()))
	}
	if err := it.Error(); nil != err {
		return nil, err
	}
	return values, nil
}

// Iter - cursor over the values of a key in insertion order
//
// the cursor reopens its iterator on every step so writes interleaved
// with iteration are observed
func (l *ListHandle) Iter(key []byte) (*ValueCursor, error) {
	if err := validateSetKey(key); nil != err {
		return nil, err
	}

	start, limit := l.rowBounds(key)
	return &ValueCursor{
		store:   l.store,
		start:   start,
		limit:   limit,
		skip:    len(start),
		fromKey: false,
	}, nil
}

// Count - number of values stored under a key
func (l *ListHandle) Count(key []byte) (uint64, error) {
	if err := validateSetKey(key); nil != err {
		return 0, err
	}

	l.store.RLock()
	defer l.store.RUnlock()

	start, limit := l.rowBounds(key)

	it := l.store.openIterator(start, limit)
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
func (l *ListHandle) Delete(key []byte, value []byte) (bool, error) {
	if err := validateSetKey(key); nil != err {
		return false, err
	}

	l.store.Lock()
	defer l.store.Unlock()

	start, limit := l.rowBounds(key)

	it := l.store.openIterator(start, limit)

	var row []byte
	for it.Next() {
		if string(value) == string(it.Value()) {
			row = copyBytes(it.Key())
			break
		}
	}
	err := it.Error()
	it.Release()
	if nil != err {
		return false, err
	}
	if nil == row {
		return false, nil
	}
	err = l.store.applyDelete(row)
	if nil != err {
		return false, err
	}
	return true, nil
}

// DeleteAll - remove every value under a key as one atomic write
//
// returns true if any value was removed
func (l *ListHandle) DeleteAll(key []byte) (bool, error) {
	if err := validateSetKey(key); nil != err {
		return false, err
	}

	l.store.Lock()
	defer l.store.Unlock()

	start, limit := l.rowBounds(key)

	it := l.store.openIterator(start, limit)
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
	err := l.store.applyOps(b)
	if nil != err {
		return false, err
	}
	return true, nil
}
