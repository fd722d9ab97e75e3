// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

// backend - the engine operations the store is built on
//
// errors returned by an engine propagate to callers unchanged
type backend interface {
	get(key []byte) ([]byte, bool, error)
	has(key []byte) (bool, error)
	iterate(start []byte, limit []byte) iterator
	write(b *writeBatch) error
	view() (view, error)
	close() error
}

// view - a read-only consistent snapshot of a backend
type view interface {
	get(key []byte) ([]byte, bool, error)
	iterate(start []byte, limit []byte) iterator
	release()
}

// iterator - ascending iteration over [start, limit)
//
// Key and Value contents are only valid until the next positioning
// call; callers must copy what they keep
type iterator interface {
	Next() bool
	Last() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// a batch of writes applied atomically by backend.write
type batchOp struct {
	del   bool
	key   []byte
	value []byte
}

type writeBatch struct {
	ops []batchOp
}

func (b *writeBatch) put(key []byte, value []byte) {
	b.ops = append(b.ops, batchOp{
		key:   copyBytes(key),
		value: copyBytes(value),
	})
}

func (b *writeBatch) delete(key []byte) {
	b.ops = append(b.ops, batchOp{
		del: true,
		key: copyBytes(key),
	})
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// iterator standing in for one that could not be opened
type failedIterator struct {
	err error
}

func (i *failedIterator) Next() bool    { return false }
func (i *failedIterator) Last() bool    { return false }
func (i *failedIterator) Key() []byte   { return nil }
func (i *failedIterator) Value() []byte { return nil }
func (i *failedIterator) Release()      {}
func (i *failedIterator) Error() error  { return i.err }
