// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"io"

	"github.com/cockroachdb/pebble"
)

// the alternative engine
type pebbleStore struct {
	db *pebble.DB
}

func openPebble(directory string, readOnly bool) (backend, error) {
	db, err := pebble.Open(directory, &pebble.Options{
		ReadOnly: readOnly,
	})
	if nil != err {
		return nil, err
	}
	return &pebbleStore{db: db}, nil
}

func (p *pebbleStore) get(key []byte) ([]byte, bool, error) {
	return pebbleGet(p.db, key)
}

func (p *pebbleStore) has(key []byte) (bool, error) {
	return pebbleHas(p.db, key)
}

func (p *pebbleStore) iterate(start []byte, limit []byte) iterator {
	return pebbleIterate(p.db, start, limit)
}

func (p *pebbleStore) write(b *writeBatch) error {
	batch := p.db.NewBatch()
	defer batch.Close()

	for _, op := range b.ops {
		var err error
		if op.del {
			err = batch.Delete(op.key, nil)
		} else {
			err = batch.Set(op.key, op.value, nil)
		}
		if nil != err {
			return err
		}
	}
	return p.db.Apply(batch, pebble.Sync)
}

func (p *pebbleStore) view() (view, error) {
	return &pebbleView{snap: p.db.NewSnapshot()}, nil
}

func (p *pebbleStore) close() error {
	return p.db.Close()
}

type pebbleView struct {
	snap *pebble.Snapshot
}

func (v *pebbleView) get(key []byte) ([]byte, bool, error) {
	return pebbleGet(v.snap, key)
}

func (v *pebbleView) iterate(start []byte, limit []byte) iterator {
	return pebbleIterate(v.snap, start, limit)
}

func (v *pebbleView) release() {
	v.snap.Close()
}

// common reader surface of *pebble.DB and *pebble.Snapshot
type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

func pebbleGet(r pebbleReader, key []byte) ([]byte, bool, error) {
	value, closer, err := r.Get(key)
	if pebble.ErrNotFound == err {
		return nil, false, nil
	}
	if nil != err {
		return nil, false, err
	}

	out := copyBytes(value)
	err = closer.Close()
	if nil != err {
		return nil, false, err
	}
	return out, true, nil
}

func pebbleHas(r pebbleReader, key []byte) (bool, error) {
	_, closer, err := r.Get(key)
	if pebble.ErrNotFound == err {
		return false, nil
	}
	if nil != err {
		return false, err
	}
	return true, closer.Close()
}

func pebbleIterate(r pebbleReader, start []byte, limit []byte) iterator {
	it, err := r.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: limit,
	})
	if nil != err {
		return &failedIterator{err: err}
	}
	return &pebbleIterator{it: it}
}

// adapt pebble's positioned iterator to the forward iterator contract
type pebbleIterator struct {
	it       *pebble.Iterator
	started  bool
	closeErr error
}

func (i *pebbleIterator) Next() bool {
	if nil == i.it {
		return false
	}
	if !i.started {
		i.started = true
		return i.it.First()
	}
	return i.it.Next()
}

func (i *pebbleIterator) Last() bool {
	if nil == i.it {
		return false
	}
	i.started = true
	return i.it.Last()
}

func (i *pebbleIterator) Key() []byte {
	return i.it.Key()
}

func (i *pebbleIterator) Value() []byte {
	return i.it.Value()
}

func (i *pebbleIterator) Release() {
	if nil != i.it {
		i.closeErr = i.it.Close()
		i.it = nil
	}
}

func (i *pebbleIterator) Error() error {
	if nil != i.it {
		return i.it.Error()
	}
	return i.closeErr
}
