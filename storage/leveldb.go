// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"
)

// the default engine
type levelDBStore struct {
	db *leveldb.DB
}

func openLevelDB(directory string, readOnly bool) (backend, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: readOnly,
		ReadOnly:       readOnly,
	}

	db, err := leveldb.OpenFile(directory, opt)
	if nil != err {
		return nil, err
	}
	return &levelDBStore{db: db}, nil
}

func (l *levelDBStore) get(key []byte) ([]byte, bool, error) {
	value, err := l.db.Get(key, nil)
	if leveldb.ErrNotFound == err {
		return nil, false, nil
	}
	if nil != err {
		return nil, false, err
	}
	return value, true, nil
}

func (l *levelDBStore) has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

func (l *levelDBStore) iterate(start []byte, limit []byte) iterator {
	return l.db.NewIterator(&ldb_util.Range{Start: start, Limit: limit}, nil)
}

func (l *levelDBStore) write(b *writeBatch) error {
	batch := new(leveldb.Batch)
	for _, op := range b.ops {
		if op.del {
			batch.Delete(op.key)
		} else {
			batch.Put(op.key, op.value)
		}
	}
	return l.db.Write(batch, nil)
}

func (l *levelDBStore) view() (view, error) {
	snap, err := l.db.GetSnapshot()
	if nil != err {
		return nil, err
	}
	return &levelDBView{snap: snap}, nil
}

func (l *levelDBStore) close() error {
	return l.db.Close()
}

type levelDBView struct {
	snap *leveldb.Snapshot
}

func (v *levelDBView) get(key []byte) ([]byte, bool, error) {
	value, err := v.snap.Get(key, nil)
	if leveldb.ErrNotFound == err {
		return nil, false, nil
	}
	if nil != err {
		return nil, false, err
	}
	return value, true, nil
}

func (v *levelDBView) iterate(start []byte, limit []byte) iterator {
	return v.snap.NewIterator(&ldb_util.Range{Start: start, Limit: limit}, nil)
}

func (v *levelDBView) release() {
	v.snap.Release()
}
