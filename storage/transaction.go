// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	gocache "github.com/patrickmn/go-cache"

	"github.com/rubelhassan/kerireg/fault"
)

type dbOperation int

const (
	dbPut dbOperation = iota
	dbDelete
)

// Cache - overlay of pending transaction writes keyed by physical key
//
// a hit reports the buffered operation so a pending delete reads as
// absent rather than falling through to the stored value
type Cache interface {
	Get(key string) ([]byte, dbOperation, bool)
	Set(op dbOperation, key string, value []byte)
	Clear()
}

type cachedRecord struct {
	op   dbOperation
	data []byte
}

type dbCache struct {
	records *gocache.Cache
}

func newCache() Cache {
	return &dbCache{
		records: gocache.New(gocache.NoExpiration, 0),
	}
}

func (c *dbCache) Get(key string) ([]byte, dbOperation, bool) {
	record, found := c.records.Get(key)
	if !found {
		return nil, dbPut, false
	}
	r := record.(cachedRecord)
	return r.data, r.op, true
}

func (c *dbCache) Set(op dbOperation, key string, value []byte) {
	c.records.Set(key, cachedRecord{op: op, data: copyBytes(value)}, gocache.NoExpiration)
}

func (c *dbCache) Clear() {
	c.records.Flush()
}

// Begin - open a transaction buffering all writes until Commit
//
// reads through any handle of this store observe the buffered writes;
// only one transaction may be open at a time
func (s *Store) Begin() error {
	s.Lock()
	defer s.Unlock()

	if nil == s.be {
		return fault.NotInitialised
	}
	if s.readOnly || nil != s.vw {
		return fault.ReadOnlyStore
	}
	if nil != s.batch {
		return fault.TransactionAlreadyInUse
	}

	s.batch = &writeBatch{}
	return nil
}

// Commit - atomically apply every write buffered since Begin
//
// the transaction is closed whether or not the engine write succeeds;
// on failure nothing was applied
func (s *Store) Commit() error {
	s.Lock()
	defer s.Unlock()

	if nil == s.be {
		return fault.NotInitialised
	}
	if nil == s.batch {
		return fault.TransactionNotActive
	}

	b := s.batch
	s.batch = nil
	s.overlay.Clear()

	if 0 == len(b.ops) {
		return nil
	}
	return s.be.write(b)
}

// Abort - discard every write buffered since Begin
//
// aborting with no open transaction is harmless
func (s *Store) Abort() {
	s.Lock()
	defer s.Unlock()

	s.batch = nil
	if nil != s.overlay {
		s.overlay.Clear()
	}
}

// InUse - whether a transaction is currently open
func (s *Store) InUse() bool {
	s.RLock()
	defer s.RUnlock()

	return nil != s.batch
}
