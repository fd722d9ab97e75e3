// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/rubelhassan/kerireg/fault"
	"github.com/rubelhassan/kerireg/keyspace"
)

// storage engines
const (
	EngineLevelDB = "leveldb"
	EnginePebble  = "pebble"
)

// for database version
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

const currentDBVersion = 0x100

// Config - parameters for opening a store
//
// an empty Engine selects leveldb
type Config struct {
	Directory string
	Engine    string
	ReadOnly  bool
}

// Store - one open physical database
//
// a Store is an explicit handle owned by the caller; no process-wide
// state is kept.  The logger must be initialised before Open.
type Store struct {
	sync.RWMutex
	directory string
	engine    string
	readOnly  bool
	be        backend
	vw        view
	batch     *writeBatch
	overlay   Cache
	log       *logger.L
}

// Open - open or create the database
func Open(cfg Config) (*Store, error) {
	engine := cfg.Engine
	if "" == engine {
		engine = EngineLevelDB
	}

	var be backend
	var err error
	switch engine {
	case EngineLevelDB:
		be, err = openLevelDB(cfg.Directory, cfg.ReadOnly)
	case EnginePebble:
		be, err = openPebble(cfg.Directory, cfg.ReadOnly)
	default:
		return nil, fault.InvalidStorageEngine
	}
	if nil != err {
		return nil, err
	}

	version, err := getVersion(be)
	if nil != err {
		be.close()
		return nil, err
	}

	// ensure no database downgrade
	if version > currentDBVersion {
		be.close()
		return nil, fmt.Errorf("database version: %d > current version: %d", version, currentDBVersion)
	}

	if 0 == version && !cfg.ReadOnly {
		// database was empty so tag as current version
		err = putVersion(be, currentDBVersion)
		if nil != err {
			be.close()
			return nil, err
		}
	}

	log := logger.New("storage")
	log.Infof("open: %q  engine: %s  read only: %t", cfg.Directory, engine, cfg.ReadOnly)

	return &Store{
		directory: cfg.Directory,
		engine:    engine,
		readOnly:  cfg.ReadOnly,
		be:        be,
		overlay:   newCache(),
		log:       log,
	}, nil
}

// Close - release the database
//
// an open transaction is discarded; closing a View only releases its
// snapshot and leaves the parent store usable
func (s *Store) Close() error {
	s.Lock()
	defer s.Unlock()

	if nil == s.be {
		return fault.NotInitialised
	}

	if nil != s.vw {
		s.vw.release()
		s.vw = nil
		s.be = nil
		return nil
	}

	if nil != s.batch {
		s.log.Warn("close discards an open transaction")
		s.batch = nil
		s.overlay.Clear()
	}

	s.log.Infof("close: %q", s.directory)
	err := s.be.close()
	s.be = nil
	return err
}

// View - a read-only store bound to a consistent snapshot
//
// handles derived from the view observe the database as it was at
// this call; Close releases the snapshot
func (s *Store) View() (*Store, error) {
	s.RLock()
	defer s.RUnlock()

	if nil == s.be {
		return nil, fault.NotInitialised
	}
	if nil != s.vw {
		return nil, fault.ReadOnlyStore
	}

	v, err := s.be.view()
	if nil != err {
		return nil, err
	}

	return &Store{
		directory: s.directory,
		engine:    s.engine,
		readOnly:  true,
		be:        s.be,
		vw:        v,
		log:       s.log,
	}, nil
}

// Pool - a single-value handle on a named region
func (s *Store) Pool(name string) (*PoolHandle, error) {
	region, limit, err := regionBounds(name)
	if nil != err {
		return nil, err
	}
	return &PoolHandle{store: s, name: region, limit: limit}, nil
}

// Multi - a sorted multi-value handle on a named region
func (s *Store) Multi(name string) (*MultiHandle, error) {
	region, limit, err := regionBounds(name)
	if nil != err {
		return nil, err
	}
	return &MultiHandle{store: s, name: region, limit: limit}, nil
}

// List - an insertion-ordered multi-value handle on a named region
func (s *Store) List(name string) (*ListHandle, error) {
	region, limit, err := regionBounds(name)
	if nil != err {
		return nil, err
	}
	return &ListHandle{store: s, name: region, limit: limit}, nil
}

// validate a region tag and derive its exclusive upper bound
func regionBounds(name string) ([]byte, []byte, error) {
	if 0 == len(name) {
		return nil, nil, fault.InvalidTableTag
	}

	last := name[len(name)-1]
	if keyspace.IsQualifiedByte(last) || 0xff == last {
		return nil, nil, fault.InvalidTableTag
	}
	if bytes.ContainsAny([]byte(name), "\x00\x01") {
		return nil, nil, fault.InvalidTableTag
	}

	region := []byte(name)
	limit := copyBytes(region)
	limit[len(limit)-1] += 1
	return region, limit, nil
}

// read a value merging any pending transaction writes, caller holds lock
func (s *Store) readValue(key []byte) ([]byte, error) {
	if nil == s.be {
		return nil, fault.NotInitialised
	}

	if nil != s.batch {
		if data, op, ok := s.overlay.Get(string(key)); ok {
			if dbDelete == op {
				return nil, nil
			}
			return copyBytes(data), nil
		}
	}

	var value []byte
	var found bool
	var err error
	if nil != s.vw {
		value, found, err = s.vw.get(key)
	} else {
		value, found, err = s.be.get(key)
	}
	if nil != err {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return value, nil
}

// existence check merging any pending transaction writes, caller holds lock
func (s *Store) hasKey(key []byte) (bool, error) {
	if nil == s.be {
		return false, fault.NotInitialised
	}

	if nil != s.batch {
		if _, op, ok := s.overlay.Get(string(key)); ok {
			return dbPut == op, nil
		}
	}

	if nil != s.vw {
		_, found, err := s.vw.get(key)
		return found, err
	}
	return s.be.has(key)
}

// iteration reads committed state only: pending transaction writes
// are not visible to iterators
func (s *Store) openIterator(start []byte, limit []byte) iterator {
	if nil == s.be {
		return &failedIterator{err: fault.NotInitialised}
	}
	if nil != s.vw {
		return s.vw.iterate(start, limit)
	}
	return s.be.iterate(start, limit)
}

// apply a group of writes: into the pending transaction if one is
// open, otherwise atomically to the engine, caller holds lock
func (s *Store) applyOps(b *writeBatch) error {
	if nil == s.be {
		return fault.NotInitialised
	}
	if s.readOnly || nil != s.vw {
		return fault.ReadOnlyStore
	}

	if nil != s.batch {
		for _, op := range b.ops {
			if op.del {
				s.overlay.Set(dbDelete, string(op.key), []byte{})
			} else {
				s.overlay.Set(dbPut, string(op.key), op.value)
			}
		}
		s.batch.ops = append(s.batch.ops, b.ops...)
		return nil
	}
	return s.be.write(b)
}

func (s *Store) applyPut(key []byte, value []byte) error {
	b := &writeBatch{}
	b.put(key, value)
	return s.applyOps(b)
}

func (s *Store) applyDelete(key []byte) error {
	b := &writeBatch{}
	b.delete(key)
	return s.applyOps(b)
}

func getVersion(be backend) (int, error) {
	value, found, err := be.get(versionKey)
	if nil != err {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	if 4 != len(value) {
		return 0, fmt.Errorf("incompatible database version length: expected: %d  actual: %d", 4, len(value))
	}
	return int(binary.BigEndian.Uint32(value)), nil
}

func putVersion(be backend, version int) error {
	currentVersion := make([]byte, 4)
	binary.BigEndian.PutUint32(currentVersion, uint32(version))

	b := &writeBatch{}
	b.put(versionKey, currentVersion)
	return be.write(b)
}
