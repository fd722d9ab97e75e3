// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/rubelhassan/kerireg/fault"
)

// FetchCursor - a resumable range scan over a single-value region
//
// the cursor records only a resume position, never an open engine
// iterator, so it stays valid indefinitely across writes
type FetchCursor struct {
	pool  *PoolHandle
	start []byte
	limit []byte
}

// NewFetchCursor - cursor positioned at the start of the region
func (p *PoolHandle) NewFetchCursor() *FetchCursor {
	return &FetchCursor{
		pool:  p,
		start: copyBytes(p.name),
		limit: copyBytes(p.limit),
	}
}

// Seek - reposition the cursor at a logical key
func (c *FetchCursor) Seek(key []byte) *FetchCursor {
	c.start = c.pool.regionKey(key)
	return c
}

// Fetch - retrieve up to count elements from the current position
//
// a fresh engine iterator is opened per call; element keys are
// returned without the region tag
func (c *FetchCursor) Fetch(count int) ([]Element, error) {
	if nil == c {
		return nil, fault.InvalidCursor
	}
	if count <= 0 {
		return nil, fault.InvalidCount
	}

	c.pool.store.RLock()
	defer c.pool.store.RUnlock()

	it := c.pool.store.openIterator(copyBytes(c.start), copyBytes(c.limit))
	defer it.Release()

	skip := len(c.pool.name)
	results := make([]Element, 0, count)
	for len(results) < count && it.Next() {
		rowKey := it.Key()
		results = append(results, Element{
			Key:   copyBytes(rowKey[skip:]),
			Value: copyBytes(it.Value()),
		})
		// resume after this row: its immediate successor key
		c.start = append(copyBytes(rowKey), 0x00)
	}
	if err := it.Error(); nil != err {
		return nil, err
	}
	return results, nil
}

// Map - apply a function to every remaining element in order
//
// stops at the first error from f
func (c *FetchCursor) Map(f func(key []byte, value []byte) error) error {
	if nil == c {
		return fault.InvalidCursor
	}

loop:
	for {
		elements, err := c.Fetch(100)
		if nil != err {
			return err
		}
		if 0 == len(elements) {
			break loop
		}
		for _, e := range elements {
			err = f(e.Key, e.Value)
			if nil != err {
				return err
			}
		}
	}
	return nil
}
