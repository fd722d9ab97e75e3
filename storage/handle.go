// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

// Element - a key/value pair returned by cursors
type Element struct {
	Key   []byte
	Value []byte
}

// PoolHandle - a single-value region of the store
//
// each logical key holds at most one value; keys from different
// handles never collide as each handle prepends its own region tag
type PoolHandle struct {
	store *Store
	name  []byte
	limit []byte
}

// prepend the region tag to convert a logical key to a physical one
func (p *PoolHandle) regionKey(key []byte) []byte {
	prefixed := make([]byte, 0, len(p.name)+len(key))
	prefixed = append(prefixed, p.name...)
	prefixed = append(prefixed, key...)
	return prefixed
}

// Put - store a value only if the key is currently absent
//
// returns true if the value was written; an existing value is left
// untouched and false is returned
func (p *PoolHandle) Put(key []byte, value []byte) (bool, error) {
	p.store.Lock()
	defer p.store.Unlock()

	prefixed := p.regionKey(key)
	present, err := p.store.hasKey(prefixed)
	if nil != err {
		return false, err
	}
	if present {
		return false, nil
	}
	err = p.store.applyPut(prefixed, value)
	if nil != err {
		return false, err
	}
	return true, nil
}

// Set - store a value overwriting any previous one
func (p *PoolHandle) Set(key []byte, value []byte) error {
	p.store.Lock()
	defer p.store.Unlock()

	return p.store.applyPut(p.regionKey(key), value)
}

// Get - retrieve a value
//
// returns nil if the key is absent
func (p *PoolHandle) Get(key []byte) ([]byte, error) {
	p.store.RLock()
	defer p.store.RUnlock()

	return p.store.readValue(p.regionKey(key))
}

// Has - check if a key is present
func (p *PoolHandle) Has(key []byte) (bool, error) {
	p.store.RLock()
	defer p.store.RUnlock()

	return p.store.hasKey(p.regionKey(key))
}

// Delete - remove a key
//
// returns true if a value was present
func (p *PoolHandle) Delete(key []byte) (bool, error) {
	p.store.Lock()
	defer p.store.Unlock()

	prefixed := p.regionKey(key)
	present, err := p.store.hasKey(prefixed)
	if nil != err {
		return false, err
	}
	if !present {
		return false, nil
	}
	err = p.store.applyDelete(prefixed)
	if nil != err {
		return false, err
	}
	return true, nil
}

// LastElement - the lexicographically greatest key/value in the region
func (p *PoolHandle) LastElement() (Element, bool, error) {
	p.store.RLock()
	defer p.store.RUnlock()

	it := p.store.openIterator(copyBytes(p.name), copyBytes(p.limit))
	defer it.Release()

	if !it.Last() {
		return Element{}, false, it.Error()
	}

	e := Element{
		Key:   copyBytes(it.Key()[len(p.name):]),
		Value: copyBytes(it.Value()),
	}
	return e, true, it.Error()
}
