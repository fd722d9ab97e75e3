// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/rubelhassan/kerireg/registry"
	"github.com/rubelhassan/kerireg/storage"
)

// open the configured database and bind the registry tables to it
//
// the returned release function closes the store
func openRegistry(m *metadata, readOnly bool) (*registry.Registry, func(), error) {
	store, err := storage.Open(storage.Config{
		Directory: m.config.Database.Directory,
		Engine:    m.config.Database.Engine,
		ReadOnly:  readOnly,
	})
	if nil != err {
		return nil, nil, err
	}

	reg, err := registry.New(store)
	if nil != err {
		store.Close()
		return nil, nil, err
	}

	return reg, func() { store.Close() }, nil
}
