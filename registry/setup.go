// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package registry

import (
	"fmt"
	"reflect"

	"github.com/bitmark-inc/logger"

	"github.com/rubelhassan/kerireg/storage"
)

// the table set of one registry
//
// note all must be exported (i.e. initial capital) or initialisation will panic
type tables struct {
	Events        *EventStore  `region:"evnt."`
	Log           *SeqIndex    `region:"elog."`
	WitnessSigs   *SigIndex    `region:"wsig."`
	OutOfOrder    *SeqIndex    `region:"oord."`
	Backers       *BackerIndex `region:"bkrs."`
	Anchors       *AnchorIndex `region:"ancs."`
	PartWitnessed *SeqIndex    `region:"pwit."`
	Anchorless    *SeqIndex    `region:"anls."`
}

// Registry - a complete event log over one open store
//
// the store may be a live database or a point in time view; every
// table is a named region inside it
type Registry struct {
	tables
	store *storage.Store
	log   *logger.L
}

// New - bind the table set to an open store
func New(store *storage.Store) (*Registry, error) {
	r := &Registry{
		store: store,
		log:   logger.New("registry"),
	}

	tablesType := reflect.TypeOf(r.tables)

	// get write access by using pointer + Elem()
	tablesValue := reflect.ValueOf(&r.tables).Elem()

	// scan each field
	for i := 0; i < tablesType.NumField(); i += 1 {

		fieldInfo := tablesType.Field(i)

		region := fieldInfo.Tag.Get("region")
		if "" == region {
			return nil, fmt.Errorf("table: %s has no region tag", fieldInfo.Name)
		}

		field := tablesValue.Field(i)
		switch field.Interface().(type) {
		case *EventStore:
			pool, err := store.Pool(region)
			if nil != err {
				return nil, err
			}
			field.Set(reflect.ValueOf(&EventStore{pool: pool}))

		case *SeqIndex:
			pool, err := store.Pool(region)
			if nil != err {
				return nil, err
			}
			field.Set(reflect.ValueOf(&SeqIndex{pool: pool}))

		case *SigIndex:
			multi, err := store.Multi(region)
			if nil != err {
				return nil, err
			}
			field.Set(reflect.ValueOf(&SigIndex{multi: multi}))

		case *BackerIndex:
			list, err := store.List(region)
			if nil != err {
				return nil, err
			}
			field.Set(reflect.ValueOf(&BackerIndex{list: list}))

		case *AnchorIndex:
			multi, err := store.Multi(region)
			if nil != err {
				return nil, err
			}
			field.Set(reflect.ValueOf(&AnchorIndex{multi: multi}))

		default:
			return nil, fmt.Errorf("table: %s has unsupported type: %s", fieldInfo.Name, fieldInfo.Type)
		}
	}

	return r, nil
}

// Store - the underlying store, for transaction control
func (r *Registry) Store() *storage.Store {
	return r.store
}

// Region - one named key region and the table bound to it
type Region struct {
	Tag   string
	Table string
}

// Regions - the table map in declaration order, for inspection tools
func Regions() []Region {
	tablesType := reflect.TypeOf(tables{})

	regions := make([]Region, 0, tablesType.NumField())
	for i := 0; i < tablesType.NumField(); i += 1 {
		fieldInfo := tablesType.Field(i)
		regions = append(regions, Region{
			Tag:   fieldInfo.Tag.Get("region"),
			Table: fieldInfo.Name,
		})
	}
	return regions
}
