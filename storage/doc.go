// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// maintain the on-disk registry data store
//
//
// maintain separate regions of key->value records inside one ordered
// key-value engine
//
// A Store wraps a single physical database opened through one of two
// engines (goleveldb or pebble) selected at open time.  Handles carve
// the flat key space into named regions; a region tag is a short byte
// string whose final byte lies outside the qualified Base64URL
// alphabet, so a tag followed by identifier material can never alias
// a different tag followed by different material.
//
//
// Notes:
// 1. region tag = short name ending in '.' (e.g. "evnt.")
// 2. ++         = concatenation of byte data
// 3. 0x00, 0x01 are reserved separator bytes and must not appear in
//    multi-value record keys
// 4. ion        = insertion ordinal as 32 lower-case hex digits
//
// Three record disciplines are available:
//
// PoolHandle - one value per key:
//
//   tag ++ key                 - single record
//                                data: value bytes
//
// MultiHandle - many values per key, retrieval sorted by value,
// exact duplicates are idempotent:
//
//   tag ++ key ++ 0x00 ++ value - one record per distinct value
//                                 data: empty
//
// ListHandle - many values per key, retrieval in insertion order,
// logical duplicates rejected:
//
//   tag ++ key ++ 0x00 ++ ion  - one record per value
//                                data: value bytes
//
// Reads of absent keys yield empty results, never errors.  Writes
// made while a transaction is open collect in a batch overlaid by a
// read-through cache and land atomically on commit.  A View is a
// read-only Store bound to an engine snapshot for consistent
// iteration.
package storage
