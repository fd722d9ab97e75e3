// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package registry - the durable table set of a transaction event log
//
// one physical store carries eight regions:
//
//   evnt.  event bodies      digest key  single value
//   elog.  canonical log     sequence key  single value
//   wsig.  witness sigs      digest key  lexicographic set
//   oord.  out of order      sequence key  single value
//   bkrs.  backer roster     digest key  insertion ordered list
//   ancs.  anchor seals      digest key  lexicographic set
//   pwit.  partly witnessed  sequence key  single value
//   anls.  anchorless        sequence key  single value
//
// a digest key is prefix '.' digest and addresses one event instance;
// a sequence key is prefix '.' zero padded hex ordinal so that store
// order equals numeric order.  Region names end with a byte outside
// the qualified Base64 alphabet so no region/key pairing can collide
// with another.
//
// event bodies are opaque already-validated bytes, content addressed
// and write once.  The canonical log lists accepted events in first
// seen order; the three escrow regions hold events still blocked on
// ordering, witnessing or anchoring.  Replay reassembles body plus
// counted attachment groups into wire messages from a point in time
// snapshot of the store.
package registry
