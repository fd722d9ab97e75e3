// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fault - error instances
//
// Provides a single instance of each error to allow easy comparison
// without having to resort to partial string matches
//
// Errors are classified: caller mistakes, process/lifecycle misuse,
// storage consistency violations and replay framing faults each have
// their own class so that callers can test the class without
// enumerating individual values.  Errors surfaced by the backing
// key-value engine are never wrapped into these classes and propagate
// unchanged.
package fault
