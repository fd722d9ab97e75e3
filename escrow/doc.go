// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package escrow - hold events that cannot yet enter the canonical log
//
// An event joins the canonical log only when three release checks pass:
// its predecessor ordinal is already logged, stored witness signatures
// reach the configured quorum and an anchoring seal has been recorded.
// An event failing any check is parked in one pending queue per failed
// check; its body is stored immediately so promotion never needs the
// submitter again.
//
// Promotion is driven by sweeps.  A sweep walks the pending queues in
// ascending ordinal order, re-runs every release check and moves each
// satisfied entry to the canonical log, deleting its queue rows and
// appending the canonical row in a single store transaction.  Passes
// repeat until one promotes nothing, so a chain of events unblocked by
// a single arrival settles in one call.  A sweep runs automatically
// after every canonical append, on Notify when signatures or seals
// arrive out of band, and on an explicit Sweep after restart.
//
// All operations on one registry prefix are serialised by a per-prefix
// lock; distinct prefixes proceed concurrently.
package escrow
