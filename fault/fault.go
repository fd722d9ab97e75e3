// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// error instances
//
// Provides a single instance of errors to allow easy comparison
package fault

// error base
type GenericError string

// to allow for different classes of errors
type ConsistencyError GenericError
type FramingError GenericError
type InvalidError GenericError
type ProcessError GenericError

// common errors - keep in alphabetic order
var (
	CounterCountOverflow    = InvalidError("counter count exceeds code capacity")
	CounterTooShort         = InvalidError("counter material too short")
	InvalidAttachmentSize   = FramingError("attachments are not an integral number of quadlets")
	InvalidBase64Character  = InvalidError("invalid base64 character")
	InvalidCount            = InvalidError("count out of range")
	InvalidCounterCode      = InvalidError("invalid counter code")
	InvalidCursor           = InvalidError("invalid cursor")
	InvalidEvent            = InvalidError("invalid event")
	InvalidSequenceKey      = InvalidError("invalid sequence key")
	InvalidStorageEngine    = InvalidError("invalid storage engine")
	InvalidTableTag         = InvalidError("invalid table tag")
	KeyContainsReservedByte = InvalidError("key contains reserved byte")
	MissingEventRecord      = ConsistencyError("indexed digest has no event record")
	NotInitialised          = ProcessError("not initialised")
	ReadOnlyStore           = ProcessError("store is read only")
	TransactionAlreadyInUse = ProcessError("transaction already in use")
	TransactionNotActive    = ProcessError("transaction not active")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ConsistencyError) Error() string { return string(e) }
func (e FramingError) Error() string     { return string(e) }
func (e InvalidError) Error() string     { return string(e) }
func (e ProcessError) Error() string     { return string(e) }

// determine the class of an error
func IsErrConsistency(e error) bool { _, ok := e.(ConsistencyError); return ok }
func IsErrFraming(e error) bool     { _, ok := e.(FramingError); return ok }
func IsErrInvalid(e error) bool     { _, ok := e.(InvalidError); return ok }
func IsErrProcess(e error) bool     { _, ok := e.(ProcessError); return ok }
