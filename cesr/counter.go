// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cesr - counter primitives for composable event stream framing
//
// A counter is a short qualified Base64URL group header: a code
// beginning with '-' followed by a fixed number of Base64URL digits
// holding a count.  Replay uses counters to frame witness signature
// groups, seal source couples and the total attachment size in
// quadlets (4 byte units).
//
// Only the counter subset of the stream format lives here; primitive
// material (digests, signatures, prefixes) is opaque bytes to this
// module.
package cesr

import (
	"github.com/rubelhassan/kerireg/fault"
)

// QuadletSize - attachment sizes are counted in 4 byte units
const QuadletSize = 4

// counter codes
const (
	CodeControllerIdxSigs      = "-A"
	CodeWitnessIdxSigs         = "-B"
	CodeNonTransReceiptCouples = "-C"
	CodeTransReceiptQuadruples = "-D"
	CodeFirstSeenReplayCouples = "-E"
	CodeTransIdxSigGroups      = "-F"
	CodeSealSourceCouples      = "-G"
	CodeTransLastIdxSigGroups  = "-H"
	CodeAttachmentGroup        = "-V"
	CodeBigAttachmentGroup     = "-0V"
)

// code sizes: hard (code) chars, soft (count) chars, full length
type sizage struct {
	hard int
	soft int
	full int
}

var sizes = map[string]sizage{
	CodeControllerIdxSigs:      {hard: 2, soft: 2, full: 4},
	CodeWitnessIdxSigs:         {hard: 2, soft: 2, full: 4},
	CodeNonTransReceiptCouples: {hard: 2, soft: 2, full: 4},
	CodeTransReceiptQuadruples: {hard: 2, soft: 2, full: 4},
	CodeFirstSeenReplayCouples: {hard: 2, soft: 2, full: 4},
	CodeTransIdxSigGroups:      {hard: 2, soft: 2, full: 4},
	CodeSealSourceCouples:      {hard: 2, soft: 2, full: 4},
	CodeTransLastIdxSigGroups:  {hard: 2, soft: 2, full: 4},
	CodeAttachmentGroup:        {hard: 2, soft: 2, full: 4},
	CodeBigAttachmentGroup:     {hard: 3, soft: 5, full: 8},
}

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// reverse lookup, -1 marks bytes outside the alphabet
var b64Reverse = func() (r [256]int8) {
	for i := range r {
		r[i] = -1
	}
	for i := 0; i < len(b64Alphabet); i += 1 {
		r[b64Alphabet[i]] = int8(i)
	}
	return r
}()

// Counter - one framing header: a code and its count
type Counter struct {
	code  string
	count uint64
}

// MaxCount - largest count the code's soft digits can carry
func MaxCount(code string) (uint64, error) {
	sz, ok := sizes[code]
	if !ok {
		return 0, fault.InvalidCounterCode
	}
	return uint64(1)<<(6*sz.soft) - 1, nil
}

// NewCounter - create a counter after range checking the count
func NewCounter(code string, count uint64) (Counter, error) {
	limit, err := MaxCount(code)
	if nil != err {
		return Counter{}, err
	}
	if count > limit {
		return Counter{}, fault.CounterCountOverflow
	}
	return Counter{code: code, count: count}, nil
}

// Code - the counter's code
func (c Counter) Code() string { return c.code }

// Count - the counter's count
func (c Counter) Count() uint64 { return c.count }

// Qb64 - fully qualified Base64URL representation
func (c Counter) Qb64() string {
	sz := sizes[c.code]
	return c.code + intToB64(c.count, sz.soft)
}

// Qb64b - fully qualified representation as bytes
func (c Counter) Qb64b() []byte {
	return []byte(c.Qb64())
}

// ParseCounter - decode one counter from the head of a stream
//
// returns the counter and the number of bytes consumed
func ParseCounter(b []byte) (Counter, int, error) {
	if 0 == len(b) {
		return Counter{}, 0, fault.CounterTooShort
	}
	if '-' != b[0] {
		return Counter{}, 0, fault.InvalidCounterCode
	}

	hard := 2
	if len(b) >= 2 && '0' == b[1] {
		hard = 3
	}
	if len(b) < hard {
		return Counter{}, 0, fault.CounterTooShort
	}

	code := string(b[:hard])
	sz, ok := sizes[code]
	if !ok {
		return Counter{}, 0, fault.InvalidCounterCode
	}
	if len(b) < sz.full {
		return Counter{}, 0, fault.CounterTooShort
	}

	count, err := b64ToInt(b[sz.hard:sz.full])
	if nil != err {
		return Counter{}, 0, err
	}

	return Counter{code: code, count: count}, sz.full, nil
}

// render v as exactly l Base64URL digits, high digit first
func intToB64(v uint64, l int) string {
	digits := make([]byte, l)
	for i := l - 1; i >= 0; i -= 1 {
		digits[i] = b64Alphabet[v&0x3f]
		v >>= 6
	}
	return string(digits)
}

// decode Base64URL digits as an integer
func b64ToInt(digits []byte) (uint64, error) {
	v := uint64(0)
	for _, d := range digits {
		i := b64Reverse[d]
		if i < 0 {
			return 0, fault.InvalidBase64Character
		}
		v = v<<6 | uint64(i)
	}
	return v, nil
}
