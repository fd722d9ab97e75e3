// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keyspace - canonical database key construction
//
// Every record in the registry store is addressed either by content
// (identifier prefix + event digest) or by position (identifier
// prefix + sequence number).  Both key forms join their components
// with '.' which is outside the qualified Base64URL alphabet used
// for prefixes and digests, so a key can never be confused with
// identifier material and one prefix can never alias another.
//
// Sequence numbers are rendered as fixed width lower-case hex so
// that lexicographic byte order of the keys equals numeric order of
// the sequence numbers.
//
// Callers needing composite keys outside these two schemes join
// arbitrary components with ':' via Namespace.
//
// The codec does not validate prefix well-formedness; that is the
// caller's duty.
package keyspace

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/rubelhassan/kerireg/fault"
)

const (
	keySeparator       = '.'
	namespaceSeparator = ':'

	// OrdinalWidth - hex digits used to render a sequence number
	OrdinalWidth = 32
)

// IsQualifiedByte - true for bytes of the qualified Base64URL alphabet
//
// Prefixes and digests are composed entirely of these bytes, so a
// byte outside the set is safe to use as a separator or region
// terminator.
func IsQualifiedByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z':
		return true
	case b >= 'a' && b <= 'z':
		return true
	case b >= '0' && b <= '9':
		return true
	case '-' == b || '_' == b:
		return true
	}
	return false
}

// DigestKey - content address: prefix ++ '.' ++ digest
func DigestKey(prefix []byte, digest []byte) []byte {
	key := make([]byte, 0, len(prefix)+1+len(digest))
	key = append(key, prefix...)
	key = append(key, keySeparator)
	return append(key, digest...)
}

// SequenceKey - positional address: prefix ++ '.' ++ fixed width hex ordinal
func SequenceKey(prefix []byte, sn uint64) []byte {
	key := make([]byte, 0, len(prefix)+1+OrdinalWidth)
	key = append(key, prefix...)
	key = append(key, keySeparator)
	return append(key, fmt.Sprintf("%032x", sn)...)
}

// ParseSequenceKey - split a sequence key into its prefix and ordinal
//
// the ordinal is everything after the last separator and must be
// exactly OrdinalWidth hex digits
func ParseSequenceKey(key []byte) ([]byte, uint64, error) {
	i := bytes.LastIndexByte(key, keySeparator)
	if i < 1 || len(key)-i-1 != OrdinalWidth {
		return nil, 0, fault.InvalidSequenceKey
	}
	sn, err := strconv.ParseUint(string(key[i+1:]), 16, 64)
	if nil != err {
		return nil, 0, fault.InvalidSequenceKey
	}
	return key[:i], sn, nil
}

// Namespace - join raw byte components with ':'
func Namespace(components ...[]byte) []byte {
	return bytes.Join(components, []byte{namespaceSeparator})
}

// NamespaceText - join textual components with ':'
func NamespaceText(components ...string) []byte {
	parts := make([][]byte, len(components))
	for i, c := range components {
		parts[i] = []byte(c)
	}
	return Namespace(parts...)
}
