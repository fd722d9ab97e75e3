// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fixtures - shared test helpers
//
// bootstraps the logger that stores require and derives deterministic
// qualified Base64 material, prefixes, digests, indexed signatures and
// seal quadruples, so tests need no real key generation
package fixtures

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/bitmark-inc/logger"
	"golang.org/x/crypto/blake2b"
)

const (
	dir         = "testing"
	LogCategory = "testing"
)

func SetupTestLogger() {
	removeFiles()
	_ = os.Mkdir(dir, 0700)

	logging := logger.Configuration{
		Directory: dir,
		File:      fmt.Sprintf("%s.log", LogCategory),
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	_ = logger.Initialise(logging)
}

func TeardownTestLogger() {
	logger.Finalise()
	removeFiles()
}

func removeFiles() {
	err := os.RemoveAll(dir)
	if nil != err {
		fmt.Println("remove dir with error: ", err)
	}
}

// derivation codes for generated material
const (
	digestCode = "E"
	prefixCode = "B"
)

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// attach a one character code to 32 raw bytes giving the 44 character
// qualified form: one zero lead byte aligns the raw to the Base64
// boundary and its pad character is replaced by the code
func qualify(code string, raw []byte) string {
	padded := make([]byte, 0, 1+len(raw))
	padded = append(padded, 0x00)
	padded = append(padded, raw...)
	return code + base64.RawURLEncoding.EncodeToString(padded)[1:]
}

// Digest - deterministic qualified event digest from a seed
func Digest(seed string) string {
	raw := blake2b.Sum256([]byte(seed))
	return qualify(digestCode, raw[:])
}

// Prefix - deterministic qualified identifier prefix from a seed
func Prefix(seed string) string {
	raw := blake2b.Sum256([]byte("prefix:" + seed))
	return qualify(prefixCode, raw[:])
}

// IndexedSig - deterministic 88 character indexed signature
//
// the second character carries the key index
func IndexedSig(seed string, index int) string {
	raw := blake2b.Sum512([]byte(fmt.Sprintf("sig:%s:%d", seed, index)))
	padded := make([]byte, 0, 2+len(raw))
	padded = append(padded, 0x00, 0x00)
	padded = append(padded, raw[:]...)
	encoded := base64.RawURLEncoding.EncodeToString(padded)
	return "A" + string(b64Alphabet[index%64]) + encoded[2:]
}

// Snu - qualified sequence number in its 24 character form
func Snu(sn uint64) string {
	raw := make([]byte, 16)
	binary.BigEndian.PutUint64(raw[8:], sn)
	padded := make([]byte, 0, 2+len(raw))
	padded = append(padded, 0x00, 0x00)
	padded = append(padded, raw...)
	return "0A" + base64.RawURLEncoding.EncodeToString(padded)[2:]
}

// SealQuadruple - authorizer seal material: transferable prefix, then
// establishment event sequence number, establishment event digest and
// an indexed signature over the seal, concatenated in qualified form
func SealQuadruple(seed string, sn uint64, index int) []byte {
	quad := make([]byte, 0, 200)
	quad = append(quad, Prefix("authorizer:"+seed)...)
	quad = append(quad, Snu(sn)...)
	quad = append(quad, Digest("establishment:"+seed)...)
	quad = append(quad, IndexedSig("seal:"+seed, index)...)
	return quad
}

// EventDigest - the digest embedded by EventBody for the same triple
func EventDigest(prefix string, sn uint64, kind string) string {
	return Digest(fmt.Sprintf("%s:%d:%s", prefix, sn, kind))
}

// EventBody - deterministic serialized event bytes
//
// stores treat bodies as opaque; a JSON shape keeps database dumps
// and golden files readable and the version string carries the real
// byte size
func EventBody(prefix string, sn uint64, kind string) []byte {
	const sizePlaceholder = "000000"
	body := fmt.Sprintf(
		`{"v":"KERI10JSON%s_","t":"%s","d":"%s","i":"%s","s":"%x"}`,
		sizePlaceholder,
		kind,
		EventDigest(prefix, sn, kind),
		prefix,
		sn,
	)
	size := fmt.Sprintf("%06x", len(body))
	return []byte(strings.Replace(body, sizePlaceholder, size, 1))
}
