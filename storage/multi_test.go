// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"testing"

	"github.com/rubelhassan/kerireg/fault"
	"github.com/rubelhassan/kerireg/storage"
)

// helper to add one value
func multiAdd(t *testing.T, m *storage.MultiHandle, key string, value string) bool {
	added, err := m.Add([]byte(key), []byte(value))
	if nil != err {
		t.Fatalf("add %q error: %s", key, err)
	}
	return added
}

func checkValues(t *testing.T, actual [][]byte, expected []string) {
	if len(actual) != len(expected) {
		t.Fatalf("length mismatch, got: %d  expected: %d", len(actual), len(expected))
	}
	for i, value := range actual {
		if expected[i] != string(value) {
			t.Errorf("%d: value mismatch, got: %q  expected: %q", i, value, expected[i])
		}
	}
}

func TestMultiLexicographicOrder(t *testing.T) {
	withEachEngine(t, func(t *testing.T, store *storage.Store) {
		m := mustMulti(t, store, "test.")

		key := "event-digest"

		// inserted out of order
		multiAdd(t, m, key, "CC-third")
		multiAdd(t, m, key, "AA-first")
		multiAdd(t, m, key, "BB-second")

		values, err := m.GetAll([]byte(key))
		if nil != err {
			t.Fatalf("get all error: %s", err)
		}
		checkValues(t, values, []string{"AA-first", "BB-second", "CC-third"})
	})
}

func TestMultiDuplicateValue(t *testing.T) {
	withEachEngine(t, func(t *testing.T, store *storage.Store) {
		m := mustMulti(t, store, "test.")

		key := []byte("event-digest")

		if !multiAdd(t, m, string(key), "signature-one") {
			t.Fatal("first add rejected")
		}
		if multiAdd(t, m, string(key), "signature-one") {
			t.Error("duplicate add accepted")
		}

		n, err := m.Count(key)
		if nil != err {
			t.Fatalf("count error: %s", err)
		}
		if 1 != n {
			t.Errorf("count mismatch, got: %d  expected: %d", n, 1)
		}

		has, err := m.Has(key, []byte("signature-one"))
		if nil != err {
			t.Fatalf("has error: %s", err)
		}
		if !has {
			t.Error("missing stored value")
		}
	})
}

func TestMultiAddAll(t *testing.T) {
	withEachEngine(t, func(t *testing.T, store *storage.Store) {
		m := mustMulti(t, store, "test.")

		key := []byte("event-digest")
		multiAdd(t, m, string(key), "BB")

		// one stored duplicate, one internal duplicate, two new
		added, err := m.AddAll(key, [][]byte{
			[]byte("BB"),
			[]byte("AA"),
			[]byte("CC"),
			[]byte("AA"),
		})
		if nil != err {
			t.Fatalf("add all error: %s", err)
		}
		if !added {
			t.Fatal("add all with new values reported nothing added")
		}

		values, err := m.GetAll(key)
		if nil != err {
			t.Fatalf("get all error: %s", err)
		}
		checkValues(t, values, []string{"AA", "BB", "CC"})

		// everything already stored
		added, err = m.AddAll(key, [][]byte{[]byte("AA"), []byte("BB")})
		if nil != err {
			t.Fatalf("add all error: %s", err)
		}
		if added {
			t.Error("add all of duplicates reported an addition")
		}
	})
}

func TestMultiDelete(t *testing.T) {
	withEachEngine(t, func(t *testing.T, store *storage.Store) {
		m := mustMulti(t, store, "test.")

		key := []byte("event-digest")
		multiAdd(t, m, string(key), "AA")
		multiAdd(t, m, string(key), "BB")
		multiAdd(t, m, string(key), "CC")

		deleted, err := m.Delete(key, []byte("BB"))
		if nil != err {
			t.Fatalf("delete error: %s", err)
		}
		if !deleted {
			t.Fatal("delete missed a stored value")
		}

		deleted, err = m.Delete(key, []byte("BB"))
		if nil != err {
			t.Fatalf("delete error: %s", err)
		}
		if deleted {
			t.Error("delete of absent value reported success")
		}

		values, err := m.GetAll(key)
		if nil != err {
			t.Fatalf("get all error: %s", err)
		}
		checkValues(t, values, []string{"AA", "CC"})

		deleted, err = m.DeleteAll(key)
		if nil != err {
			t.Fatalf("delete all error: %s", err)
		}
		if !deleted {
			t.Fatal("delete all removed nothing")
		}

		n, err := m.Count(key)
		if nil != err {
			t.Fatalf("count error: %s", err)
		}
		if 0 != n {
			t.Errorf("count after delete all, got: %d  expected: %d", n, 0)
		}
	})
}

func TestMultiKeyIsolation(t *testing.T) {
	withEachEngine(t, func(t *testing.T, store *storage.Store) {
		m := mustMulti(t, store, "test.")

		// one key a prefix of the other
		multiAdd(t, m, "ab", "from-ab")
		multiAdd(t, m, "a", "b-from-a")

		values, err := m.GetAll([]byte("a"))
		if nil != err {
			t.Fatalf("get all error: %s", err)
		}
		checkValues(t, values, []string{"b-from-a"})

		values, err = m.GetAll([]byte("ab"))
		if nil != err {
			t.Fatalf("get all error: %s", err)
		}
		checkValues(t, values, []string{"from-ab"})
	})
}

func TestMultiIterSurvivesWrites(t *testing.T) {
	withEachEngine(t, func(t *testing.T, store *storage.Store) {
		m := mustMulti(t, store, "test.")

		key := []byte("event-digest")
		multiAdd(t, m, string(key), "AA")
		multiAdd(t, m, string(key), "CC")

		cursor, err := m.Iter(key)
		if nil != err {
			t.Fatalf("iter error: %s", err)
		}

		if !cursor.Next() {
			t.Fatalf("cursor stopped early: %v", cursor.Error())
		}
		if "AA" != string(cursor.Value()) {
			t.Fatalf("value mismatch, got: %q  expected: %q", cursor.Value(), "AA")
		}

		// inserted ahead of the cursor while it is live
		multiAdd(t, m, string(key), "BB")

		collected := []string{}
		for cursor.Next() {
			collected = append(collected, string(cursor.Value()))
		}
		if nil != cursor.Error() {
			t.Fatalf("cursor error: %s", cursor.Error())
		}
		if 2 != len(collected) || "BB" != collected[0] || "CC" != collected[1] {
			t.Errorf("interleaved write missed, got: %v", collected)
		}
	})
}

func TestMultiReservedKey(t *testing.T) {
	withEachEngine(t, func(t *testing.T, store *storage.Store) {
		m := mustMulti(t, store, "test.")

		_, err := m.Add([]byte("bad\x00key"), []byte("value"))
		if fault.KeyContainsReservedByte != err {
			t.Errorf("reserved byte error mismatch, got: %v  expected: %v", err, fault.KeyContainsReservedByte)
		}

		_, err = m.GetAll([]byte("bad\x01key"))
		if fault.KeyContainsReservedByte != err {
			t.Errorf("reserved byte error mismatch, got: %v  expected: %v", err, fault.KeyContainsReservedByte)
		}
	})
}
