// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/rubelhassan/kerireg/registry"
	"github.com/rubelhassan/kerireg/storage"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// colours
const (
	keyColour1 = "\033[1;36m"
	keyColour2 = "\033[1;31m"
	valColour1 = "\033[1;33m"
	valColour2 = "\033[1;34m"
	endColour  = "\033[0m"
)

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "list", HasArg: getoptions.NO_ARGUMENT, Short: 'l'},
		{Long: "early", HasArg: getoptions.NO_ARGUMENT, Short: 'e'},
		{Long: "colour", HasArg: getoptions.NO_ARGUMENT, Short: 'g'},
		{Long: "ascii", HasArg: getoptions.NO_ARGUMENT, Short: 'a'},
		{Long: "database", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'f'},
		{Long: "engine", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'E'},
		{Long: "table", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 't'},
		{Long: "count", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		exitwithstatus.Message("%s: version: %s", program, version)
	}

	if len(options["list"]) > 0 {

		// print all table regions
		fmt.Printf(" tables:\n")
		for _, region := range registry.Regions() {
			fmt.Printf("       %s → %s\n", region.Tag, region.Table)
		}
		return
	}

	if len(options["help"]) > 0 || 1 != len(options["database"]) || 1 != len(options["table"]) {
		exitwithstatus.Message("usage: %s [--help] [--verbose] [--list] [--early] [--colour] [--ascii] [--count=N] [--engine=NAME] --database=DIR --table=TAG [key-prefix-hex]", program)
	}

	// stop if prefix no longer matches
	earlyStop := len(options["early"]) > 0

	colour := len(options["colour"]) > 0
	ascii := len(options["ascii"]) > 0
	verbose := len(options["verbose"]) > 0

	count := 10
	if len(options["count"]) > 0 {
		count, err = strconv.Atoi(options["count"][0])
		if nil != err {
			exitwithstatus.Message("%s: convert count error: %s", program, err)
		}
		if count < 1 {
			exitwithstatus.Message("%s: invalid count: %d", program, count)
		}
	}

	directory := options["database"][0]
	engine := ""
	if len(options["engine"]) > 0 {
		engine = options["engine"][0]
	}

	tag := options["table"][0]
	if verbose {
		fmt.Printf("read table: %s from database: %q\n", tag, directory)
	}

	prefix := []byte(nil)
	if len(arguments) > 0 {
		prefix, err = hex.DecodeString(arguments[0])
		if nil != err {
			exitwithstatus.Message("%s: convert prefix error: %s", program, err)
		}
	}

	logging := logger.Configuration{
		Directory: ".",
		File:      "kerireg-dumpdb.log",
		Size:      1048576,
		Count:     10,
		Console:   true,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	if err = logger.Initialise(logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// the database is never modified by this tool
	store, err := storage.Open(storage.Config{
		Directory: directory,
		Engine:    engine,
		ReadOnly:  true,
	})
	if nil != err {
		exitwithstatus.Message("%s: storage open failed with error: %s", program, err)
	}
	defer store.Close()

	pool, err := store.Pool(tag)
	if nil != err {
		exitwithstatus.Message("%s: no table corresponding to: %q", program, tag)
	}

	cursor := pool.NewFetchCursor()
	if len(prefix) > 0 {
		cursor.Seek(prefix)
	}

	data, err := cursor.Fetch(count)
	if nil != err {
		exitwithstatus.Message("%s: error on Fetch: %s", program, err)
	}

	l := len(prefix)

	ck1 := ""
	ck2 := ""
	cv1 := ""
	cv2 := ""
	ce := ""
	if colour {
		ck1 = keyColour1
		ck2 = keyColour2
		cv1 = valColour1
		cv2 = valColour2
		ce = endColour
	}

print_loop:
	for i, e := range data {
		if earlyStop && len(e.Key) >= l && !bytes.Equal(prefix, e.Key[:l]) {
			fmt.Printf("*** early stop\n")
			break print_loop
		}

		fmt.Printf("%d: %sKey: %s%x%s\n", i, ck1, ck2, e.Key, ce)
		if ascii {
			prefix := fmt.Sprintf("%d: %sVal: %s", i, cv1, cv2)
			suffix := ce
			hexDump(prefix, suffix, e.Value)

		} else {
			fmt.Printf("%d: %sVal: %s%x%s\n", i, cv1, cv2, e.Value, ce)
		}
	}
}

// dump hex data on stdout
func hexDump(prefix string, suffix string, data []byte) {
	address := 0
	const bytesPerLine = 32
	for i := 0; i < len(data); i += bytesPerLine {
		fmt.Printf("%s%04x  ", prefix, address)
		address += bytesPerLine
		for j := 0; j < bytesPerLine; j += 1 {
			if bytesPerLine/2 == j {
				fmt.Printf(" ")
			}
			if i+j < len(data) {
				fmt.Printf("%02x ", data[i+j])
			} else {
				fmt.Printf("   ")
			}
		}
		fmt.Printf(" |")
	ascii_loop:
		for j := 0; j < bytesPerLine; j += 1 {
			if i+j < len(data) {
				c := data[i+j]
				if c < 32 || c >= 127 {
					c = '.'
				}
				fmt.Printf("%c", c)

			} else {
				break ascii_loop
			}
		}
		fmt.Printf("|%s\n", suffix)
	}
}
