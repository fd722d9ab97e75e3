// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"
)

func runClone(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	prefix := c.String("prefix")
	if "" == prefix {
		return fmt.Errorf("missing prefix, use: --prefix=PREFIX")
	}
	start := c.Uint64("start")

	reg, release, err := openRegistry(m, true)
	if nil != err {
		return err
	}
	defer release()

	var out io.Writer = m.w
	if output := c.String("output"); "" != output {
		f, err := os.Create(output)
		if nil != err {
			return err
		}
		defer f.Close()
		out = f
	}

	clone, err := reg.Clone([]byte(prefix), start)
	if nil != err {
		return err
	}
	defer clone.Release()

	count := 0
	for clone.Next() {
		_, err = out.Write(clone.Message())
		if nil != err {
			return err
		}
		count += 1
	}
	if err := clone.Error(); nil != err {
		return err
	}

	if m.verbose {
		fmt.Fprintf(m.e, "cloned: %d messages from ordinal: %d\n", count, start)
	}
	return nil
}
