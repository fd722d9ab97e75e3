// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/rubelhassan/kerireg/escrow"
	"github.com/rubelhassan/kerireg/registry"
)

type pendingEntry struct {
	Sn     uint64 `json:"sn"`
	Digest string `json:"digest"`
}

type escrowReply struct {
	Prefix string                    `json:"prefix"`
	Queues map[string][]pendingEntry `json:"queues"`
}

func runEscrow(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	prefix := c.String("prefix")
	if "" == prefix {
		return fmt.Errorf("missing prefix, use: --prefix=PREFIX")
	}

	sweep := c.Bool("sweep")
	drop := c.IsSet("drop")
	if sweep && drop {
		return fmt.Errorf("select only one of: --sweep or --drop")
	}

	// listing never modifies the database
	readOnly := !sweep && !drop

	reg, release, err := openRegistry(m, readOnly)
	if nil != err {
		return err
	}
	defer release()

	if drop {
		mgr, err := escrow.New(reg, escrow.Options{})
		if nil != err {
			return err
		}
		removed, err := mgr.Drop([]byte(prefix), c.Uint64("drop"))
		if nil != err {
			return err
		}
		fmt.Fprintf(m.w, "dropped: %t\n", removed)
		return nil
	}

	if sweep {
		mgr, err := escrow.New(reg, escrow.Options{})
		if nil != err {
			return err
		}
		promoted, err := mgr.Sweep([]byte(prefix))
		if nil != err {
			return err
		}
		fmt.Fprintf(m.w, "promoted: %d\n", promoted)
		return nil
	}

	queues := []struct {
		name  string
		table *registry.SeqIndex
	}{
		{"out_of_order", reg.OutOfOrder},
		{"partly_witnessed", reg.PartWitnessed},
		{"anchorless", reg.Anchorless},
	}

	reply := escrowReply{
		Prefix: prefix,
		Queues: map[string][]pendingEntry{},
	}
	for _, q := range queues {
		entries := []pendingEntry{}
		items := q.table.Items([]byte(prefix), 0)
		for items.Next() {
			entries = append(entries, pendingEntry{
				Sn:     items.Ordinal(),
				Digest: string(items.Digest()),
			})
		}
		if err := items.Error(); nil != err {
			return err
		}
		reply.Queues[q.name] = entries
	}

	return printJson(m.w, reply)
}
