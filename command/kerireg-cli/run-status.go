// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/urfave/cli"
)

type statusReply struct {
	Prefix        string `json:"prefix"`
	Events        uint64 `json:"events"`
	Tip           uint64 `json:"tip"`
	TipDigest     string `json:"tip_digest"`
	OutOfOrder    uint64 `json:"pending_out_of_order"`
	PartWitnessed uint64 `json:"pending_partly_witnessed"`
	Anchorless    uint64 `json:"pending_anchorless"`
}

func runStatus(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	prefix := c.String("prefix")
	if "" == prefix {
		return fmt.Errorf("missing prefix, use: --prefix=PREFIX")
	}

	reg, release, err := openRegistry(m, true)
	if nil != err {
		return err
	}
	defer release()

	reply := statusReply{
		Prefix: prefix,
	}

	items := reg.Log.Items([]byte(prefix), 0)
	for items.Next() {
		reply.Tip = items.Ordinal()
		reply.TipDigest = string(items.Digest())
		reply.Events += 1
	}
	if err := items.Error(); nil != err {
		return err
	}

	reply.OutOfOrder, err = reg.OutOfOrder.Count([]byte(prefix), 0)
	if nil != err {
		return err
	}
	reply.PartWitnessed, err = reg.PartWitnessed.Count([]byte(prefix), 0)
	if nil != err {
		return err
	}
	reply.Anchorless, err = reg.Anchorless.Count([]byte(prefix), 0)
	if nil != err {
		return err
	}

	return printJson(m.w, reply)
}
