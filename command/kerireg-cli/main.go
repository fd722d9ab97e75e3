// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/logger"
	"github.com/urfave/cli"
)

// carried between the app hooks and the command actions
type metadata struct {
	file    string
	config  *Configuration
	verbose bool
	e       io.Writer
	w       io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	app := cli.NewApp()
	app.Name = "kerireg-cli"
	app.Usage = "inspect and maintain a registry event log database"
	app.Version = version
	app.HideVersion = true

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " verbose result",
		},
		cli.StringFlag{
			Name:  "config, c",
			Value: "",
			Usage: "*configuration `FILE`",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "status",
			Usage:     "canonical tip and pending queue counts for a prefix",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "prefix, p",
					Value: "",
					Usage: "*registry `PREFIX`",
				},
			},
			Action: runStatus,
		},
		{
			Name:      "clone",
			Usage:     "replay a prefix as a CESR message stream",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "prefix, p",
					Value: "",
					Usage: "*registry `PREFIX`",
				},
				cli.Uint64Flag{
					Name:  "start, s",
					Value: 0,
					Usage: " replay from this ordinal `NUMBER`",
				},
				cli.StringFlag{
					Name:  "output, o",
					Value: "",
					Usage: " write the stream to `FILE` instead of stdout",
				},
			},
			Action: runClone,
		},
		{
			Name:      "escrow",
			Usage:     "list pending entries, run a sweep or drop an entry",
			ArgsUsage: "\n   (* = required, + = select one)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "prefix, p",
					Value: "",
					Usage: "*registry `PREFIX`",
				},
				cli.BoolFlag{
					Name:  "sweep, s",
					Usage: "+re-examine pending entries and promote the released ones",
				},
				cli.Uint64Flag{
					Name:  "drop, d",
					Value: 0,
					Usage: "+discard the pending entry at this ordinal `NUMBER`",
				},
			},
			Action: runEscrow,
		},
		{
			Name:  "version",
			Usage: "display kerireg-cli version",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "%s\n", version)
				return nil
			},
		},
	}

	// read the configuration
	app.Before = func(c *cli.Context) error {

		e := c.App.ErrWriter
		w := c.App.Writer
		verbose := c.GlobalBool("verbose")

		// commands that run without a configuration
		command := c.Args().Get(0)
		switch command {
		case "", "help", "h", "version":
			return nil
		}

		file := c.GlobalString("config")
		if "" == file {
			return fmt.Errorf("missing configuration file, use: --config=FILE")
		}

		if verbose {
			fmt.Fprintf(e, "reading configuration file: %s\n", file)
		}

		config, err := getConfiguration(file)
		if nil != err {
			return err
		}

		if err := logger.Initialise(config.Logging); nil != err {
			return err
		}

		c.App.Metadata["config"] = &metadata{
			file:    file,
			config:  config,
			verbose: verbose,
			e:       e,
			w:       w,
		}
		return nil
	}

	app.After = func(c *cli.Context) error {
		if _, ok := c.App.Metadata["config"]; ok {
			logger.Finalise()
		}
		return nil
	}

	err := app.Run(os.Args)
	if nil != err {
		exitwithstatus.Message("%s: error: %s", app.Name, err)
	}
}
