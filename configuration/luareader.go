// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
)

// ParseConfigurationFile - read and execute a Lua file and assign the
// returned table to a configuration structure
//
// struct fields are matched by their "gluamapper" tags
func ParseConfigurationFile(fileName string, config interface{}, extras ...string) error {
	L := lua.NewState()
	defer L.Close()

	L.OpenLibs()

	// create the global "arguments" table
	// arguments[0] = configuration file
	// arguments[n] = extras[n-1]
	arguments := &lua.LTable{}
	arguments.Insert(0, lua.LString(fileName))
	for i, extra := range extras {
		arguments.Insert(i+1, lua.LString(extra))
	}
	L.SetGlobal("arguments", arguments)

	// execute configuration
	if err := L.DoFile(fileName); err != nil {
		return err
	}

	mapperOption := gluamapper.Option{
		NameFunc: func(s string) string {
			return s
		},
		TagName: "gluamapper",
	}
	mapper := gluamapper.Mapper{Option: mapperOption}
	err := mapper.Map(L.Get(L.GetTop()).(*lua.LTable), config)
	return err
}
