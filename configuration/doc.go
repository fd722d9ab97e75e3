// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package configuration - parse a Lua configuration file
//
// the configuration is an executable Lua script whose final expression
// is the configuration table.  Most of base Lua is available such as
// reading files to set key data and getenv to extract environment
// supplied items.  The file name and any caller supplied extras are
// exposed to the script through the global "arguments" table.
package configuration
