// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is s2litectl, a thin informational CLI over s2lited's HTTP
// surface: one flag.FlagSet per subcommand in the same style
// cmd/ratelimiter-api/main.go uses for its own knobs, operating on
// s2://basin[/stream] URIs rather than raw paths.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "create-basin":
		err = runCreateBasin(args)
	case "list-basins":
		err = runListBasins(args)
	case "delete-basin":
		err = runDeleteBasin(args)
	case "create-stream":
		err = runCreateStream(args)
	case "list-streams":
		err = runListStreams(args)
	case "delete-stream":
		err = runDeleteStream(args)
	case "append":
		err = runAppend(args)
	case "read":
		err = runRead(args)
	case "tail":
		err = runTail(args)
	case "trim":
		err = runTrim(args)
	case "fence":
		err = runFence(args)
	case "config":
		err = runConfig(args)
	case "bench":
		err = runBench(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "s2:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: s2 <command> [flags] [s2://basin[/stream]]

commands:
  create-basin   s2://basin
  list-basins    [--prefix P] [--start-after N] [--limit N]
  delete-basin   s2://basin
  create-stream  s2://basin/stream
  list-streams   s2://basin [--prefix P] [--start-after N] [--limit N]
  delete-stream  s2://basin/stream
  append         s2://basin/stream --body TEXT [--match-seq-num N] [--fencing-token T]
  read           s2://basin/stream [--start S] [--until U] [--limit-count N]
  tail           s2://basin/stream
  trim           s2://basin/stream --seq-num N
  fence          s2://basin/stream --token T
  bench          s2://basin/stream [--records N] [--size N]
  config {set|get|unset|list} [key] [value]`)
}
