// This file is part of eforth1 - https://github.com/db47h/eforth1
//
// Copyright 2016 Denis Bernard <db047h@gmail.com>
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

// The eforth command line tool is an interactive eForth1 system built on the
// packages of github.com/db47h/eforth1.
//
// Usage:
//
//	-bits value
//		  cell size in bits of a new memory image (16 or 32)
//	-boot
//		  execute the image from its boot vector and exit
//	-config filename
//		  load configuration from TOML file filename
//	-debug
//		  enable debug diagnostics
//	-dump
//		  dump stacks and memory image upon exit
//	-entry word
//		  set the boot vector to word before saving
//	-image filename
//		  load memory image from file filename
//	-noraw
//		  disable raw terminal IO for -run and -boot
//	-o filename
//		  save the memory image to filename upon exit
//	-run word
//		  execute word and exit
//	-size int
//		  size in bytes of a new memory image
//	-trace
//		  enable instruction tracing (logged at debug level)
//	-with filename
//		  evaluate filename before starting (can be specified multiple times)
//
// Without -run or -boot, eforth starts an interactive console with line
// editing and history. If stdin is not a terminal, it is interpreted line by
// line until the end of input or the first error.
//
// -image: if the file does not exist, a new image is created and the kernel
// is bootstrapped into it. Combined with -o, this is how images are built:
//
//	eforth -with app.fs -entry MAIN -o app.img </dev/null
//	eforth -image app.img -boot
//
// -run, -boot: the terminal is switched to raw mode so that KEY reads single
// key strokes. ^D ends the input.
//
// -dump: the data stack, return stack and program space are written to stdout
// upon exit, each introduced by a separator control character.
//
// -config: settings not given on the command line are read from the
// configuration file. See package github.com/db47h/eforth1/internal/config for
// its format.
package main
