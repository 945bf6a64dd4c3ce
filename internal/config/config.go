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

// Package config loads the eforth command configuration from TOML files.
//
// A configuration file looks like:
//
//	[image]
//	file = "eforth.img"
//	size = 8192
//	width = 2
//	byte-order = "big"
//	data-space = 1024
//
//	[vm]
//	data-depth = 64
//	return-depth = 64
//	max-steps = 0
//	trace = false
//
//	[repl]
//	prompt = "ok> "
//	history = "~/.eforth_history"
//
//	[log]
//	verbosity = 0
//	file = ""
//
// Missing keys keep their default value. Unknown keys are an error.
package config

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
)

// Config is the eforth command configuration.
type Config struct {
	Image Image `toml:"image"`
	VM    VM    `toml:"vm"`
	REPL  REPL  `toml:"repl"`
	Log   Log   `toml:"log"`
}

// Image configures the memory image.
type Image struct {
	File      string `toml:"file"` // image file loaded at startup, if it exists
	Size      int    `toml:"size"`
	Width     int    `toml:"width"`
	ByteOrder string `toml:"byte-order"`
	DataSpace int    `toml:"data-space"`
}

// VM configures the virtual machine.
type VM struct {
	DataDepth   int   `toml:"data-depth"`
	ReturnDepth int   `toml:"return-depth"`
	MaxSteps    int64 `toml:"max-steps"`
	Trace       bool  `toml:"trace"`
}

// REPL configures the interactive console.
type REPL struct {
	Prompt  string `toml:"prompt"`
	History string `toml:"history"`
}

// Log configures logging. Verbosity 0 logs notices, warnings and errors, 1
// adds info messages and 2 debug messages. Logs go to stderr if File is
// empty.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Image: Image{
			Size:      mem.DefaultSize,
			Width:     2,
			ByteOrder: "big",
			DataSpace: mem.DefaultDataSpace,
		},
		VM: VM{
			DataDepth:   64,
			ReturnDepth: 64,
		},
		REPL: REPL{
			Prompt: "ok> ",
		},
	}
}

// Decode reads a configuration from r, on top of the defaults.
func Decode(r io.Reader) (*Config, error) {
	c := Default()
	md, err := toml.NewDecoder(r).Decode(c)
	if err != nil {
		return nil, errors.Wrap(err, "parse error")
	}
	if u := md.Undecoded(); len(u) > 0 {
		keys := make([]string, len(u))
		for i, k := range u {
			keys[i] = k.String()
		}
		return nil, errors.Errorf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}
	c.REPL.History = expandHome(c.REPL.History)
	c.Image.File = expandHome(c.Image.File)
	return c, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read configuration")
	}
	defer f.Close()
	c, err := Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// ImageOptions returns the mem options for creating a new image.
func (c *Config) ImageOptions() ([]mem.Option, error) {
	var o binary.ByteOrder
	switch strings.ToLower(c.Image.ByteOrder) {
	case "big", "":
		o = binary.BigEndian
	case "little":
		o = binary.LittleEndian
	default:
		return nil, errors.Errorf("invalid byte order %q", c.Image.ByteOrder)
	}
	return []mem.Option{
		mem.Width(c.Image.Width),
		mem.ByteOrder(o),
		mem.DataSpace(c.Image.DataSpace),
	}, nil
}

// VMOptions returns the VM options.
func (c *Config) VMOptions() []vm.Option {
	return []vm.Option{
		vm.DataDepth(c.VM.DataDepth),
		vm.ReturnDepth(c.VM.ReturnDepth),
		vm.MaxSteps(c.VM.MaxSteps),
		vm.Trace(c.VM.Trace),
	}
}
