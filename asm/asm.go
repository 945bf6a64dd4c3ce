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

package asm

import (
	"io"

	"github.com/db47h/eforth1/dict"
	"github.com/db47h/eforth1/internal/efi"
	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
)

// Assemble compiles assembly read from the supplied io.Reader into img,
// starting at img.Here unless an .org directive says otherwise. Here is moved
// past the last byte written. Code is confined to program space: writing past
// its end fails with an error whose cause is mem.ErrOutOfMemory.
//
// Then name parameter is used only in error messages to name the source of the
// error. If the io.Reader is a file, name should be the file name.
func Assemble(img *mem.Image, name string, r io.Reader) error {
	p := newParser(img)
	if err := p.Parse(name, r); err != nil {
		return err
	}
	if p.end > img.Here {
		img.Here = p.end
	}
	return nil
}

// Disassemble writes assembly source for length bytes of code starting at
// address start to the specified io.Writer. Feeding the output back to
// Assemble reproduces the same code. Word bodies are annotated with the word
// name in comments.
func Disassemble(w io.Writer, img *mem.Image, start, length int) error {
	ew := efi.NewErrWriter(w)
	code, err := vm.Disassemble(img, start, length)
	if err != nil {
		return err
	}
	ew.Printf(".org 0x%04x\n", start)
	for k := range code {
		in := &code[k]
		if nfa, ok := dict.WordAt(img, in.Addr); ok && dict.BodyOf(img, nfa) == in.Addr {
			ew.Printf("( %s )\n", dict.Name(img, nfa))
		}
		ew.Printf("\t%-24s( %04x )\n", in.String(), in.Addr)
	}
	return ew.Err
}
