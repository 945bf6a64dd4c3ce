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

package vm

import (
	"fmt"
	"io"
	"strconv"

	"github.com/db47h/eforth1/dict"
	"github.com/db47h/eforth1/internal/efi"
	"github.com/db47h/eforth1/mem"
	"github.com/pkg/errors"
)

// Instr is a decoded instruction.
type Instr struct {
	Addr int      // address of the instruction cell
	Cell mem.Cell // raw instruction cell
	Op   Opcode   // OpInvalid if Cell does not hold a valid instruction
	Imm  bool     // immediate flag
	Arg  mem.Cell // cell operand of lit, call and branches
	Str  []byte   // string operand of ." and $"
	Uint int      // unsigned value of Arg for operands, of Cell for invalid instructions
	Size int      // size in bytes, operand included
}

// Valid returns false if the instruction cell is not a valid instruction.
// Disassembly shows such cells as raw data.
func (in *Instr) Valid() bool {
	return in.Op != OpInvalid && in.Imm == in.Op.HasOperand()
}

func (in *Instr) String() string {
	if !in.Valid() {
		return fmt.Sprintf(".dat 0x%04x", in.Uint)
	}
	switch in.Op {
	case OpLit:
		return "lit " + strconv.Itoa(int(in.Arg))
	case OpCall, OpBranch, OpQBranch, OpNext:
		return fmt.Sprintf("%s 0x%04x", in.Op, in.Uint)
	case OpDotQuote, OpStrQuote:
		return in.Op.String() + " " + strconv.Quote(string(in.Str))
	}
	return in.Op.String()
}

// decodeAt decodes the instruction at address a. Instructions whose operand
// lies outside of the image decode as invalid.
func decodeAt(img *mem.Image, a int) (Instr, error) {
	c, err := img.Fetch(a)
	if err != nil {
		return Instr{}, err
	}
	w := img.Width()
	in := Instr{Addr: a, Cell: c, Size: w, Uint: img.Addr(c)}
	in.Op, in.Imm = Decode(c)
	if !in.Valid() || !in.Op.HasOperand() {
		return in, nil
	}
	switch in.Op {
	case OpDotQuote, OpStrQuote:
		n, err := img.FetchByte(a + w)
		if err != nil || a+w+1+int(n) > img.Size() {
			in.Op = OpInvalid
			return in, nil
		}
		in.Str = img.Bytes()[a+w+1 : a+w+1+int(n)]
		in.Size = img.Align(a+w+1+int(n)) - a
	default:
		arg, err := img.Fetch(a + w)
		if err != nil {
			in.Op = OpInvalid
			return in, nil
		}
		in.Arg = arg
		in.Uint = img.Addr(arg)
		in.Size = 2 * w
	}
	return in, nil
}

// Disassemble decodes length bytes of code starting at address start.
func Disassemble(img *mem.Image, start, length int) ([]Instr, error) {
	var code []Instr
	for a := start; a < start+length; {
		in, err := decodeAt(img, a)
		if err != nil {
			return code, errors.Wrap(err, "disassemble")
		}
		code = append(code, in)
		a += in.Size
	}
	return code, nil
}

func wordName(img *mem.Image, a int) string {
	if nfa, ok := dict.WordAt(img, a); ok && dict.BodyOf(img, nfa) == a {
		return dict.Name(img, nfa)
	}
	return ""
}

// Dump writes a listing of length bytes of memory starting at address start
// to the specified io.Writer. Word headers are shown as labels and the code
// between them is disassembled, one instruction per line.
func Dump(w io.Writer, img *mem.Image, start, length int) error {
	ew := efi.NewErrWriter(w)
	headers := make(map[int]int)
	dict.Walk(img, func(nfa int) bool {
		headers[dict.HeaderOf(img, nfa)] = nfa
		return true
	})
	end := start + length
	if end > img.Size() {
		end = img.Size()
	}
	for a := start; a < end && ew.Err == nil; {
		if nfa, ok := headers[a]; ok {
			ew.Printf("%s:", dict.Name(img, nfa))
			f := dict.Flags(img, nfa)
			if f&dict.Immediate != 0 {
				ew.Printf(" immediate")
			}
			if f&dict.CompileOnly != 0 {
				ew.Printf(" compile-only")
			}
			ew.Printf("\n")
			a = dict.BodyOf(img, nfa)
			continue
		}
		in, err := decodeAt(img, a)
		if err != nil {
			return errors.Wrap(err, "dump")
		}
		ew.Printf("%04x  %s", a, in.String())
		if in.Valid() && in.Op == OpCall {
			if name := wordName(img, in.Uint); name != "" {
				ew.Printf(" ( %s )", name)
			}
		}
		ew.Printf("\n")
		a += in.Size
	}
	return ew.Err
}

// DumpReturnStack writes the return stack to w, top first. Return addresses
// pushed by call or execute are annotated with the name of the word they
// point into. Other entries, like loop counters or values moved with >r, are
// shown as plain numbers.
func (i *Instance) DumpReturnStack(w io.Writer) error {
	ew := efi.NewErrWriter(w)
	for n := len(i.ret) - 1; n >= 0; n-- {
		a := i.addr(i.ret[n])
		ew.Printf("%2d  0x%04x", len(i.ret)-1-n, a)
		if n >= len(i.retMark) || !i.retMark[n] {
			ew.Printf("\n")
			continue
		}
		if nfa, ok := dict.WordAt(i.Image, a); ok {
			ew.Printf("  %s", dict.Name(i.Image, nfa))
		}
		ew.Printf("\n")
	}
	return ew.Err
}

// DumpStacks writes the data stack depth and contents, bottom first, to w,
// followed by the return stack as written by DumpReturnStack.
func (i *Instance) DumpStacks(w io.Writer) error {
	ew := efi.NewErrWriter(w)
	ew.Printf("<%d>", len(i.data))
	for _, v := range i.data {
		ew.Printf(" %d", v)
	}
	ew.Printf("\n")
	if ew.Err != nil {
		return ew.Err
	}
	return i.DumpReturnStack(ew)
}
