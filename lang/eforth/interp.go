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

package eforth

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/db47h/eforth1/asm"
	"github.com/db47h/eforth1/dict"
	"github.com/db47h/eforth1/internal/efi"
	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

// Interpreter errors.
var (
	// ErrUndefined is returned for unknown words. It is the same error as
	// the one returned by the compiler's dictionary lookups.
	ErrUndefined   = asm.ErrWordNotFound
	ErrCompileOnly = errors.New("compile only")
	ErrMissingName = errors.New("missing name")
	// ErrBye is returned by Eval when the VM executes bye.
	ErrBye = errors.New("bye")
)

// Interp is the outer interpreter. It reads whitespace separated tokens and
// either executes them, compiles them into the current definition or pushes
// them on the data stack as numbers.
type Interp struct {
	Compiler *asm.Compiler
	VM       *vm.Instance

	img          *mem.Image
	src          string
	pos          int
	interpreting bool // [ inside a definition
	log          commonlog.Logger
}

// New returns an interpreter working on img. If img holds no kernel, it is
// bootstrapped first. The VM options are passed to the interpreter's VM.
func New(img *mem.Image, opts ...vm.Option) (*Interp, error) {
	c := asm.New(img)
	if _, ok := dict.Find(img, "BASE"); !ok {
		if err := Bootstrap(c); err != nil {
			return nil, errors.Wrap(err, "bootstrap")
		}
	}
	i, err := vm.New(img, opts...)
	if err != nil {
		return nil, err
	}
	return newInterp(c, i)
}

func newInterp(c *asm.Compiler, i *vm.Instance) (*Interp, error) {
	it := &Interp{
		Compiler: c,
		VM:       i,
		img:      c.Image,
		log:      commonlog.GetLogger("eforth.interp"),
	}
	if err := it.bindHost(); err != nil {
		return nil, err
	}
	return it, nil
}

// Compiling returns true if the interpreter is in compilation state.
func (it *Interp) Compiling() bool {
	return it.Compiler.Compiling() && !it.interpreting
}

func (it *Interp) output() *efi.ErrWriter {
	if w := it.VM.Output(); w != nil {
		return efi.NewErrWriter(w)
	}
	return efi.NewErrWriter(io.Discard)
}

// Eval interprets a line of source text. On error, the definition in
// progress is discarded and the VM stacks are cleared.
func (it *Interp) Eval(line string) error {
	it.src, it.pos = line, 0
	for {
		tok := it.word()
		if tok == "" {
			return nil
		}
		if err := it.interpret(tok); err != nil {
			return it.fail(tok, err)
		}
	}
}

// EvalReader interprets source text read from r, line by line, and stops at
// the first error. The name is used in error messages.
func (it *Interp) EvalReader(name string, r io.Reader) error {
	s := bufio.NewScanner(r)
	for n := 1; s.Scan(); n++ {
		if err := it.Eval(s.Text()); err != nil {
			if err == ErrBye {
				return err
			}
			return errors.Wrapf(err, "%s:%d", name, n)
		}
	}
	return errors.Wrap(s.Err(), name)
}

// Abort discards the definition in progress, if any, and clears the VM
// stacks.
func (it *Interp) Abort() {
	if it.Compiler.Defining() != 0 {
		it.Compiler.Abort()
	}
	it.interpreting = false
	it.VM.Reset()
}

func (it *Interp) fail(tok string, err error) error {
	if err == ErrBye {
		it.VM.Reset()
		return err
	}
	if _, ok := errors.Cause(err).(vm.Trap); ok {
		it.log.Debugf("%s: %v", tok, err)
		err = errors.Wrap(err, tok)
	}
	it.Abort()
	return err
}

// word returns the next whitespace delimited token, or an empty string at the
// end of the line. The delimiter following the token is consumed.
func (it *Interp) word() string {
	for it.pos < len(it.src) && isSpace(it.src[it.pos]) {
		it.pos++
	}
	start := it.pos
	for it.pos < len(it.src) && !isSpace(it.src[it.pos]) {
		it.pos++
	}
	tok := it.src[start:it.pos]
	if it.pos < len(it.src) {
		it.pos++
	}
	return tok
}

// parse returns the text up to the delimiter, or the rest of the line if
// there is none.
func (it *Interp) parse(delim byte) string {
	start := it.pos
	if n := strings.IndexByte(it.src[start:], delim); n >= 0 {
		it.pos = start + n + 1
		return it.src[start : start+n]
	}
	it.pos = len(it.src)
	return it.src[start:]
}

func isSpace(c byte) bool { return c <= ' ' }

// name parses the name of a new or existing word.
func (it *Interp) name() (string, error) {
	if n := it.word(); n != "" {
		return n, nil
	}
	return "", ErrMissingName
}

func (it *Interp) interpret(tok string) error {
	if d, ok := directives[strings.ToUpper(tok)]; ok {
		if d.compileOnly && !it.Compiling() {
			return errors.Wrap(ErrCompileOnly, tok)
		}
		return d.fn(it)
	}
	if nfa, ok := dict.Find(it.img, tok); ok {
		f := dict.Flags(it.img, nfa)
		if it.Compiling() && f&dict.Immediate == 0 {
			return it.Compiler.Reference(nfa)
		}
		if !it.Compiling() && f&dict.CompileOnly != 0 {
			return errors.Wrap(ErrCompileOnly, tok)
		}
		return it.Execute(dict.BodyOf(it.img, nfa))
	}
	n, ok := it.Number(tok)
	if !ok {
		return errors.Wrap(ErrUndefined, tok)
	}
	if it.Compiling() {
		return it.Compiler.Literal(n)
	}
	return it.VM.Push(n)
}

// Execute runs the word at xt. It returns ErrBye if the VM halts.
func (it *Interp) Execute(xt int) error {
	if err := it.VM.Execute(xt); err != nil {
		return err
	}
	if it.VM.Halted() {
		return ErrBye
	}
	return nil
}

// varAddr returns the address pushed by a variable or buffer word.
func (it *Interp) varAddr(name string) (int, bool) {
	nfa, ok := dict.Find(it.img, name)
	if !ok {
		return 0, false
	}
	body := dict.BodyOf(it.img, nfa)
	c, err := it.img.Fetch(body)
	if err != nil || c != vm.Instruction(vm.OpLit) {
		return 0, false
	}
	v, err := it.img.Fetch(body + it.img.Width())
	if err != nil {
		return 0, false
	}
	return it.img.Addr(v), true
}

// Base returns the current number conversion radix. Values of BASE outside
// of 2-36 read as 10.
func (it *Interp) Base() int {
	if a, ok := it.varAddr("BASE"); ok {
		if v, err := it.img.Fetch(a); err == nil && v >= 2 && v <= 36 {
			return int(v)
		}
	}
	return 10
}

// Number converts tok to a cell value in the current base. A leading '-'
// negates the number and a '$' prefix forces base 16.
func (it *Interp) Number(tok string) (mem.Cell, bool) {
	base := it.Base()
	neg := false
	if len(tok) > 1 && tok[0] == '-' {
		neg, tok = true, tok[1:]
	}
	if len(tok) > 1 && tok[0] == '$' {
		base, tok = 16, tok[1:]
	}
	n, err := strconv.ParseUint(tok, base, 64)
	if err != nil || n >= uint64(1)<<uint(8*it.img.Width()) {
		return 0, false
	}
	v := int64(n)
	if neg {
		v = -v
	}
	return it.img.Norm(mem.Cell(v)), true
}
