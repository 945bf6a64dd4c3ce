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
	"github.com/db47h/eforth1/dict"
	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

// Compiler errors.
var (
	ErrUnbalanced    = errors.New("unbalanced control structure")
	ErrWordNotFound  = errors.New("word not found")
	ErrNotCompiling  = errors.New("not compiling")
	ErrCompiling     = errors.New("definition in progress")
	ErrStringTooLong = errors.New("string too long")
	ErrOperand       = errors.New("opcode requires an operand")
	ErrNotCreated    = errors.New("word not defined by CREATE")
)

type tag int

const (
	tagBegin tag = iota
	tagIf
	tagElse
	tagWhile
	tagFor
	tagAft
	tagAhead
)

var tagNames = [...]string{"BEGIN", "IF", "ELSE", "WHILE", "FOR", "AFT", "AHEAD"}

func (t tag) String() string { return tagNames[t] }

// patch is an entry of the control flow stack. For forward references, addr
// is the address of the operand cell to patch, for backward references it is
// the branch target.
type patch struct {
	addr int
	tag  tag
}

// Compiler compiles word definitions and threaded code into a memory image.
//
// All methods check their preconditions before touching the image: a method
// returning an error leaves the image and the control flow stack unchanged.
// The exception is ErrUnbalanced: a control structure closed without a
// matching opening word discards the whole definition in progress.
type Compiler struct {
	Image *mem.Image

	patches []patch
	nfa     int // word being defined, 0 if none
	colon   bool
	mark    mem.Mark
	log     commonlog.Logger
}

// New returns a new Compiler emitting code into img.
func New(img *mem.Image) *Compiler {
	return &Compiler{
		Image: img,
		log:   commonlog.GetLogger("eforth.asm"),
	}
}

// Compiling returns true while a colon definition is in progress.
func (c *Compiler) Compiling() bool { return c.colon }

// Defining returns the NFA of the word being defined, 0 if none.
func (c *Compiler) Defining() int { return c.nfa }

// emit appends cells to program space, realigned to a cell boundary, and
// returns the address of the first one.
func (c *Compiler) emit(cells ...mem.Cell) (int, error) {
	img := c.Image
	need := img.Align(img.Here) - img.Here + len(cells)*img.Width()
	if need > img.Room() {
		return 0, errors.Wrapf(mem.ErrOutOfMemory, "need %d bytes, %d left", need, img.Room())
	}
	if err := img.AlignHere(); err != nil {
		return 0, err
	}
	a := img.Here
	for _, v := range cells {
		if err := img.Comma(v); err != nil {
			return 0, err
		}
	}
	return a, nil
}

func (c *Compiler) patch(addr, target int) error {
	return c.Image.Store(addr, mem.Cell(target))
}

// Label returns the address of the next instruction to be compiled.
func (c *Compiler) Label() int {
	return c.Image.Align(c.Image.Here)
}

// Op compiles a primitive opcode. Opcodes that take an operand must be
// compiled with the dedicated methods.
func (c *Compiler) Op(op vm.Opcode) error {
	if !op.Valid() || op.HasOperand() {
		return errors.Wrap(ErrOperand, op.String())
	}
	_, err := c.emit(vm.Instruction(op))
	return err
}

// Ops compiles a sequence of primitive opcodes.
func (c *Compiler) Ops(ops ...vm.Opcode) error {
	for _, op := range ops {
		if err := c.Op(op); err != nil {
			return err
		}
	}
	return nil
}

// Literal compiles code that pushes v on the data stack.
func (c *Compiler) Literal(v mem.Cell) error {
	_, err := c.emit(vm.Instruction(vm.OpLit), v)
	return err
}

// Call compiles a call to the code at xt.
func (c *Compiler) Call(xt int) error {
	_, err := c.emit(vm.Instruction(vm.OpCall), mem.Cell(xt))
	return err
}

func (c *Compiler) str(op vm.Opcode, s string) error {
	if len(s) > 255 {
		return errors.Wrapf(ErrStringTooLong, "%d bytes", len(s))
	}
	img := c.Image
	start := img.Align(img.Here)
	need := img.Align(start+img.Width()+1+len(s)) - img.Here
	if need > img.Room() {
		return errors.Wrapf(mem.ErrOutOfMemory, "string: need %d bytes, %d left", need, img.Room())
	}
	if _, err := c.emit(vm.Instruction(op)); err != nil {
		return err
	}
	if err := img.CComma(byte(len(s))); err != nil {
		return err
	}
	for _, b := range []byte(s) {
		if err := img.CComma(b); err != nil {
			return err
		}
	}
	return img.AlignHere()
}

// String compiles code that prints s.
func (c *Compiler) String(s string) error { return c.str(vm.OpDotQuote, s) }

// StringLiteral compiles code that pushes the address of the counted string s.
func (c *Compiler) StringLiteral(s string) error { return c.str(vm.OpStrQuote, s) }

// inline returns the opcode of the primitive word whose body is at xt. A
// primitive body is a single opcode without operand followed by exit.
func (c *Compiler) inline(xt int) (vm.Opcode, bool) {
	w := c.Image.Width()
	c0, err := c.Image.Fetch(xt)
	if err != nil {
		return 0, false
	}
	c1, err := c.Image.Fetch(xt + w)
	if err != nil || c1 != vm.Instruction(vm.OpExit) {
		return 0, false
	}
	op, imm := vm.Decode(c0)
	if !op.Valid() || imm || op.HasOperand() {
		return 0, false
	}
	return op, true
}

// Reference compiles a reference to the word at nfa: primitives are inlined,
// other words are called.
func (c *Compiler) Reference(nfa int) error {
	xt := dict.BodyOf(c.Image, nfa)
	if op, ok := c.inline(xt); ok {
		return c.Op(op)
	}
	return c.Call(xt)
}

// Word compiles a reference to the named word.
func (c *Compiler) Word(name string) error {
	nfa, ok := dict.Find(c.Image, name)
	if !ok {
		return errors.Wrap(ErrWordNotFound, name)
	}
	return c.Reference(nfa)
}

// Words compiles references to the named words, in order.
func (c *Compiler) Words(names ...string) error {
	for _, n := range names {
		if err := c.Word(n); err != nil {
			return err
		}
	}
	return nil
}

// Tick returns the execution token (body address) of the named word.
func (c *Compiler) Tick(name string) (int, error) {
	nfa, ok := dict.Find(c.Image, name)
	if !ok {
		return 0, errors.Wrap(ErrWordNotFound, name)
	}
	return dict.BodyOf(c.Image, nfa), nil
}

func (c *Compiler) begin(name string, flags byte, colon bool) (int, error) {
	if c.nfa != 0 {
		return 0, errors.Wrapf(ErrCompiling, "%s: %s", name, dict.Name(c.Image, c.nfa))
	}
	m := c.Image.Mark()
	nfa, err := dict.CreateHeader(c.Image, name, flags, false)
	if err != nil {
		return 0, err
	}
	c.mark, c.nfa, c.colon = m, nfa, colon
	c.patches = c.patches[:0]
	return nfa, nil
}

func (c *Compiler) end() error {
	if _, err := c.emit(vm.Instruction(vm.OpExit)); err != nil {
		return err
	}
	if err := dict.ClearFlags(c.Image, c.nfa, dict.Hidden); err != nil {
		return err
	}
	c.log.Debugf("%s defined at 0x%04x", dict.Name(c.Image, c.nfa), dict.BodyOf(c.Image, c.nfa))
	c.nfa, c.colon = 0, false
	return nil
}

// BeginPrimitive starts the definition of a primitive word. Its body must be
// a single opcode compiled with Op before calling EndPrimitive.
func (c *Compiler) BeginPrimitive(name string) (int, error) {
	return c.begin(name, 0, false)
}

// EndPrimitive completes the primitive word definition started with
// BeginPrimitive.
func (c *Compiler) EndPrimitive() error {
	if c.nfa == 0 || c.colon {
		return errors.Wrap(ErrNotCompiling, "end of primitive")
	}
	return c.end()
}

// Primitive defines a primitive word executing op.
func (c *Compiler) Primitive(name string, op vm.Opcode) (int, error) {
	if !op.Valid() || op.HasOperand() {
		return 0, errors.Wrap(ErrOperand, op.String())
	}
	nfa, err := c.BeginPrimitive(name)
	if err != nil {
		return 0, err
	}
	if err = c.Op(op); err == nil {
		err = c.EndPrimitive()
	}
	if err != nil {
		c.Abort()
		return 0, err
	}
	return nfa, nil
}

// BeginColon starts a colon definition. The new word stays hidden until
// EndColon is called so that a definition can refer to a previous word with
// the same name.
func (c *Compiler) BeginColon(name string) (int, error) {
	return c.begin(name, dict.Hidden, true)
}

// EndColon compiles exit and reveals the word being defined. It fails with
// ErrUnbalanced if control structures are left open, in which case the
// definition is discarded.
func (c *Compiler) EndColon() error {
	if !c.colon {
		return errors.Wrap(ErrNotCompiling, ";")
	}
	if n := len(c.patches); n > 0 {
		return c.unbalanced(errors.Wrapf(ErrUnbalanced, "unresolved %v", c.patches[n-1].tag))
	}
	return c.end()
}

// Colon defines a colon word compiling references to the given words.
func (c *Compiler) Colon(name string, words ...string) (int, error) {
	nfa, err := c.BeginColon(name)
	if err != nil {
		return 0, err
	}
	if err = c.Words(words...); err == nil {
		err = c.EndColon()
	}
	if err != nil {
		c.Abort()
		return 0, err
	}
	return nfa, nil
}

// Abort discards the definition in progress, if any.
func (c *Compiler) Abort() {
	if c.nfa == 0 {
		return
	}
	c.log.Debugf("%s discarded", dict.Name(c.Image, c.nfa))
	c.Image.Rollback(c.mark)
	c.nfa, c.colon = 0, false
	c.patches = c.patches[:0]
}

// Recurse compiles a call to the word being defined.
func (c *Compiler) Recurse() error {
	if !c.colon {
		return errors.Wrap(ErrNotCompiling, "RECURSE")
	}
	return c.Call(dict.BodyOf(c.Image, c.nfa))
}

// header checks that nfa is the name field of a dictionary entry.
func (c *Compiler) header(nfa int) error {
	found := false
	dict.Walk(c.Image, func(a int) bool {
		found = a == nfa
		return !found && a > nfa
	})
	if !found {
		return errors.Wrapf(ErrWordNotFound, "no header at 0x%04x", nfa)
	}
	return nil
}

// MarkImmediate flags the word at nfa as immediate. Any word in the
// dictionary can be flagged, IMMEDIATE passes the latest one.
func (c *Compiler) MarkImmediate(nfa int) error {
	if err := c.header(nfa); err != nil {
		return err
	}
	return dict.SetFlags(c.Image, nfa, dict.Immediate)
}

// MarkCompileOnly flags the word at nfa as compile only.
func (c *Compiler) MarkCompileOnly(nfa int) error {
	if err := c.header(nfa); err != nil {
		return err
	}
	return dict.SetFlags(c.Image, nfa, dict.CompileOnly)
}

// define runs fn as a complete definition, rolling back the image on error.
func (c *Compiler) define(name string, fn func() error) (nfa int, err error) {
	if c.nfa != 0 {
		return 0, errors.Wrapf(ErrCompiling, "%s: %s", name, dict.Name(c.Image, c.nfa))
	}
	m := c.Image.Mark()
	if nfa, err = dict.CreateHeader(c.Image, name, 0, false); err == nil {
		err = fn()
	}
	if err != nil {
		c.Image.Rollback(m)
		return 0, err
	}
	return nfa, nil
}

// Buffer defines a word that pushes the address of n bytes reserved in data
// space.
func (c *Compiler) Buffer(name string, n int) (int, error) {
	return c.define(name, func() error {
		a, err := c.Image.ReserveData(c.Image.Align(n))
		if err != nil {
			return err
		}
		_, err = c.emit(vm.Instruction(vm.OpLit), mem.Cell(a), vm.Instruction(vm.OpExit))
		return err
	})
}

// Variable defines a word that pushes the address of a cell in data space.
func (c *Compiler) Variable(name string) (int, error) {
	return c.Buffer(name, c.Image.Width())
}

// Constant defines a word that pushes the given values, in order. Double
// cell constants pass the low cell first.
func (c *Compiler) Constant(name string, vs ...mem.Cell) (int, error) {
	return c.define(name, func() error {
		code := make([]mem.Cell, 0, 2*len(vs)+1)
		for _, v := range vs {
			code = append(code, vm.Instruction(vm.OpLit), v)
		}
		_, err := c.emit(append(code, vm.Instruction(vm.OpExit))...)
		return err
	})
}

// Create defines a word that pushes the address of its data field: the
// program space right after its body, filled with , and ALLOT. The body is
// four cells long:
//
//	lit <data field> exit nop
//
// Does replaces the last two cells with a branch.
func (c *Compiler) Create(name string) (int, error) {
	return c.define(name, func() error {
		pfa := c.Label() + 4*c.Image.Width()
		_, err := c.emit(vm.Instruction(vm.OpLit), mem.Cell(pfa), vm.Instruction(vm.OpExit), vm.Instruction(vm.OpNop))
		return err
	})
}

// Does patches the word at nfa, defined with Create, to jump to the code at
// target once it has pushed its data field address.
func (c *Compiler) Does(nfa, target int) error {
	img := c.Image
	if err := c.header(nfa); err != nil {
		return err
	}
	if target < 0 || target >= img.Split() {
		return errors.Errorf("DOES> target 0x%04x out of program space", target)
	}
	w := img.Width()
	body := dict.BodyOf(img, nfa)
	var code [3]mem.Cell
	for n := range code {
		v, err := img.Fetch(body + n*w)
		if err != nil {
			return errors.Wrap(ErrNotCreated, dict.Name(img, nfa))
		}
		code[n] = v
	}
	if code[0] != vm.Instruction(vm.OpLit) || img.Addr(code[1]) != body+4*w ||
		code[2] != vm.Instruction(vm.OpExit) && code[2] != vm.Instruction(vm.OpBranch) {
		return errors.Wrap(ErrNotCreated, dict.Name(img, nfa))
	}
	if err := img.Store(body+2*w, vm.Instruction(vm.OpBranch)); err != nil {
		return err
	}
	c.log.Debugf("%s does 0x%04x", dict.Name(img, nfa), target)
	return img.Store(body+3*w, mem.Cell(target))
}

// Forget removes the named word and all words defined after it.
func (c *Compiler) Forget(name string) error {
	if c.nfa != 0 {
		return errors.Wrap(ErrCompiling, "FORGET")
	}
	nfa, ok := dict.Find(c.Image, name)
	if !ok {
		return errors.Wrap(ErrWordNotFound, name)
	}
	c.Image.Rollback(mem.Mark{
		Here:     dict.HeaderOf(c.Image, nfa),
		DataHere: c.Image.DataHere,
		Latest:   dict.Link(c.Image, nfa),
	})
	return nil
}

// SetEntry points the boot vector at xt.
func (c *Compiler) SetEntry(xt int) error {
	img := c.Image
	if err := img.Store(0, vm.Instruction(vm.OpBranch)); err != nil {
		return err
	}
	if err := img.Store(img.Width(), mem.Cell(xt)); err != nil {
		return err
	}
	img.Entry = xt
	return nil
}
