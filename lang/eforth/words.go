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
	"github.com/db47h/eforth1/asm"
	"github.com/db47h/eforth1/dict"
	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
)

// directive is a word implemented by the interpreter itself. Directives take
// precedence over dictionary words.
type directive struct {
	fn          func(*Interp) error
	compileOnly bool
}

var directives map[string]directive

func init() {
	compiler := func(fn func(*asm.Compiler) error) directive {
		return directive{func(it *Interp) error { return fn(it.Compiler) }, true}
	}
	directives = map[string]directive{
		":":            {(*Interp).colon, false},
		";":            {(*Interp).semicolon, true},
		"IMMEDIATE":    {func(it *Interp) error { return it.Compiler.MarkImmediate(it.img.Latest) }, false},
		"COMPILE-ONLY": {func(it *Interp) error { return it.Compiler.MarkCompileOnly(it.img.Latest) }, false},
		"VARIABLE":     {(*Interp).variable, false},
		"CONSTANT":     {(*Interp).constant, false},
		"BUFFER:":      {(*Interp).buffer, false},
		"2VARIABLE":    {(*Interp).twoVariable, false},
		"2CONSTANT":    {(*Interp).twoConstant, false},
		"DOES>":        {(*Interp).doesCode, true},
		"POSTPONE":     {func(it *Interp) error { return it.postpone(false) }, true},
		"[COMPILE]":    {func(it *Interp) error { return it.postpone(true) }, true},
		"ABORT\"":      {(*Interp).abortQuote, true},
		"(":            {func(it *Interp) error { it.parse(')'); return nil }, false},
		"\\":           {func(it *Interp) error { it.pos = len(it.src); return nil }, false},
		".(":           {(*Interp).dotParen, false},
		".\"":          {(*Interp).dotQuote, false},
		"$\"":          {(*Interp).strQuote, false},
		"IF":           compiler((*asm.Compiler).If),
		"ELSE":         compiler((*asm.Compiler).Else),
		"THEN":         compiler((*asm.Compiler).Then),
		"BEGIN":        compiler((*asm.Compiler).Begin),
		"AGAIN":        compiler((*asm.Compiler).Again),
		"UNTIL":        compiler((*asm.Compiler).Until),
		"WHILE":        compiler((*asm.Compiler).While),
		"REPEAT":       compiler((*asm.Compiler).Repeat),
		"FOR":          compiler((*asm.Compiler).For),
		"NEXT":         compiler((*asm.Compiler).Next),
		"AFT":          compiler((*asm.Compiler).Aft),
		"AHEAD":        compiler((*asm.Compiler).Ahead),
		"RECURSE":      compiler((*asm.Compiler).Recurse),
		"LITERAL":      {(*Interp).literal, true},
		"[":            {func(it *Interp) error { it.interpreting = true; return nil }, true},
		"]":            {(*Interp).rbracket, false},
		"'":            {(*Interp).tick, false},
		"[']":          {(*Interp).tick, true},
		"CHAR":         {(*Interp).char, false},
		"[CHAR]":       {(*Interp).char, true},
		"WORDS":        {(*Interp).words, false},
		"SEE":          {(*Interp).see, false},
		".S":           {func(it *Interp) error { return it.VM.DumpStacks(it.output()) }, false},
		"FORGET":       {(*Interp).forget, false},
		"DUMP":         {(*Interp).dump, false},
	}
}

// unique prints a warning when n is already defined.
func (it *Interp) unique(n string) {
	if nfa, ok := dict.Find(it.img, n); ok {
		it.log.Debugf("%s redefined", n)
		it.output().Printf(" %s reDef", dict.Name(it.img, nfa))
	}
}

func (it *Interp) colon() error {
	n, err := it.name()
	if err != nil {
		return err
	}
	it.unique(n)
	_, err = it.Compiler.BeginColon(n)
	it.interpreting = false
	return err
}

func (it *Interp) semicolon() error {
	if err := it.Compiler.EndColon(); err != nil {
		return err
	}
	it.interpreting = false
	return nil
}

func (it *Interp) rbracket() error {
	if !it.Compiler.Compiling() {
		return errors.Wrap(asm.ErrNotCompiling, "]")
	}
	it.interpreting = false
	return nil
}

func (it *Interp) variable() error {
	n, err := it.name()
	if err == nil {
		it.unique(n)
		_, err = it.Compiler.Variable(n)
	}
	return err
}

func (it *Interp) twoVariable() error {
	n, err := it.name()
	if err == nil {
		it.unique(n)
		_, err = it.Compiler.Buffer(n, 2*it.img.Width())
	}
	return err
}

func (it *Interp) constant() error {
	n, err := it.name()
	if err != nil {
		return err
	}
	v, err := it.VM.Pop()
	if err != nil {
		return err
	}
	it.unique(n)
	_, err = it.Compiler.Constant(n, v)
	return err
}

func (it *Interp) twoConstant() error {
	n, err := it.name()
	if err != nil {
		return err
	}
	if it.VM.Depth() < 2 {
		return vm.StackUnderflow
	}
	hi, _ := it.VM.Pop()
	lo, _ := it.VM.Pop()
	it.unique(n)
	_, err = it.Compiler.Constant(n, lo, hi)
	return err
}

func (it *Interp) buffer() error {
	n, err := it.name()
	if err != nil {
		return err
	}
	v, err := it.VM.Pop()
	if err != nil {
		return err
	}
	if v < 0 {
		return errors.Errorf("BUFFER: invalid size %d", v)
	}
	it.unique(n)
	_, err = it.Compiler.Buffer(n, int(v))
	return err
}

func (it *Interp) literal() error {
	v, err := it.VM.Pop()
	if err != nil {
		return err
	}
	return it.Compiler.Literal(v)
}

func (it *Interp) dotParen() error {
	ew := it.output()
	ew.Printf("%s", it.parse(')'))
	return ew.Err
}

func (it *Interp) dotQuote() error {
	s := it.parse('"')
	if it.Compiling() {
		return it.Compiler.String(s)
	}
	ew := it.output()
	ew.Printf("%s", s)
	return ew.Err
}

// abortQuote compiles code that prints a message and aborts if the top of
// the data stack is true.
func (it *Interp) abortQuote() error {
	s := it.parse('"')
	c := it.Compiler
	if err := c.If(); err != nil {
		return err
	}
	if err := c.String(s); err != nil {
		return err
	}
	if err := c.Op(vm.OpAbort); err != nil {
		return err
	}
	return c.Then()
}

// strQuote compiles a string literal. When interpreting, the string is copied
// to a transient buffer whose address is pushed on the data stack.
func (it *Interp) strQuote() error {
	s := it.parse('"')
	if it.Compiling() {
		return it.Compiler.StringLiteral(s)
	}
	a, ok := it.varAddr("(str)")
	if !ok {
		return errors.Wrap(ErrUndefined, "(str)")
	}
	if err := StringCodec.Encode(it.img, a, []byte(s)); err != nil {
		return err
	}
	return it.VM.Push(mem.Cell(a))
}

// literalOrPush compiles v as a literal when compiling or pushes it.
func (it *Interp) literalOrPush(v mem.Cell) error {
	if it.Compiling() {
		return it.Compiler.Literal(v)
	}
	return it.VM.Push(v)
}

func (it *Interp) tick() error {
	n, err := it.name()
	if err != nil {
		return err
	}
	xt, err := it.Compiler.Tick(n)
	if err != nil {
		return err
	}
	return it.literalOrPush(mem.Cell(xt))
}

func (it *Interp) char() error {
	n, err := it.name()
	if err != nil {
		return err
	}
	return it.literalOrPush(mem.Cell(n[0]))
}

func (it *Interp) find() (int, error) {
	n, err := it.name()
	if err != nil {
		return 0, err
	}
	nfa, ok := dict.Find(it.img, n)
	if !ok {
		return 0, errors.Wrap(ErrUndefined, n)
	}
	return nfa, nil
}

// words lists visible words, newest first.
func (it *Interp) words() error {
	ew := it.output()
	col := 0
	dict.Walk(it.img, func(nfa int) bool {
		if dict.Flags(it.img, nfa)&dict.Hidden != 0 {
			return true
		}
		n := dict.Name(it.img, nfa)
		if col > 0 && col+len(n) >= 64 {
			ew.Printf("\n")
			col = 0
		}
		if col > 0 {
			ew.Printf(" ")
			col++
		}
		ew.Printf("%s", n)
		col += len(n)
		return true
	})
	ew.Printf("\n")
	return ew.Err
}

func (it *Interp) see() error {
	nfa, err := it.find()
	if err != nil {
		return err
	}
	h := dict.HeaderOf(it.img, nfa)
	return vm.Dump(it.output(), it.img, h, dict.End(it.img, nfa)-h)
}

func (it *Interp) forget() error {
	n, err := it.name()
	if err != nil {
		return err
	}
	return it.Compiler.Forget(n)
}

// dump ( a u -- ) prints u bytes of memory from address a in hexadecimal.
func (it *Interp) dump() error {
	n, err := it.VM.Pop()
	if err != nil {
		return err
	}
	a, err := it.VM.Pop()
	if err != nil {
		return err
	}
	start, end := it.img.Addr(a), it.img.Addr(a)+int(n)
	if end > it.img.Size() {
		end = it.img.Size()
	}
	ew := it.output()
	b := it.img.Bytes()
	for l := start; l < end; l += 16 {
		ew.Printf("%04x ", l)
		e := l + 16
		if e > end {
			e = end
		}
		for k := l; k < e; k++ {
			ew.Printf(" %02x", b[k])
		}
		for k := e; k < l+16; k++ {
			ew.Printf("   ")
		}
		ew.Printf("  ")
		for k := l; k < e; k++ {
			c := b[k]
			if c < ' ' || c > '~' {
				c = '.'
			}
			ew.Printf("%c", c)
		}
		ew.Printf("\n")
	}
	return ew.Err
}
