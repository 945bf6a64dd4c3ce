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
	"strings"

	"github.com/db47h/eforth1/dict"
	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
)

// Host functions used by the kernel to call back into the interpreter while
// threaded code runs. Embedders can bind numbers below HostReserved.
const (
	hostCreate    = 255 - iota // ( -- ) CREATE; kernel.fth uses 255
	hostDoes                   // ( a -- ) latest word runs the code at a
	hostDirective              // ( a -- ) run the directive named by the counted string at a
	hostCompile                // ( nfa -- ) compile a reference to the word at nfa

	// HostReserved is the lowest host function number used by the
	// interpreter.
	HostReserved = hostCompile
)

func (it *Interp) bindHost() error {
	return it.VM.SetOptions(
		vm.BindHost(hostCreate, func(*vm.Instance) error { return it.create() }),
		vm.BindHost(hostDoes, it.does),
		vm.BindHost(hostDirective, it.runDirective),
		vm.BindHost(hostCompile, it.compileRef),
	)
}

func (it *Interp) create() error {
	n, err := it.name()
	if err != nil {
		return err
	}
	it.unique(n)
	_, err = it.Compiler.Create(n)
	return err
}

func (it *Interp) does(i *vm.Instance) error {
	a, err := i.Pop()
	if err != nil {
		return err
	}
	return it.Compiler.Does(it.img.Latest, it.img.Addr(a))
}

func (it *Interp) runDirective(i *vm.Instance) error {
	a, err := i.Pop()
	if err != nil {
		return err
	}
	b, err := StringCodec.Decode(it.img, it.img.Addr(a))
	if err != nil {
		return err
	}
	n := string(b)
	d, ok := directives[strings.ToUpper(n)]
	if !ok {
		return errors.Wrap(ErrUndefined, n)
	}
	if d.compileOnly && !it.Compiling() {
		return errors.Wrap(ErrCompileOnly, n)
	}
	return d.fn(it)
}

func (it *Interp) compileRef(i *vm.Instance) error {
	nfa, err := i.Pop()
	if err != nil {
		return err
	}
	if !it.Compiling() {
		return errors.Wrap(ErrCompileOnly, dict.Name(it.img, it.img.Addr(nfa)))
	}
	return it.Compiler.Reference(it.img.Addr(nfa))
}

// compileHost compiles a call to host function n with argument v.
func (it *Interp) compileHost(v mem.Cell, n int) error {
	c := it.Compiler
	if err := c.Literal(v); err != nil {
		return err
	}
	if err := c.Literal(mem.Cell(n)); err != nil {
		return err
	}
	return c.Op(vm.OpHost)
}

// postpone compiles the compilation semantics of the named word into the
// current definition. Directives and immediate words run when the word being
// defined runs. Other words get compiled by it. When always is true,
// dictionary words are compiled directly, the [COMPILE] behavior.
func (it *Interp) postpone(always bool) error {
	n, err := it.name()
	if err != nil {
		return err
	}
	if _, ok := directives[strings.ToUpper(n)]; ok {
		if err = it.Compiler.StringLiteral(n); err != nil {
			return err
		}
		if err = it.Compiler.Literal(hostDirective); err != nil {
			return err
		}
		return it.Compiler.Op(vm.OpHost)
	}
	nfa, ok := dict.Find(it.img, n)
	if !ok {
		return errors.Wrap(ErrUndefined, n)
	}
	if always || dict.Flags(it.img, nfa)&dict.Immediate != 0 {
		return it.Compiler.Reference(nfa)
	}
	return it.compileHost(mem.Cell(nfa), hostCompile)
}

// doesCode compiles the run time part of DOES>. The code that follows
// becomes the behavior of the latest word when the defining word runs.
func (it *Interp) doesCode() error {
	// lit code lit hostDoes host exit
	code := it.Compiler.Label() + 6*it.img.Width()
	if err := it.compileHost(mem.Cell(code), hostDoes); err != nil {
		return err
	}
	return it.Compiler.Op(vm.OpExit)
}
