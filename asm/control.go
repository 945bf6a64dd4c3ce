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
	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
)

// expect returns the top of the control flow stack if its tag is one of
// accept. On mismatch, the definition in progress is discarded.
func (c *Compiler) expect(word string, accept ...tag) (patch, error) {
	n := len(c.patches)
	if n == 0 {
		return patch{}, c.unbalanced(errors.Wrapf(ErrUnbalanced, "%s without %v", word, accept[0]))
	}
	p := c.patches[n-1]
	for _, t := range accept {
		if p.tag == t {
			return p, nil
		}
	}
	return patch{}, c.unbalanced(errors.Wrapf(ErrUnbalanced, "%s after %v", word, p.tag))
}

// unbalanced aborts the definition in progress and returns err.
func (c *Compiler) unbalanced(err error) error {
	c.log.Debugf("%v", err)
	c.Abort()
	return err
}

func (c *Compiler) push(addr int, t tag) {
	c.patches = append(c.patches, patch{addr, t})
}

func (c *Compiler) drop(n int) {
	c.patches = c.patches[:len(c.patches)-n]
}

// forward compiles op with a placeholder operand and returns the address of
// the operand.
func (c *Compiler) forward(op vm.Opcode) (int, error) {
	a, err := c.emit(vm.Instruction(op), 0)
	return a + c.Image.Width(), err
}

// resolve patches the forward reference at addr to the current position.
func (c *Compiler) resolve(addr int) error {
	if err := c.Image.AlignHere(); err != nil {
		return err
	}
	return c.patch(addr, c.Image.Here)
}

// Begin marks the start of a BEGIN loop.
func (c *Compiler) Begin() error {
	c.push(c.Label(), tagBegin)
	return nil
}

// Again closes a BEGIN loop with an unconditional branch back.
func (c *Compiler) Again() error {
	p, err := c.expect("AGAIN", tagBegin)
	if err != nil {
		return err
	}
	if _, err = c.emit(vm.Instruction(vm.OpBranch), mem.Cell(p.addr)); err != nil {
		return err
	}
	c.drop(1)
	return nil
}

// Until closes a BEGIN loop with a branch back taken while the top of the
// data stack is 0.
func (c *Compiler) Until() error {
	p, err := c.expect("UNTIL", tagBegin)
	if err != nil {
		return err
	}
	if _, err = c.emit(vm.Instruction(vm.OpQBranch), mem.Cell(p.addr)); err != nil {
		return err
	}
	c.drop(1)
	return nil
}

// While compiles a conditional exit out of a BEGIN or FOR loop. The exit is
// resolved by REPEAT or THEN.
func (c *Compiler) While() error {
	p, err := c.expect("WHILE", tagBegin, tagFor)
	if err != nil {
		return err
	}
	a, err := c.forward(vm.OpQBranch)
	if err != nil {
		return err
	}
	c.drop(1)
	c.push(a, tagWhile)
	c.push(p.addr, p.tag)
	return nil
}

// Repeat closes a BEGIN ... WHILE loop.
func (c *Compiler) Repeat() error {
	p, err := c.expect("REPEAT", tagBegin)
	if err != nil {
		return err
	}
	n := len(c.patches)
	if n < 2 || c.patches[n-2].tag != tagWhile {
		return c.unbalanced(errors.Wrap(ErrUnbalanced, "REPEAT without WHILE"))
	}
	w := c.patches[n-2]
	if _, err = c.emit(vm.Instruction(vm.OpBranch), mem.Cell(p.addr)); err != nil {
		return err
	}
	if err = c.resolve(w.addr); err != nil {
		return err
	}
	c.drop(2)
	return nil
}

// If compiles a conditional forward branch taken when the top of the data
// stack is 0.
func (c *Compiler) If() error {
	a, err := c.forward(vm.OpQBranch)
	if err != nil {
		return err
	}
	c.push(a, tagIf)
	return nil
}

// Else resolves the pending IF or WHILE and opens the alternate branch.
func (c *Compiler) Else() error {
	p, err := c.expect("ELSE", tagIf, tagWhile)
	if err != nil {
		return err
	}
	a, err := c.forward(vm.OpBranch)
	if err != nil {
		return err
	}
	if err = c.resolve(p.addr); err != nil {
		return err
	}
	c.drop(1)
	c.push(a, tagElse)
	return nil
}

// Ahead compiles an unconditional forward branch, resolved by THEN.
func (c *Compiler) Ahead() error {
	a, err := c.forward(vm.OpBranch)
	if err != nil {
		return err
	}
	c.push(a, tagAhead)
	return nil
}

// Then resolves the pending IF, ELSE, WHILE, AHEAD or AFT.
func (c *Compiler) Then() error {
	p, err := c.expect("THEN", tagIf, tagElse, tagWhile, tagAhead, tagAft)
	if err != nil {
		return err
	}
	if err = c.resolve(p.addr); err != nil {
		return err
	}
	c.drop(1)
	return nil
}

// For starts a counted loop. The count is moved to the return stack.
func (c *Compiler) For() error {
	if _, err := c.emit(vm.Instruction(vm.OpToR)); err != nil {
		return err
	}
	c.push(c.Image.Here, tagFor)
	return nil
}

// Next closes a FOR loop.
func (c *Compiler) Next() error {
	p, err := c.expect("NEXT", tagFor)
	if err != nil {
		return err
	}
	if _, err = c.emit(vm.Instruction(vm.OpNext), mem.Cell(p.addr)); err != nil {
		return err
	}
	c.drop(1)
	return nil
}

// Aft skips the rest of a FOR loop body up to THEN on the first pass. NEXT
// then loops back to the code following AFT.
func (c *Compiler) Aft() error {
	if _, err := c.expect("AFT", tagFor); err != nil {
		return err
	}
	a, err := c.forward(vm.OpBranch)
	if err != nil {
		return err
	}
	c.drop(1)
	c.push(c.Image.Here, tagFor)
	c.push(a, tagAft)
	return nil
}
