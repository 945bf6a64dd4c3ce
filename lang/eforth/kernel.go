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
	_ "embed"
	"strings"

	"github.com/db47h/eforth1/asm"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
)

//go:embed kernel.fth
var kernel string

// primitive words that are a second name for an opcode.
var aliases = []struct {
	name string
	op   vm.Opcode
}{
	{"I", vm.OpRFetch},
}

// Bootstrap builds the kernel in the compiler's image: one primitive word
// for each opcode that takes no inline operand, named after its mnemonic,
// followed by the high level words compiled from the kernel source.
func Bootstrap(c *asm.Compiler) error {
	for op := vm.Opcode(0); op.Valid(); op++ {
		if op.HasOperand() {
			continue
		}
		if _, err := c.Primitive(op.String(), op); err != nil {
			return errors.Wrapf(err, "primitive %s", op)
		}
	}
	for _, a := range aliases {
		if _, err := c.Primitive(a.name, a.op); err != nil {
			return errors.Wrapf(err, "primitive %s", a.name)
		}
	}
	i, err := vm.New(c.Image)
	if err != nil {
		return err
	}
	it, err := newInterp(c, i)
	if err != nil {
		return err
	}
	if err = it.EvalReader("kernel", strings.NewReader(kernel)); err != nil {
		return err
	}
	it.log.Infof("kernel bootstrapped: %d bytes of code, %d bytes of data", c.Image.Here, c.Image.DataHere-c.Image.Split())
	return nil
}
