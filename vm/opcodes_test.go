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

package vm_test

import (
	"testing"

	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
)

func TestMnemonics(t *testing.T) {
	seen := make(map[string]vm.Opcode)
	for o := vm.OpNop; o.Valid(); o++ {
		m := o.String()
		if m == "" || m == "???" {
			t.Errorf("opcode %d has no mnemonic", o)
			continue
		}
		if p, ok := seen[m]; ok {
			t.Errorf("mnemonic %q used by opcodes %d and %d", m, p, o)
		}
		seen[m] = o
		if l, ok := vm.Lookup(m); !ok || l != o {
			t.Errorf("Lookup(%q) = %d, %v, expected %d", m, l, ok, o)
		}
	}
	if _, ok := vm.Lookup("frobnicate"); ok {
		t.Error("unknown mnemonic found")
	}
	if vm.OpInvalid.Valid() || vm.OpInvalid.String() != "???" {
		t.Error("OpInvalid is valid")
	}
}

func TestEncodeDecode(t *testing.T) {
	for o := vm.OpNop; o.Valid(); o++ {
		for _, imm := range []bool{false, true} {
			c := vm.Encode(o, imm)
			d, dimm := vm.Decode(c)
			if d != o || dimm != imm {
				t.Errorf("Decode(Encode(%v, %v)) = %v, %v", o, imm, d, dimm)
			}
		}
	}
	for _, c := range []mem.Cell{0x7e, 0xfe, 0x100, -1} {
		if o, _ := vm.Decode(c); o != vm.OpInvalid {
			t.Errorf("Decode(0x%x) = %v, expected invalid", c, o)
		}
	}
	if c := vm.Instruction(vm.OpCall); c != mem.Cell(vm.OpCall)|vm.ImmFlag {
		t.Errorf("call instruction 0x%x", c)
	}
	if c := vm.Instruction(vm.OpDup); c != mem.Cell(vm.OpDup) {
		t.Errorf("dup instruction 0x%x", c)
	}
}
