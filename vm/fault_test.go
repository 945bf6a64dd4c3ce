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
	"bytes"
	"strings"
	"testing"

	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
)

func TestFaults(t *testing.T) {
	tests := []struct {
		name  string
		code  C
		stack C
		opts  []vm.Option
		trap  vm.Trap
		ip    int
		op    vm.Opcode
	}{
		{"drop", C{op(vm.OpDrop)}, nil, nil, vm.StackUnderflow, codeBase, vm.OpDrop},
		{"add", C{lit, 1, op(vm.OpAdd)}, nil, nil, vm.StackUnderflow, int(at(2)), vm.OpAdd},
		{"invalid", C{0x7e}, nil, nil, vm.InvalidOpcode, codeBase, vm.OpInvalid},
		{"litNoImm", C{mem.Cell(vm.OpLit), 1}, nil, nil, vm.InvalidOpcode, codeBase, vm.OpLit},
		{"dupImm", C{vm.Encode(vm.OpDup, true)}, C{1}, nil, vm.InvalidOpcode, codeBase, vm.OpDup},
		{"r>", C{op(vm.OpRFrom)}, nil, nil, vm.RStackUnderflow, codeBase, vm.OpRFrom},
		{"next", C{donext, at(0)}, nil, nil, vm.RStackUnderflow, codeBase, vm.OpNext},
		{"div0", C{op(vm.OpDiv)}, C{1, 0}, nil, vm.ZeroDivision, codeBase, vm.OpDiv},
		{"um/mod0", C{op(vm.OpUMSlashMod)}, C{1, 0, 0}, nil, vm.ZeroDivision, codeBase, vm.OpUMSlashMod},
		{"*/0", C{op(vm.OpStarSlash)}, C{1, 2, 0}, nil, vm.ZeroDivision, codeBase, vm.OpStarSlash},
		{"d+", C{op(vm.OpDPlus)}, C{1, 2, 3}, nil, vm.StackUnderflow, codeBase, vm.OpDPlus},
		{"abort", C{lit, 1, op(vm.OpAbort)}, nil, nil, vm.Aborted, int(at(2)), vm.OpAbort},
		{"fetch", C{op(vm.OpFetch)}, C{-2}, nil, vm.IllegalAddress, codeBase, vm.OpFetch},
		{"overflow", C{lit, 1, lit, 2, lit, 3}, nil, []vm.Option{vm.DataDepth(2)}, vm.StackOverflow, int(at(4)), vm.OpLit},
		{"roverflow", C{call, at(0)}, nil, []vm.Option{vm.ReturnDepth(8)}, vm.RStackOverflow, codeBase, vm.OpCall},
		{"host", C{lit, 3, op(vm.OpHost)}, nil, nil, vm.HostError, int(at(2)), vm.OpHost},
		{"steps", C{branch, at(0)}, nil, []vm.Option{vm.MaxSteps(100)}, vm.StepLimit, codeBase, vm.OpBranch},
	}
	for _, test := range tests {
		code := append(append(C(nil), test.code...), exit)
		i := setup(code, test.stack, nil, test.opts...)
		err := i.Execute(codeBase)
		if err == nil {
			t.Errorf("%s: expected error", test.name)
			continue
		}
		if errors.Cause(err) != test.trap {
			t.Errorf("%s: expected %v, got %v", test.name, test.trap, err)
			continue
		}
		e, ok := err.(*vm.Error)
		if !ok {
			t.Errorf("%s: %T is not an *vm.Error", test.name, err)
			continue
		}
		if e.IP != test.ip || i.IP != test.ip {
			t.Errorf("%s: fault reported at 0x%x, VM IP 0x%x, expected 0x%x", test.name, e.IP, i.IP, test.ip)
		}
		if e.Op != test.op {
			t.Errorf("%s: bad opcode %v, expected %v", test.name, e.Op, test.op)
		}
		if !strings.Contains(e.Error(), "@ip=0x") {
			t.Errorf("%s: no address in message %q", test.name, e.Error())
		}
	}
}

func TestFaultAddress(t *testing.T) {
	i := setup(C{op(vm.OpFetch), exit}, C{-2}, nil)
	err := i.Execute(codeBase)
	e, ok := err.(*vm.Error)
	if !ok {
		t.Fatalf("unexpected error %v", err)
	}
	if e.Addr != 0xfffe {
		t.Errorf("address 0x%x, expected 0xfffe", e.Addr)
	}
	if len(e.Stack) != 1 || e.Stack[0] != -2 {
		t.Errorf("stack %v", e.Stack)
	}
}

func TestStep(t *testing.T) {
	// an infinite loop never returns but is safe to single step
	i := setup(C{lit, 1, op(vm.OpDrop), branch, at(0)}, nil, nil)
	i.Start(codeBase)
	for n := 0; n < 1000; n++ {
		if err := i.Step(); err != nil {
			t.Fatal(err)
		}
		if i.IP < codeBase || i.IP >= int(at(5)) {
			t.Fatalf("IP 0x%x escaped the loop", i.IP)
		}
		if i.Done() {
			t.Fatal("loop exited")
		}
	}
	if i.Depth() > 1 {
		t.Errorf("stack leak: depth %d", i.Depth())
	}
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	code := C{
		op(vm.OpQRx), op(vm.OpDrop), op(vm.OpDup), op(vm.OpTxStore), op(vm.OpQRx),
		lit, 'o', op(vm.OpTxStore),
		exit,
	}
	i := setup(code, nil, nil, vm.Input(strings.NewReader("k")), vm.Output(&out))
	check(t, "console", i, 0, C{'k', 0}, nil)
	if s := out.String(); s != "ko" {
		t.Errorf("output %q", s)
	}
}

func TestInputStack(t *testing.T) {
	code := C{op(vm.OpQRx), op(vm.OpDrop), op(vm.OpQRx), op(vm.OpDrop), exit}
	i := setup(code, nil, nil, vm.Input(strings.NewReader("b")), vm.Input(strings.NewReader("a")))
	check(t, "input", i, 0, C{'a', 'b'}, nil)
}

func TestStrings(t *testing.T) {
	var out bytes.Buffer
	img := newImage(nil)
	b := img.Bytes()
	// ." hi" $" abc" exit
	img.Store(codeBase, vm.Instruction(vm.OpDotQuote))
	copy(b[codeBase+2:], "\x02hi")
	img.Store(codeBase+6, vm.Instruction(vm.OpStrQuote))
	copy(b[codeBase+8:], "\x03abc")
	img.Store(codeBase+12, exit)
	i, _ := vm.New(img, vm.Output(&out))
	if err := i.Execute(codeBase); err != nil {
		t.Fatal(err)
	}
	if s := out.String(); s != "hi" {
		t.Errorf("output %q", s)
	}
	if d := i.Data(); len(d) != 1 || d[0] != codeBase+8 {
		t.Errorf("stack %v", d)
	}
	if i.IP != codeBase+12 {
		t.Errorf("IP 0x%x", i.IP)
	}
}

func TestHost(t *testing.T) {
	double := func(i *vm.Instance) error {
		v, err := i.Pop()
		if err != nil {
			return err
		}
		return i.Push(v * 2)
	}
	i := setup(C{lit, 21, lit, 1, op(vm.OpHost), exit}, nil, nil, vm.BindHost(1, double))
	check(t, "host", i, 0, C{42}, nil)

	i = setup(C{lit, 1, op(vm.OpHost), exit}, nil, nil, vm.BindHost(1, double))
	if err := i.Execute(codeBase); errors.Cause(err) != vm.StackUnderflow {
		t.Errorf("expected stack underflow, got %v", err)
	}
	if _, err := vm.New(newImage(nil), vm.BindHost(hostOutOfRange, double)); err == nil {
		t.Error("expected error")
	}
}

const hostOutOfRange = 1000

func TestMemoryWords(t *testing.T) {
	i := setup(C{op(vm.OpHere), lit, 0x1234, op(vm.OpComma), lit, 1, op(vm.OpCComma), lit, 1, op(vm.OpAllot), op(vm.OpHere), exit}, nil, nil)
	start := i.Image.Here
	check(t, "memory", i, 0, C{mem.Cell(start), mem.Cell(start + 4)}, nil)
	if v, _ := i.Image.Fetch(start); v != 0x1234 {
		t.Errorf("compiled 0x%x", v)
	}
	i = setup(C{lit, 2000, op(vm.OpAllot), exit}, nil, nil)
	if err := i.Execute(codeBase); errors.Cause(err) != vm.OutOfMemory {
		t.Errorf("expected out of memory, got %v", err)
	}
}

func TestReset(t *testing.T) {
	i := setup(C{op(vm.OpBye)}, C{1, 2}, C{3})
	i.Execute(codeBase)
	i.Reset()
	if i.Depth() != 0 || i.RDepth() != 0 || i.Halted() {
		t.Errorf("reset failed: %d %d %v", i.Depth(), i.RDepth(), i.Halted())
	}
}
