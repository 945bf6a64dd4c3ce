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

	"github.com/db47h/eforth1/mem"
)

// Trap describes the reason of a VM fault.
type Trap int

// List of VM traps.
const (
	StackUnderflow Trap = iota
	StackOverflow
	RStackUnderflow
	RStackOverflow
	InvalidOpcode
	IllegalAddress
	ZeroDivision
	IOError
	StepLimit
	OutOfMemory
	HostError
	Aborted
)

var strTrap = [...]string{
	StackUnderflow:  "stack underflow",
	StackOverflow:   "stack overflow",
	RStackUnderflow: "return stack underflow",
	RStackOverflow:  "return stack overflow",
	InvalidOpcode:   "invalid opcode",
	IllegalAddress:  "illegal address",
	ZeroDivision:    "division by zero",
	IOError:         "I/O error",
	StepLimit:       "step limit reached",
	OutOfMemory:     "out of memory",
	HostError:       "host function failed",
	Aborted:         "aborted",
}

func (t Trap) Error() string {
	if t >= 0 && int(t) < len(strTrap) {
		return strTrap[t]
	}
	return fmt.Sprintf("trap %d", int(t))
}

// trap is the panic value used to unwind the interpreter loop.
type trap struct {
	t    Trap
	addr int
	err  error
}

// Error describes the cause and the context of a VM fault.
type Error struct {
	Trap   Trap       // nature of the fault
	Err    error      // underlying error for IOError, OutOfMemory and HostError
	IP     int        // address of the faulting instruction
	Instr  mem.Cell   // faulting instruction cell
	Op     Opcode     // decoded opcode
	Addr   int        // faulting address for IllegalAddress
	Word   string     // name of the word containing IP, if any
	Stack  []mem.Cell // data stack, bottom first
	RStack []mem.Cell // return stack, bottom first
}

func (e *Error) Error() string {
	msg := e.Trap.Error()
	switch e.Trap {
	case InvalidOpcode:
		msg += fmt.Sprintf(" 0x%02x", uint16(e.Instr))
	case IllegalAddress:
		msg += fmt.Sprintf(" 0x%04x", e.Addr)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	msg += fmt.Sprintf(" @ip=0x%04x", e.IP)
	if e.Trap != InvalidOpcode && e.Trap != StepLimit {
		msg += " (" + e.Op.String()
		if e.Word != "" {
			msg += " in " + e.Word
		}
		msg += ")"
	} else if e.Word != "" {
		msg += " in " + e.Word
	}
	return msg
}

// Cause returns the Trap so that errors.Cause can be used to classify faults.
func (e *Error) Cause() error { return e.Trap }
