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

// Package vm implements the eForth1 virtual machine: the inner interpreter
// that runs opcode encoded threaded code from a memory image.
//
// Each instruction takes one cell. Instructions followed by inline data have
// the immediate flag (0x80) set in their instruction cell. The operand is a
// cell for lit, call and branches, a counted string realigned to the next
// cell boundary for ." and $".
//
// Colon definitions reference primitive words by inlining their opcode and
// other colon words with call. A word returns with exit; when exit is
// executed at the return stack depth at which Execute was called, execution
// stops.
//
//	opcode	asm	arg	stack		description
//	------	---	---	-----		-----------------------------------------------------------
//	0	nop			-		no-op
//	1	exit			-		return from the current word
//	2	bye			-		halt the VM
//	3	abort			-		abort execution with an Aborted fault
//	4	?rx			-c t | f	read a byte from input, f if no more input
//	5	tx!			c-		write a byte to output
//	6	lit	✓		-n		push the next cell
//	7	call	✓		-		call the word at the address in the next cell
//	8	branch	✓		-		jump to the address in the next cell
//	9	?branch	✓		f-		jump to the address in the next cell if f is 0
//	10	next	✓		-		decrement the top of the return stack, jump if >0,
//						else drop it
//	11	execute			xt-		call the word at xt
//	12	."	✓		-		print the inline counted string
//	13	$"	✓		-a		push the address of the inline counted string
//	14	!			na-		store n at a
//	15	+!			na-		add n to the cell at a
//	16	@			a-n		fetch the cell at a
//	17	c!			ca-		store the byte c at a
//	18	c@			a-c		fetch the byte at a
//	19	r>			-n		move from return stack
//	20	r@			-n		copy from return stack
//	21	>r			n-		move to return stack
//
// Opcodes 22 and above are stack, arithmetic, logic and comparison
// primitives with the usual Forth semantics (see the Opcode constants).
// Flags are -1 for true and 0 for false. Division truncates toward zero.
// Double cell numbers are stored low cell first, high cell on top. */ and
// */MOD keep the intermediate product in double precision.
//
// Faults are reported as *Error values carrying the trap kind, the address
// of the faulting instruction and a copy of the stacks. Use errors.Cause from
// github.com/pkg/errors to get the Trap.
package vm
