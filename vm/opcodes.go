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

import "github.com/db47h/eforth1/mem"

// Opcode is a 7 bit VM instruction code.
type Opcode uint8

// Virtual Machine Opcodes.
const (
	OpNop Opcode = iota
	OpExit
	OpBye
	OpAbort
	OpQRx
	OpTxStore
	OpLit
	OpCall
	OpBranch
	OpQBranch
	OpNext
	OpExecute
	OpDotQuote
	OpStrQuote
	OpStore
	OpPlusStore
	OpFetch
	OpCStore
	OpCFetch
	OpRFrom
	OpRFetch
	OpToR
	OpDrop
	OpDup
	OpSwap
	OpOver
	OpRot
	OpNip
	OpPick
	OpQDup
	OpDepth
	OpAnd
	OpOr
	OpXor
	OpInvert
	OpLShift
	OpRShift
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpSlashMod
	OpNegate
	OpAbs
	OpMax
	OpMin
	OpInc
	OpDec
	OpUMPlus
	OpUMSlashMod
	OpUMStar
	OpMStar
	OpStarSlashMod
	OpStarSlash
	OpSToD
	OpDToS
	OpDNegate
	OpDPlus
	OpDMinus
	OpGreater
	OpEqual
	OpLess
	OpZeroGreater
	OpZeroEqual
	OpZeroLess
	OpULess
	OpWithin
	OpBl
	OpCell
	OpCount
	OpToUpper
	OpRP
	OpHere
	OpComma
	OpCComma
	OpAllot
	OpTrace
	OpHost

	opCount

	// OpInvalid is returned by Decode for cells that do not hold a valid
	// opcode.
	OpInvalid Opcode = 0x7f
)

// ImmFlag is set in instruction cells followed by inline data.
const ImmFlag mem.Cell = 0x80

var opcodes = [...]string{
	"nop",
	"exit",
	"bye",
	"abort",
	"?rx",
	"tx!",
	"lit",
	"call",
	"branch",
	"?branch",
	"next",
	"execute",
	".\"",
	"$\"",
	"!",
	"+!",
	"@",
	"c!",
	"c@",
	"r>",
	"r@",
	">r",
	"drop",
	"dup",
	"swap",
	"over",
	"rot",
	"nip",
	"pick",
	"?dup",
	"depth",
	"and",
	"or",
	"xor",
	"invert",
	"lshift",
	"rshift",
	"+",
	"-",
	"*",
	"/",
	"mod",
	"/mod",
	"negate",
	"abs",
	"max",
	"min",
	"1+",
	"1-",
	"um+",
	"um/mod",
	"um*",
	"m*",
	"*/mod",
	"*/",
	"s>d",
	"d>s",
	"dnegate",
	"d+",
	"d-",
	">",
	"=",
	"<",
	"0>",
	"0=",
	"0<",
	"u<",
	"within",
	"bl",
	"cell",
	"count",
	">upper",
	"rp",
	"here",
	",",
	"c,",
	"allot",
	"trace",
	"host",
}

var opcodeIndex = make(map[string]Opcode)

func init() {
	for i, v := range opcodes {
		opcodeIndex[v] = Opcode(i)
	}
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	if op < opCount {
		return opcodes[op]
	}
	return "???"
}

// Valid returns true if op is a defined opcode.
func (op Opcode) Valid() bool { return op < opCount }

// HasOperand returns true if the instruction is followed by inline data: a
// cell for lit, call and branches, a counted string for ." and $".
func (op Opcode) HasOperand() bool {
	switch op {
	case OpLit, OpCall, OpBranch, OpQBranch, OpNext, OpDotQuote, OpStrQuote:
		return true
	}
	return false
}

// Lookup returns the opcode for the given mnemonic.
func Lookup(mnemonic string) (Opcode, bool) {
	op, ok := opcodeIndex[mnemonic]
	return op, ok
}

// Encode returns the instruction cell for op. The immediate flag is set when
// imm is true.
func Encode(op Opcode, imm bool) mem.Cell {
	c := mem.Cell(op)
	if imm {
		c |= ImmFlag
	}
	return c
}

// Decode splits an instruction cell into its opcode and immediate flag. Cells
// that do not hold a defined opcode decode to OpInvalid.
func Decode(c mem.Cell) (op Opcode, imm bool) {
	if c&^(ImmFlag|0x7f) != 0 {
		return OpInvalid, false
	}
	op, imm = Opcode(c&0x7f), c&ImmFlag != 0
	if !op.Valid() {
		return OpInvalid, imm
	}
	return op, imm
}

// Instruction returns the instruction cell for op with the immediate flag set
// according to op.HasOperand.
func Instruction(op Opcode) mem.Cell {
	return Encode(op, op.HasOperand())
}
