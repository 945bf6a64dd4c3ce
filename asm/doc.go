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

// Package asm provides the eForth1 compiler and utility functions to assemble
// and disassemble eForth1 VM code.
//
// Compiler
//
// A Compiler appends word definitions to a memory image. Primitive words have
// a body made of a single opcode followed by exit. References to primitive
// words from colon definitions are inlined, other words are called:
//
//	c := asm.New(img)
//	c.Primitive("dup", vm.OpDup)
//	c.Primitive("*", vm.OpMul)
//	c.Colon("square", "dup", "*")
//
// Control structures are compiled with Begin, Again, Until, While, Repeat,
// If, Else, Then, For, Next and Aft. They share a stack of pending branch
// records that must be empty when the definition ends. Closing a structure
// that was not opened returns ErrUnbalanced and leaves the image unchanged.
//
//	BEGIN ... AGAIN
//	BEGIN ... f UNTIL
//	BEGIN ... f WHILE ... REPEAT
//	f IF ... THEN
//	f IF ... ELSE ... THEN
//	n FOR ... NEXT			body runs n times, n >= 1
//	n FOR ... AFT ... THEN ... NEXT	AFT part runs n-1 times
//	n FOR ... f WHILE ... NEXT ... ELSE ... THEN
//
// Assembler
//
// Assemble reads a Forth like assembly language:
//
//	( comments are between parentheses )
//	.org 0x100	( set the compile address )
//	.equ SIZE 64	( define a constant )
//	:loop		( define label "loop" )
//	lit SIZE	( opcodes taking a cell operand: lit, call, branch, ?branch, next )
//	42		( implicit lit )
//	square		( implicit call to label square )
//	." "hello"	( inline counted string, also $" )
//	.dat 0x1234	( raw data cell )
//	branch loop
//
// Opcode mnemonics are those returned by vm.Opcode.String. Disassemble
// writes code in the same syntax.
package asm
