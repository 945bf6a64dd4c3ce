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

/*
Package eforth provides the eForth1 kernel and its outer interpreter.

Bootstrap builds a kernel into an empty image. It defines a primitive word
for every opcode that does not take an inline operand, using the opcode
mnemonic as the word name (dup, swap, um/mod, tx!, ...) plus I, a second
name for r@, then compiles the
high level words of the kernel from Forth source:

	TRUE FALSE BASE HLD PAD
	2DROP 2DUP TUCK -ROT CELL+ CELL- CELLS 2* 2/ <> 2! 2@ 2SWAP 2OVER 2+ 2-
	CMOVE FILL MOVE CREATE
	?KEY KEY EMIT SPACE CR SPACES TYPE CHARS >CHAR
	HEX DECIMAL DIGIT EXTRACT <# HOLD # #S SIGN #> STR .R U.R U. . ?

Word names are case insensitive. At the end of input, KEY returns -1. MOVE
copies whole cells, its byte count is rounded down to a multiple of the cell
size.

CREATE reaches back into the interpreter through host functions 252 to 255
(see HostReserved): it parses the name of the new word from the input.

The outer interpreter, Interp, reads whitespace separated tokens. A token is
either a directive handled by the interpreter, a word from the dictionary or
a number. Directives are looked up first:

	: ; IMMEDIATE COMPILE-ONLY       definitions
	VARIABLE CONSTANT BUFFER:        ( n "name" -- ) data words
	2VARIABLE 2CONSTANT DOES>
	( \ .(                           comments and messages
	." $" ABORT"                     strings
	IF ELSE THEN BEGIN AGAIN UNTIL   control structures
	WHILE REPEAT FOR NEXT AFT AHEAD
	RECURSE LITERAL [ ] ' ['] CHAR [CHAR] POSTPONE [COMPILE]
	WORDS SEE .S FORGET DUMP         tools

Numbers are converted in the current BASE. A '-' prefix negates the number
and a '$' prefix reads it in hexadecimal.

When compiling, words are compiled into the current definition unless they
are immediate, in which case they are executed by the VM. When interpreting,
words are executed; compile only words cannot be interpreted.

Defining a word whose name is already in use prints " name reDef".

Any error discards the definition in progress and clears the VM stacks.
*/
package eforth
