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

package eforth_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/db47h/eforth1/asm"
	"github.com/db47h/eforth1/dict"
	"github.com/db47h/eforth1/lang/eforth"
	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
)

func setup(t *testing.T, opts ...vm.Option) (*eforth.Interp, *bytes.Buffer) {
	t.Helper()
	img, err := mem.New(8192)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	it, err := eforth.New(img, append([]vm.Option{vm.Output(&out)}, opts...)...)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return it, &out
}

func eval(t *testing.T, it *eforth.Interp, src ...string) {
	t.Helper()
	for _, line := range src {
		if err := it.Eval(line); err != nil {
			t.Fatalf("%q: %+v", line, err)
		}
	}
}

func TestKernel(t *testing.T) {
	tests := []struct {
		src string
		out string
	}{
		{"2 3 + .", " 5"},
		{"-7 .", " -7"},
		{"7 2 / . -7 2 / .", " 3 -3"},
		{"7 2 mod . 7 2 /mod . .", " 1 3 1"},
		{"255 HEX . DECIMAL", " FF"},
		{"$10 .", " 16"},
		{"-$10 .", " -16"},
		{"-1 U.", " 65535"},
		{"8 BASE ! 17 . DECIMAL", " 17"},
		{"12 5 .R", "   12"},
		{"12 5 U.R", "   12"},
		{"-12 STR TYPE", "-12"},
		{"1 2 2DUP . . . .", " 2 1 2 1"},
		{"1 2 3 -ROT . . .", " 2 1 3"},
		{"1 2 TUCK . . .", " 2 1 2"},
		{"3 CELLS . 10 CELL+ . 10 CELL- .", " 6 12 8"},
		{"1 2 <> . 2 2 <> .", " -1 0"},
		{"TRUE . FALSE .", " -1 0"},
		{"CHAR A EMIT 66 EMIT CR", "AB\n"},
		{"3 SPACES", "   "},
		{`$" hello" COUNT TYPE`, "hello"},
		{`." hi" .( there)`, "hithere"},
		{"VARIABLE X 42 X ! X ?", " 42"},
		{"4 BUFFER: D 1 2 D 2! D 2@ . .", " 2 1"},
		{"7 CONSTANT SEVEN SEVEN .", " 7"},
		{`$" abc" COUNT PAD SWAP CMOVE PAD 3 TYPE`, "abc"},
		{"PAD 4 42 FILL PAD 4 TYPE", "****"},
		{"PAD 0 42 FILL PAD 0 TYPE", ""},
		{"10 BUFFER: B B 5 + B - .", " 5"},
		{"1 2 3 4 2SWAP . . . .", " 2 1 4 3"},
		{"1 2 3 4 2OVER . . . . . .", " 2 1 4 3 2 1"},
		{"5 2+ . 5 2- .", " 7 3"},
		{"-4 2/ . -3 2/ . 6 2/ .", " -2 -2 3"},
		{"10 3 4 */ .", " 7"},
		{"300 200 7 */ .", " 8571"},
		{"10 3 4 */MOD . .", " 7 2"},
		{"-5 S>D . .", " -1 -5"},
		{"1 0 1 0 D+ . .", " 0 2"},
		{"1 0 DNEGATE D>S .", " -1"},
		{"2VARIABLE S 2VARIABLE T 7 8 S 2! S T 4 MOVE T 2@ . .", " 8 7"},
		{"1 2 2CONSTANT P P . .", " 2 1"},
		{"CREATE T 5 , 6 , T @ . T CELL+ @ .", " 5 6"},
		{": X 3 FOR I . NEXT ; X", " 3 2 1"},
		{"3 42 CHARS 0 42 CHARS -1 42 CHARS", "***"},
		{"7 >CHAR EMIT 65 >CHAR EMIT 193 >CHAR EMIT 127 >CHAR EMIT", "_AA_"},
	}
	for _, test := range tests {
		it, out := setup(t)
		eval(t, it, test.src)
		if out.String() != test.out {
			t.Errorf("%s: expected %q, got %q", test.src, test.out, out.String())
		}
		if d := it.VM.Depth(); d != 0 {
			t.Errorf("%s: %d items left on the stack", test.src, d)
		}
	}
}

func TestColon(t *testing.T) {
	tests := []struct {
		src []string
		out string
	}{
		{[]string{": SQ DUP * ;", "5 SQ ."}, " 25"},
		{[]string{": sq dup * ;", "5 SQ ."}, " 25"},
		{[]string{": ABS2 ( n -- u )", "DUP 0< IF NEGATE THEN", ";", "-5 ABS2 . 5 ABS2 ."}, " 5 5"},
		{[]string{": SEL IF 1 ELSE 2 THEN ; 0 SEL . -1 SEL ."}, " 2 1"},
		{[]string{": CNT 0 SWAP FOR 1+ NEXT ; 4 CNT ."}, " 4"},
		{[]string{": STARS FOR 42 EMIT NEXT ; 3 STARS"}, "***"},
		{[]string{": A 0 SWAP FOR 10 + AFT 1+ THEN NEXT ; 3 A ."}, " 12"},
		{[]string{": CD BEGIN DUP . 1- DUP 0= UNTIL DROP ; 3 CD"}, " 3 2 1"},
		{[]string{": SUMTO 0 SWAP BEGIN DUP WHILE TUCK + SWAP 1- REPEAT DROP ; 4 SUMTO ."}, " 10"},
		{[]string{": FACT DUP 1 > IF DUP 1- RECURSE * THEN ; 5 FACT ."}, " 120"},
		{[]string{": K [ 6 7 * ] LITERAL ; K ."}, " 42"},
		{[]string{": ANSWER 42 ; IMMEDIATE", ": Q ANSWER LITERAL ; Q ."}, " 42"},
		{[]string{`: GREET ." hi" ; GREET GREET`}, "hihi"},
		{[]string{`: S $" abc" COUNT TYPE ; S`}, "abc"},
		{[]string{"3 ' DUP EXECUTE . ."}, " 3 3"},
		{[]string{": T ['] DUP EXECUTE ; 4 T * ."}, " 16"},
		{[]string{": C [CHAR] * EMIT ; C"}, "*"},
		{[]string{": E 1 EXIT 2 ; E ."}, " 1"},
		{[]string{": X 1 ;", ": X X 1+ ;", "X ."}, " X reDef 2"},
		{[]string{": SK 1 AHEAD 2 THEN 3 ; SK . ."}, " 3 1"},
		{[]string{": CONST CREATE , DOES> @ ;", "5 CONST FIVE FIVE ."}, " 5"},
		{[]string{": ARR CREATE CELLS ALLOT DOES> SWAP CELLS + ;", "3 ARR V 7 1 V ! 1 V @ ."}, " 7"},
		{[]string{": UNLESS POSTPONE 0= POSTPONE IF ; IMMEDIATE", ": T UNLESS 1 ELSE 2 THEN ; 0 T . -1 T ."}, " 1 2"},
		{[]string{": ENDIF [COMPILE] THEN ; IMMEDIATE", ": T IF 1 ENDIF 2 ; 0 T . -1 T . ."}, " 2 2 1"},
		{[]string{": FOO 42 ; IMMEDIATE", ": BAR [COMPILE] FOO ; BAR ."}, " 42"},
		{[]string{`: CHK ABORT" bad" 1 ; 0 CHK .`}, " 1"},
		{[]string{": W \\ comment", "7 ( inline ) . ;", "W"}, " 7"},
	}
	for _, test := range tests {
		it, out := setup(t)
		eval(t, it, test.src...)
		if out.String() != test.out {
			t.Errorf("%v: expected %q, got %q", test.src, test.out, out.String())
		}
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		src string
		err error
	}{
		{"FOO", eforth.ErrUndefined},
		{"12Z", eforth.ErrUndefined},
		{"IF", eforth.ErrCompileOnly},
		{";", eforth.ErrCompileOnly},
		{"]", asm.ErrNotCompiling},
		{": BAD IF ;", asm.ErrUnbalanced},
		{": BAD THEN ;", asm.ErrUnbalanced},
		{": BAD FOO ;", eforth.ErrUndefined},
		{": A : B", asm.ErrCompiling},
		{"CONSTANT", eforth.ErrMissingName},
		{":", eforth.ErrMissingName},
		{"' NOPE", asm.ErrWordNotFound},
		{"FORGET NOPE", asm.ErrWordNotFound},
		{"DROP", vm.StackUnderflow},
		{"1 CONSTANT", eforth.ErrMissingName},
		{"CONSTANT C", vm.StackUnderflow},
		{"1 0 /", vm.ZeroDivision},
		{"1 2 3 BYE", eforth.ErrBye},
		{"DOES>", eforth.ErrCompileOnly},
		{"POSTPONE IF", eforth.ErrCompileOnly},
		{`ABORT" x"`, eforth.ErrCompileOnly},
		{": BAD AHEAD ;", asm.ErrUnbalanced},
		{"1 2CONSTANT P", vm.StackUnderflow},
		{"1 2 2CONSTANT", eforth.ErrMissingName},
		{"CREATE", vm.HostError},
		{": BAD POSTPONE NOPE ;", eforth.ErrUndefined},
	}
	for _, test := range tests {
		it, out := setup(t)
		b := append([]byte(nil), it.Compiler.Image.Bytes()...)
		m := it.Compiler.Image.Mark()
		err := it.Eval(test.src)
		if errors.Cause(err) != test.err {
			t.Errorf("%s: expected error %v, got %v", test.src, test.err, err)
			continue
		}
		if it.Compiling() || it.Compiler.Defining() != 0 {
			t.Errorf("%s: still compiling", test.src)
		}
		if it.VM.Depth() != 0 || it.VM.RDepth() != 0 {
			t.Errorf("%s: stacks not cleared", test.src)
		}
		if !bytes.Equal(b[:it.Compiler.Image.Split()], it.Compiler.Image.Bytes()[:it.Compiler.Image.Split()]) || m != it.Compiler.Image.Mark() {
			t.Errorf("%s: program space modified", test.src)
		}
		// the interpreter is still usable
		out.Reset()
		eval(t, it, "1 2 + .")
		if out.String() != " 3" {
			t.Errorf("%s: after error, got %q", test.src, out.String())
		}
	}
}

func TestUndefined(t *testing.T) {
	if eforth.ErrUndefined != asm.ErrWordNotFound {
		t.Fatal("ErrUndefined and asm.ErrWordNotFound differ")
	}
	for _, src := range []string{"NOPE", "' NOPE", "FORGET NOPE", "SEE NOPE", ": X NOPE ;", ": X ['] NOPE ;"} {
		it, _ := setup(t)
		if err := it.Eval(src); errors.Cause(err) != asm.ErrWordNotFound {
			t.Errorf("%s: expected ErrWordNotFound, got %v", src, err)
		}
	}
}

func TestAbortQuote(t *testing.T) {
	it, out := setup(t)
	eval(t, it, `: CHK ABORT" bad value" ;`)
	err := it.Eval("5 -1 CHK 6")
	if errors.Cause(err) != vm.Aborted {
		t.Fatalf("expected Aborted, got %v", err)
	}
	if out.String() != "bad value" {
		t.Errorf("output %q", out.String())
	}
	if it.VM.Depth() != 0 {
		t.Errorf("stack not cleared: %v", it.VM.Data())
	}
}

func TestRedefinition(t *testing.T) {
	tests := []struct {
		src string
		out string
	}{
		{": dup dup ;", " dup reDef"},
		{"1 CONSTANT Y 2 CONSTANT y", " Y reDef"},
		{"VARIABLE Y VARIABLE Y", " Y reDef"},
		{"CREATE Y CREATE Y", " Y reDef"},
		{"VARIABLE Y 2VARIABLE Y", " Y reDef"},
		{"4 BUFFER: Y 1 2 2CONSTANT Y", " Y reDef"},
		{"VARIABLE Y VARIABLE Z", ""},
	}
	for _, test := range tests {
		it, out := setup(t)
		eval(t, it, test.src)
		if out.String() != test.out {
			t.Errorf("%s: expected %q, got %q", test.src, test.out, out.String())
		}
	}
}

func TestReturnStackDump(t *testing.T) {
	it, out := setup(t)
	eval(t, it, ": INNER 1 DROP DROP ;", ": MID 1000 FOR INNER NEXT ;")
	xt, err := it.Compiler.Tick("MID")
	if err != nil {
		t.Fatal(err)
	}
	// run MID directly so that the stacks survive the fault
	if err = it.VM.Execute(xt); errors.Cause(err) != vm.StackUnderflow {
		t.Fatalf("expected StackUnderflow, got %v", err)
	}
	if err = it.VM.DumpReturnStack(out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(out.String(), "\n")
	if len(lines) != 3 || lines[2] != "" {
		t.Fatalf("unexpected dump %q", out.String())
	}
	if !strings.HasPrefix(lines[0], " 0  0x") || !strings.HasSuffix(lines[0], "  MID") {
		t.Errorf("return address: %q", lines[0])
	}
	if lines[1] != " 1  0x03e8" {
		t.Errorf("loop counter: %q", lines[1])
	}
}

func TestFaultMessage(t *testing.T) {
	it, _ := setup(t)
	eval(t, it, ": DIV0 0 / ;")
	err := it.Eval("1 DIV0")
	if errors.Cause(err) != vm.ZeroDivision {
		t.Fatalf("expected ZeroDivision, got %v", err)
	}
	var e *vm.Error
	if !errors.As(err, &e) {
		t.Fatalf("%v is not a *vm.Error", err)
	}
	if e.Word != "DIV0" {
		t.Errorf("fault in %q, expected DIV0", e.Word)
	}
	if !strings.HasPrefix(err.Error(), "DIV0: ") {
		t.Errorf("error %q does not name the word", err)
	}
}

func TestEvalReader(t *testing.T) {
	it, out := setup(t)
	src := ": TWICE ( n -- 2n )\n  2 *\n;\n21 TWICE .\nNOPE\n1 .\n"
	err := it.EvalReader("src", strings.NewReader(src))
	if errors.Cause(err) != eforth.ErrUndefined {
		t.Fatalf("expected ErrUndefined, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "src:5: NOPE") {
		t.Errorf("error message %q", err)
	}
	if out.String() != " 42" {
		t.Errorf("output %q", out.String())
	}

	err = it.EvalReader("bye", strings.NewReader("1 .\nBYE\n2 .\n"))
	if err != eforth.ErrBye {
		t.Errorf("expected ErrBye, got %v", err)
	}
	if out.String() != " 42 1" {
		t.Errorf("output %q", out.String())
	}
}

func TestKey(t *testing.T) {
	it, out := setup(t, vm.Input(strings.NewReader("xy")))
	eval(t, it, "KEY KEY KEY . . .")
	if out.String() != " -1 121 120" {
		t.Errorf("output %q", out.String())
	}
}

func TestTools(t *testing.T) {
	it, out := setup(t)
	eval(t, it, ": FOO 1 IF 2 THEN ; IMMEDIATE", "WORDS")
	if !strings.HasPrefix(out.String(), "FOO ? . U. ") {
		t.Errorf("WORDS: %q", out.String())
	}

	out.Reset()
	eval(t, it, "SEE FOO")
	for _, s := range []string{"FOO: immediate\n", "lit 1\n", "?branch 0x", "exit\n"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("SEE: %q not found in %q", s, out.String())
		}
	}

	out.Reset()
	eval(t, it, "1 2 .S")
	if out.String() != "<2> 1 2\n" {
		t.Errorf(".S: %q", out.String())
	}
	eval(t, it, "2DROP")

	out.Reset()
	eval(t, it, `$" AB" 3 DUMP`)
	if s := out.String(); !strings.Contains(s, "  02 41 42") || !strings.HasSuffix(s, ".AB\n") {
		t.Errorf("DUMP: %q", s)
	}

	m := it.Compiler.Image.Mark()
	eval(t, it, ": BAR 1 ;", "FORGET BAR")
	if it.Compiler.Image.Mark() != m {
		t.Error("FORGET did not restore the dictionary")
	}
	if _, ok := dict.Find(it.Compiler.Image, "BAR"); ok {
		t.Error("BAR still defined")
	}
}

func TestPersistence(t *testing.T) {
	it, _ := setup(t)
	eval(t, it, ": CUBE DUP DUP * * ;")
	var buf bytes.Buffer
	if err := it.Compiler.Image.Save(&buf); err != nil {
		t.Fatal(err)
	}
	img, err := mem.Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	here := img.Here
	var out bytes.Buffer
	it, err = eforth.New(img, vm.Output(&out))
	if err != nil {
		t.Fatal(err)
	}
	if img.Here != here {
		t.Errorf("kernel bootstrapped again")
	}
	eval(t, it, "3 CUBE .")
	if out.String() != " 27" {
		t.Errorf("output %q", out.String())
	}
}

func TestWidth4(t *testing.T) {
	img, err := mem.New(16384, mem.Width(4))
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	it, err := eforth.New(img, vm.Output(&out))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	eval(t, it, "-1 U. 3 CELLS . 65536 DUP * .")
	if out.String() != " 4294967295 12 0" {
		t.Errorf("output %q", out.String())
	}
}

func TestNumber(t *testing.T) {
	it, _ := setup(t)
	tests := []struct {
		tok string
		v   mem.Cell
		ok  bool
	}{
		{"0", 0, true},
		{"-0", 0, true},
		{"32767", 32767, true},
		{"65535", -1, true},
		{"65536", 0, false},
		{"$ff", 255, true},
		{"$FF", 255, true},
		{"-$8000", -32768, true},
		{"-", 0, false},
		{"$", 0, false},
		{"1a", 0, false},
		{"+1", 0, false},
	}
	for _, test := range tests {
		v, ok := it.Number(test.tok)
		if ok != test.ok || (ok && v != test.v) {
			t.Errorf("%q: expected %d, %v, got %d, %v", test.tok, test.v, test.ok, v, ok)
		}
	}
	eval(t, it, "HEX")
	if v, ok := it.Number("1a"); !ok || v != 26 {
		t.Errorf("HEX 1a: got %d, %v", v, ok)
	}
}
