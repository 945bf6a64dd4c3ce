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

package dict_test

import (
	"strings"
	"testing"

	"github.com/db47h/eforth1/dict"
	"github.com/db47h/eforth1/mem"
	"github.com/pkg/errors"
)

func setup(t *testing.T, size int) *mem.Image {
	t.Helper()
	img, err := mem.New(size)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestCreateHeader(t *testing.T) {
	img := setup(t, 256)
	nfa, err := dict.CreateHeader(img, "DUP", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	// boot vector [0,4), link at 4, lex at 6, "DUP" at 7..9, body at 10
	if nfa != 6 {
		t.Errorf("nfa = %d, expected 6", nfa)
	}
	if b := dict.BodyOf(img, nfa); b != 10 || img.Here != 10 {
		t.Errorf("body = %d, here = %d, expected 10", b, img.Here)
	}
	if dict.Link(img, nfa) != 0 {
		t.Errorf("first link is %d", dict.Link(img, nfa))
	}
	if img.Latest != nfa || dict.Name(img, nfa) != "DUP" {
		t.Errorf("latest = %d, name = %q", img.Latest, dict.Name(img, nfa))
	}
	img.CComma(1) // misalign here
	nfa2, err := dict.CreateHeader(img, "SWAP", dict.Immediate, false)
	if err != nil {
		t.Fatal(err)
	}
	if dict.Link(img, nfa2) != nfa {
		t.Errorf("link = %d, expected %d", dict.Link(img, nfa2), nfa)
	}
	if dict.HeaderOf(img, nfa2)%img.Width() != 0 {
		t.Errorf("unaligned header at %d", dict.HeaderOf(img, nfa2))
	}
	if dict.Flags(img, nfa2) != dict.Immediate {
		t.Errorf("flags = %x", dict.Flags(img, nfa2))
	}
	if b := dict.BodyOf(img, nfa2); b%img.Width() != 0 || b != img.Here {
		t.Errorf("body = %d, here = %d", b, img.Here)
	}
}

func TestCreateHeaderErrors(t *testing.T) {
	img := setup(t, 32)
	for _, name := range []string{"", strings.Repeat("x", dict.MaxNameLen+1)} {
		if _, err := dict.CreateHeader(img, name, 0, false); errors.Cause(err) != dict.ErrName {
			t.Errorf("%q: expected ErrName, got %v", name, err)
		}
	}
	if _, err := dict.CreateHeader(img, "X", 0, true); err != nil {
		t.Fatal(err)
	}
	if _, err := dict.CreateHeader(img, "x", 0, true); errors.Cause(err) != dict.ErrDuplicate {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	m := img.Mark()
	if _, err := dict.CreateHeader(img, strings.Repeat("y", 31), 0, false); errors.Cause(err) != mem.ErrOutOfMemory {
		t.Errorf("expected ErrOutOfMemory, got %v", err)
	}
	if img.Mark() != m {
		t.Error("image modified on error")
	}
}

func TestFind(t *testing.T) {
	img := setup(t, 512)
	first, _ := dict.CreateHeader(img, "foo", 0, false)
	img.Comma(1)
	bar, _ := dict.CreateHeader(img, "bar", 0, false)
	img.Comma(2)
	second, _ := dict.CreateHeader(img, "FOO", 0, false)
	img.Comma(3)

	tests := []struct {
		name string
		nfa  int
		ok   bool
	}{
		{"foo", second, true},
		{"Foo", second, true},
		{"BAR", bar, true},
		{"baz", 0, false},
		{"fo", 0, false},
	}
	for _, test := range tests {
		nfa, ok := dict.Find(img, test.name)
		if ok != test.ok || nfa != test.nfa {
			t.Errorf("Find(%q) = %d, %v, expected %d, %v", test.name, nfa, ok, test.nfa, test.ok)
		}
	}

	dict.SetFlags(img, second, dict.Hidden)
	if nfa, _ := dict.Find(img, "foo"); nfa != first {
		t.Errorf("hidden word found: %d", nfa)
	}
	dict.ClearFlags(img, second, dict.Hidden)
	if nfa, _ := dict.Find(img, "foo"); nfa != second {
		t.Errorf("revealed word not found: %d", nfa)
	}
}

func TestWalkWordAt(t *testing.T) {
	img := setup(t, 512)
	var nfas []int
	for _, n := range []string{"A", "BB", "CCC"} {
		nfa, err := dict.CreateHeader(img, n, 0, false)
		if err != nil {
			t.Fatal(err)
		}
		img.Comma(0)
		img.Comma(0)
		nfas = append(nfas, nfa)
	}
	var names []string
	dict.Walk(img, func(nfa int) bool {
		names = append(names, dict.Name(img, nfa))
		return true
	})
	if s := strings.Join(names, " "); s != "CCC BB A" {
		t.Errorf("walk order: %s", s)
	}
	body := dict.BodyOf(img, nfas[1])
	if nfa, ok := dict.WordAt(img, body+2); !ok || nfa != nfas[1] {
		t.Errorf("WordAt(%d) = %d, %v", body+2, nfa, ok)
	}
	if _, ok := dict.WordAt(img, 0); ok {
		t.Error("word found in the boot vector")
	}
	if end := dict.End(img, nfas[1]); end != dict.HeaderOf(img, nfas[2]) {
		t.Errorf("End = %d, expected %d", end, dict.HeaderOf(img, nfas[2]))
	}
	if end := dict.End(img, nfas[2]); end != img.Here {
		t.Errorf("End = %d, expected %d", end, img.Here)
	}
}
