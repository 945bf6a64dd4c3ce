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

// Package dict manages the word headers that make up the eforth1 dictionary.
//
// A header starts on a cell boundary with a link cell holding the name field
// address (NFA) of the previous header, or 0 at the end of the chain. The NFA
// points to the lexicon byte that follows the link: its low 5 bits hold the
// name length and the high bits the word flags. The name bytes follow, padded
// with zeros to the next cell boundary where the word body starts.
//
//	[link][lex][name...][pad][body...]
//	      ^ NFA                ^ BodyOf(NFA)
package dict

import (
	"github.com/db47h/eforth1/mem"
	"github.com/pkg/errors"
)

// Flags stored in the lexicon byte of a header.
const (
	Immediate   byte = 0x80 // executed while compiling
	CompileOnly byte = 0x40 // cannot be interpreted
	Hidden      byte = 0x20 // invisible to Find (smudge)

	flagMask = Immediate | CompileOnly | Hidden
	lenMask  = 0x1f
)

// MaxNameLen is the maximum length of a word name.
const MaxNameLen = lenMask

// Dictionary errors.
var (
	ErrDuplicate = errors.New("duplicate definition")
	ErrName      = errors.New("invalid word name")
)

// CreateHeader appends a new header for name to program space and makes it
// the latest word. When unique is true, an error is returned if a visible word
// with the same name already exists. The image is left untouched on error.
func CreateHeader(img *mem.Image, name string, flags byte, unique bool) (nfa int, err error) {
	if len(name) == 0 || len(name) > MaxNameLen {
		return 0, errors.Wrapf(ErrName, "%q", name)
	}
	if unique {
		if _, ok := Find(img, name); ok {
			return 0, errors.Wrap(ErrDuplicate, name)
		}
	}
	w := img.Width()
	start := img.Align(img.Here)
	size := img.Align(start+w+1+len(name)) - img.Here
	if size > img.Room() {
		return 0, errors.Wrapf(mem.ErrOutOfMemory, "header %s", name)
	}
	m := img.Mark()
	defer func() {
		if err != nil {
			img.Rollback(m)
		}
	}()
	if err = img.AlignHere(); err != nil {
		return 0, err
	}
	if err = img.Comma(mem.Cell(img.Latest)); err != nil {
		return 0, err
	}
	nfa = img.Here
	if err = img.CComma(byte(len(name)) | flags&flagMask); err != nil {
		return 0, err
	}
	for _, c := range []byte(name) {
		if err = img.CComma(c); err != nil {
			return 0, err
		}
	}
	if err = img.AlignHere(); err != nil {
		return 0, err
	}
	img.Latest = nfa
	return nfa, nil
}

func lex(img *mem.Image, nfa int) byte {
	b, err := img.FetchByte(nfa)
	if err != nil {
		return 0
	}
	return b
}

// Link returns the NFA of the header preceding nfa in the chain, 0 at the end.
func Link(img *mem.Image, nfa int) int {
	v, err := img.Fetch(nfa - img.Width())
	if err != nil {
		return 0
	}
	return img.Addr(v)
}

// Name returns the name of the word at nfa.
func Name(img *mem.Image, nfa int) string {
	n := int(lex(img, nfa) & lenMask)
	b := img.Bytes()
	if nfa+1+n > len(b) {
		return ""
	}
	return string(b[nfa+1 : nfa+1+n])
}

// Flags returns the flags of the word at nfa.
func Flags(img *mem.Image, nfa int) byte {
	return lex(img, nfa) & flagMask
}

// SetFlags sets the given flags on the word at nfa.
func SetFlags(img *mem.Image, nfa int, flags byte) error {
	return img.StoreByte(nfa, lex(img, nfa)|flags&flagMask)
}

// ClearFlags clears the given flags on the word at nfa.
func ClearFlags(img *mem.Image, nfa int, flags byte) error {
	return img.StoreByte(nfa, lex(img, nfa)&^(flags&flagMask))
}

// BodyOf returns the address of the body of the word at nfa.
func BodyOf(img *mem.Image, nfa int) int {
	return img.Align(nfa + 1 + int(lex(img, nfa)&lenMask))
}

// HeaderOf returns the address of the link cell of the word at nfa, the
// first byte of its header.
func HeaderOf(img *mem.Image, nfa int) int {
	return nfa - img.Width()
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// match compares the name at nfa with name, ignoring ASCII case.
func match(img *mem.Image, nfa int, name string) bool {
	n := int(lex(img, nfa) & lenMask)
	if n != len(name) {
		return false
	}
	b := img.Bytes()[nfa+1:]
	for i := 0; i < n; i++ {
		if upper(b[i]) != upper(name[i]) {
			return false
		}
	}
	return true
}

// Find looks up name in the dictionary, newest definitions first. Hidden
// words are skipped.
func Find(img *mem.Image, name string) (nfa int, ok bool) {
	found := false
	Walk(img, func(a int) bool {
		if Flags(img, a)&Hidden == 0 && match(img, a, name) {
			nfa, found = a, true
			return false
		}
		return true
	})
	return nfa, found
}

// Walk calls fn for each header, newest first, including hidden ones. Walking
// stops when fn returns false.
func Walk(img *mem.Image, fn func(nfa int) bool) {
	// the link chain can only go down in memory; anything else is corrupted.
	for nfa := img.Latest; nfa > 0; {
		if !fn(nfa) {
			return
		}
		next := Link(img, nfa)
		if next >= nfa {
			return
		}
		nfa = next
	}
}

// WordAt returns the NFA of the word whose header or body contains addr.
func WordAt(img *mem.Image, addr int) (nfa int, ok bool) {
	if addr >= img.Here {
		return 0, false
	}
	Walk(img, func(a int) bool {
		if HeaderOf(img, a) <= addr {
			nfa, ok = a, true
			return false
		}
		return true
	})
	return nfa, ok
}

// End returns the address just past the body of the word at nfa: the header
// of the next word or the current end of program space.
func End(img *mem.Image, nfa int) int {
	end := img.Here
	Walk(img, func(a int) bool {
		if a <= nfa {
			return false
		}
		end = HeaderOf(img, a)
		return true
	})
	return end
}
