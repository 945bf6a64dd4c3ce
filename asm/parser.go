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

package asm

import (
	"fmt"
	"io"
	"strconv"
	"text/scanner"
	"unicode"

	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
)

func isIdentRune(ch rune, i int) bool {
	if ch == '"' && i == 0 {
		return false
	}
	return unicode.IsLetter(ch) || unicode.IsSymbol(ch) || unicode.IsPunct(ch) || unicode.IsDigit(ch)
}

type labelSite struct {
	pos     scanner.Position
	address int
}

type label struct {
	labelSite
	uses []labelSite
}

// parser states
const (
	stAny    = iota // accept anything
	stArg           // need integer, const or label argument (lit, call, branches, .dat)
	stOrg           // accept integer or const (for .org directive)
	stEqu           // accept integer or const (for .equ value)
	stString        // need a quoted string (." and $")
)

type parser struct {
	img     *mem.Image
	pc      int
	end     int
	s       scanner.Scanner
	labels  map[string]*label
	consts  map[string]labelSite
	cstName string
	cstPos  scanner.Position
	err     error
}

func newParser(img *mem.Image) *parser {
	return &parser{
		img:    img,
		pc:     img.Align(img.Here),
		end:    img.Here,
		labels: make(map[string]*label),
		consts: make(map[string]labelSite),
	}
}

func (p *parser) advance(n int) {
	p.pc += n
	if p.pc > p.end {
		p.end = p.pc
	}
}

// room checks that n bytes starting at pc fit in program space.
func (p *parser) room(n int) bool {
	if p.pc+n > p.img.Split() {
		p.err = wrapError(&p.s, mem.ErrOutOfMemory, fmt.Sprintf("0x%04x: %d bytes past the end of program space", p.pc, p.pc+n-p.img.Split()))
		return false
	}
	return true
}

func (p *parser) write(v mem.Cell) {
	if p.err != nil || !p.room(p.img.Width()) {
		return
	}
	if err := p.img.Store(p.pc, v); err != nil {
		p.err = wrapError(&p.s, err, "")
		return
	}
	p.advance(p.img.Width())
}

func (p *parser) writeString(s string) {
	if len(s) > 255 {
		p.err = scanError(&p.s, ErrStringTooLong.Error())
		return
	}
	b := p.img.Bytes()
	n := p.img.Align(p.pc+1+len(s)) - p.pc
	if !p.room(n) {
		return
	}
	b[p.pc] = byte(len(s))
	copy(b[p.pc+1:], s)
	clear(b[p.pc+1+len(s) : p.pc+n])
	p.advance(n)
}

func (p *parser) useLabel(name string) {
	lbl := p.labels[name]
	if lbl == nil {
		lbl = &label{
			// use current position as valid temp position
			labelSite{p.s.Pos(), -1},
			nil,
		}
		p.labels[name] = lbl
	}
	lbl.uses = append(lbl.uses, labelSite{p.s.Pos(), p.pc})
}

func scanError(s *scanner.Scanner, msg string) error {
	pos := s.Position
	if !pos.IsValid() {
		pos = s.Pos()
	}
	return errors.Errorf("%s: %s", pos, msg)
}

// wrapError is like scanError but keeps err as the cause.
func wrapError(s *scanner.Scanner, err error, msg string) error {
	pos := s.Position
	if !pos.IsValid() {
		pos = s.Pos()
	}
	if msg == "" {
		return errors.Wrap(err, pos.String())
	}
	return errors.Wrapf(err, "%s: %s", pos, msg)
}

// Parse does the parsing and compiling.
func (p *parser) Parse(name string, r io.Reader) error {
	var state = stAny

	p.s.Init(r)
	p.s.Error = func(s *scanner.Scanner, msg string) {
		p.err = scanError(s, msg)
	}
	p.s.IsIdentRune = isIdentRune
	p.s.Mode = scanner.ScanIdents | scanner.ScanStrings
	p.s.Filename = name

	for tok := p.s.Scan(); p.err == nil && tok != scanner.EOF; tok = p.s.Scan() {
		var v int
		s := p.s.TokenText()

		// Our assembly is forth like: words can start with and contain digits,
		// symbols, punctuation and so on. The stdlib scanner can only return
		// tokens, so we need to convert back to Ints when required.
		// Chars are only a special case of ints.
		switch tok {
		case scanner.String:
			if state != stString {
				p.err = scanError(&p.s, "Unexpected string "+s)
				break
			}
			str, err := strconv.Unquote(s)
			if err != nil {
				p.err = scanError(&p.s, err.Error())
				break
			}
			p.writeString(str)
			state = stAny
			continue
		case scanner.Ident:
			// check int
			n, err := strconv.ParseInt(s, 0, 64)
			if err == nil {
				tok = scanner.Int
				v = int(n)
				break
			}
			// check char
			if len(s) > 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
				r, _, _, err := strconv.UnquoteChar(s[1:len(s)-1], '\'')
				if err != nil {
					p.err = scanError(&p.s, err.Error())
					break
				}
				v = int(r)
				tok = scanner.Int
				break
			}
			// constant ?
			c, ok := p.consts[s]
			if ok {
				v = c.address
				tok = scanner.Int
				break
			}
		default:
			p.err = scanError(&p.s, "Unexpected character "+strconv.QuoteRune(tok))
		}

		if p.err != nil {
			return p.err
		}
		if state == stString {
			p.err = scanError(&p.s, "Expected string, got "+s)
			return p.err
		}

	S: // now we only have ints or idents
		switch tok {
		case scanner.Int:
			switch state {
			case stOrg:
				if v < 0 || v > p.img.Split() {
					p.err = scanError(&p.s, fmt.Sprintf(".org: address %d out of range", v))
					break S
				}
				p.pc = v
			case stEqu:
				p.consts[p.cstName] = labelSite{p.cstPos, v}
			case stAny:
				// implicit lit
				p.write(vm.Instruction(vm.OpLit))
				fallthrough
			default: // stArg
				p.write(mem.Cell(v))
			}
			state = stAny
		case scanner.Ident:
			switch s[0] {
			case ':':
				if state != stAny {
					p.err = scanError(&p.s, "Unexpected label definition as argument: "+s)
					break S
				}
				n := s[1:]
				if len(n) == 0 {
					p.err = scanError(&p.s, "Empty label name")
					break S
				}
				if cst, ok := p.consts[n]; ok {
					p.err = scanError(&p.s, "Label redefinition:"+n+", previously defined as a constant here:"+cst.pos.String())
					break S
				}
				if l, ok := p.labels[n]; ok {
					if l.address != -1 {
						p.err = scanError(&p.s, "Label redefinition: "+n+", previous definition here:"+l.pos.String())
					}
					l.address = p.pc
					l.pos = p.s.Pos()
				} else {
					p.labels[n] = &label{
						labelSite{p.s.Pos(), p.pc},
						nil,
					}
				}
				break S
			case '.':
				if len(s) == 1 || s == ".\"" {
					break
				}
				if state != stAny {
					p.err = scanError(&p.s, "Unexpected directive as argument: "+s)
					break S
				}
				switch s {
				case ".org":
					state = stOrg
				case ".dat":
					state = stArg
				case ".equ":
					t := p.s.Scan()
					if t != scanner.Ident {
						p.err = scanError(&p.s, ".equ: expected identifier, got "+p.s.TokenText())
						break S
					}
					p.cstName = p.s.TokenText()
					if l, ok := p.labels[p.cstName]; ok {
						p.err = scanError(&p.s, ".equ: redefinition of "+p.cstName+", previously defined/used as a label: here: "+l.pos.String())
						break S
					}
					p.cstPos = p.s.Pos()
					state = stEqu
				default:
					p.err = scanError(&p.s, "Unknown dot directive: "+s)
				}
				break S
			}
			if s == "(" {
				// skip comments
				for ; p.err == nil && tok != scanner.EOF && (tok != scanner.Ident || p.s.TokenText() != ")"); tok = p.s.Scan() {
				}
				break S
			}
			if state >= stOrg {
				p.err = scanError(&p.s, "Unexpected label as directive argument: "+s)
				break S
			}
			if op, ok := vm.Lookup(s); ok {
				if state != stAny {
					p.err = scanError(&p.s, "Unexpected opcode as argument: "+s)
					break S
				}
				p.write(vm.Instruction(op))
				switch op {
				case vm.OpDotQuote, vm.OpStrQuote:
					state = stString
				case vm.OpLit, vm.OpCall, vm.OpBranch, vm.OpQBranch, vm.OpNext:
					state = stArg
				}
				break S
			}
			if state == stAny {
				// implicit call
				p.write(vm.Instruction(vm.OpCall))
			}
			p.useLabel(s)
			p.write(0)
			state = stAny
		}
	}
	if p.err == nil && state != stAny {
		p.err = scanError(&p.s, "Unexpected end of input")
	}

	// write labels
	for n, l := range p.labels {
		if p.err != nil {
			break
		}
		if l.address == -1 {
			p.err = errors.Errorf("Missing label definition for %s, first use here: %s", n, l.uses[0].pos)
			break
		}
		for _, u := range l.uses {
			if err := p.img.Store(u.address, mem.Cell(l.address)); err != nil {
				p.err = errors.Wrapf(err, "%s: label %s", u.pos, n)
				break
			}
		}
	}
	return p.err
}
