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
	"github.com/db47h/eforth1/dict"
	"github.com/db47h/eforth1/mem"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

func flag(b bool) mem.Cell {
	if b {
		return -1
	}
	return 0
}

// need panics if the data stack holds less than down items or would
// overflow after dropping down items and pushing up items.
func (i *Instance) need(down, up int) {
	if len(i.data) < down {
		panic(trap{t: StackUnderflow})
	}
	if len(i.data)-down+up > cap(i.data) {
		panic(trap{t: StackOverflow})
	}
}

func (i *Instance) push(v mem.Cell) {
	if len(i.data) == cap(i.data) {
		panic(trap{t: StackOverflow})
	}
	i.data = append(i.data, i.Image.Norm(v))
}

func (i *Instance) pop() mem.Cell {
	if len(i.data) == 0 {
		panic(trap{t: StackUnderflow})
	}
	v := i.data[len(i.data)-1]
	i.data = i.data[:len(i.data)-1]
	return v
}

func (i *Instance) tos() *mem.Cell {
	if len(i.data) == 0 {
		panic(trap{t: StackUnderflow})
	}
	return &i.data[len(i.data)-1]
}

func (i *Instance) rpush(v mem.Cell) {
	if len(i.ret) == cap(i.ret) {
		panic(trap{t: RStackOverflow})
	}
	i.ret = append(i.ret, i.Image.Norm(v))
	i.markReturn(false)
}

// rcall pushes the return address of a call or execute.
func (i *Instance) rcall(v mem.Cell) {
	i.rpush(v)
	i.markReturn(true)
}

// markReturn records whether the top of the return stack is a return address.
func (i *Instance) markReturn(ret bool) {
	n := len(i.ret) - 1
	for len(i.retMark) < n {
		i.retMark = append(i.retMark, false)
	}
	i.retMark = append(i.retMark[:n], ret)
}

func (i *Instance) rpop() mem.Cell {
	if len(i.ret) == 0 {
		panic(trap{t: RStackUnderflow})
	}
	v := i.ret[len(i.ret)-1]
	i.ret = i.ret[:len(i.ret)-1]
	return v
}

func (i *Instance) rtos() *mem.Cell {
	if len(i.ret) == 0 {
		panic(trap{t: RStackUnderflow})
	}
	return &i.ret[len(i.ret)-1]
}

// dpop pops a signed double cell number, high cell on top.
func (i *Instance) dpop() int64 {
	hi := int64(i.pop())
	lo := int64(i.addr(i.pop()))
	return hi<<uint(8*i.Image.Width()) | lo
}

func (i *Instance) dpush(d int64) {
	i.push(mem.Cell(d))
	i.push(mem.Cell(d >> uint(8*i.Image.Width())))
}

func (i *Instance) fetch(a int) mem.Cell {
	v, err := i.Image.Fetch(a)
	if err != nil {
		panic(trap{t: IllegalAddress, addr: a})
	}
	return v
}

func (i *Instance) store(a int, v mem.Cell) {
	if err := i.Image.Store(a, v); err != nil {
		panic(trap{t: IllegalAddress, addr: a})
	}
}

func (i *Instance) fetchByte(a int) byte {
	b, err := i.Image.FetchByte(a)
	if err != nil {
		panic(trap{t: IllegalAddress, addr: a})
	}
	return b
}

func (i *Instance) storeByte(a int, b byte) {
	if err := i.Image.StoreByte(a, b); err != nil {
		panic(trap{t: IllegalAddress, addr: a})
	}
}

func (i *Instance) addr(v mem.Cell) int { return i.Image.Addr(v) }

// str returns the counted string at a and the address of the next cell
// boundary past its end.
func (i *Instance) str(a int) ([]byte, int) {
	n := int(i.fetchByte(a))
	b := i.Image.Bytes()
	if a+1+n > len(b) {
		panic(trap{t: IllegalAddress, addr: a + 1 + n})
	}
	return b[a+1 : a+1+n], i.Image.Align(a + 1 + n)
}

func (i *Instance) memErr(err error) {
	if err == nil {
		return
	}
	if errors.Cause(err) == mem.ErrOutOfMemory {
		panic(trap{t: OutOfMemory, err: err})
	}
	panic(trap{t: IllegalAddress, err: err})
}

func (i *Instance) newError(t trap) *Error {
	e := &Error{
		Trap:   t.t,
		Err:    t.err,
		IP:     i.IP,
		Instr:  i.W,
		Addr:   t.addr,
		Stack:  i.Data(),
		RStack: i.Return(),
	}
	e.Op, _ = Decode(i.W)
	if nfa, ok := dict.WordAt(i.Image, i.IP); ok {
		e.Word = dict.Name(i.Image, nfa)
	}
	return e
}

// Start prepares the VM to execute the word whose body is at xt. Execution
// is complete when the word returns with exit. Use Step or Run to actually
// execute it.
func (i *Instance) Start(xt int) {
	i.IP = xt
	i.base = len(i.ret)
	i.done = false
	i.halted = false
	i.insCount = 0
}

// Done returns true when the word started with Start has returned or the VM
// has halted.
func (i *Instance) Done() bool { return i.done || i.halted }

// Execute runs the word whose body is at xt until it returns.
//
// If an error occurs, it is an *Error value and the IP will point to the
// instruction that triggered the fault. Stacks are left as they were when
// the fault occurred.
func (i *Instance) Execute(xt int) error {
	i.Start(xt)
	return i.Run()
}

// Boot starts execution from the boot vector at address 0.
func (i *Instance) Boot() error {
	return i.Execute(0)
}

// Run resumes execution until the current word returns, the VM halts or a
// fault occurs.
func (i *Instance) Run() (err error) {
	defer func() {
		if e := recover(); e != nil {
			t, ok := e.(trap)
			if !ok {
				panic(e)
			}
			err = i.newError(t)
		}
		if ferr := i.Flush(); err == nil && ferr != nil {
			err = errors.Wrap(ferr, "output flush failed")
		}
	}()
	for !i.done && !i.halted {
		if i.maxSteps > 0 && i.insCount >= i.maxSteps {
			panic(trap{t: StepLimit})
		}
		i.step()
	}
	return nil
}

// Step executes a single instruction. It does nothing once Done returns
// true.
func (i *Instance) Step() (err error) {
	if i.Done() {
		return nil
	}
	defer func() {
		if e := recover(); e != nil {
			t, ok := e.(trap)
			if !ok {
				panic(e)
			}
			err = i.newError(t)
		}
	}()
	i.step()
	return nil
}

func (i *Instance) traceStep(ip int) {
	if !i.log.AllowLevel(commonlog.Debug) {
		return
	}
	in, _ := decodeAt(i.Image, ip)
	i.log.Debugf("%04x  %-20s %v", ip, in.String(), i.data)
}

func (i *Instance) step() {
	ip := i.IP
	c := i.fetch(ip)
	i.W = c
	op, imm := Decode(c)
	if op == OpInvalid || imm != op.HasOperand() {
		panic(trap{t: InvalidOpcode})
	}
	if i.trace {
		i.traceStep(ip)
	}
	w := i.Image.Width()
	next := ip + w
	switch op {
	case OpNop:
	case OpExit:
		if len(i.ret) <= i.base {
			i.done = true
			next = ip
			break
		}
		next = i.addr(i.rpop())
	case OpBye:
		i.halted = true
		next = ip
	case OpAbort:
		panic(trap{t: Aborted})
	case OpQRx:
		i.need(0, 2)
		if c, ok := i.rx(); ok {
			i.push(mem.Cell(c))
			i.push(-1)
		} else {
			i.push(0)
		}
	case OpTxStore:
		i.tx(byte(i.pop()))
	case OpLit:
		i.push(i.fetch(next))
		next += w
	case OpCall:
		a := i.addr(i.fetch(next))
		i.rcall(mem.Cell(next + w))
		next = a
	case OpBranch:
		next = i.addr(i.fetch(next))
	case OpQBranch:
		if i.pop() == 0 {
			next = i.addr(i.fetch(next))
		} else {
			next += w
		}
	case OpNext:
		r := i.rtos()
		*r = i.Image.Norm(*r - 1)
		if *r > 0 {
			next = i.addr(i.fetch(next))
		} else {
			i.rpop()
			next += w
		}
	case OpExecute:
		xt := i.addr(i.pop())
		i.rcall(mem.Cell(next))
		next = xt
	case OpDotQuote:
		var s []byte
		s, next = i.str(next)
		i.txs(s)
	case OpStrQuote:
		_, end := i.str(next)
		i.push(mem.Cell(next))
		next = end
	case OpStore:
		i.need(2, 0)
		a := i.addr(i.pop())
		i.store(a, i.pop())
	case OpPlusStore:
		i.need(2, 0)
		a := i.addr(i.pop())
		v := i.pop()
		i.store(a, i.fetch(a)+v)
	case OpFetch:
		t := i.tos()
		*t = i.fetch(i.addr(*t))
	case OpCStore:
		i.need(2, 0)
		a := i.addr(i.pop())
		i.storeByte(a, byte(i.pop()))
	case OpCFetch:
		t := i.tos()
		*t = mem.Cell(i.fetchByte(i.addr(*t)))
	case OpRFrom:
		i.need(0, 1)
		i.push(i.rpop())
	case OpRFetch:
		i.need(0, 1)
		i.push(*i.rtos())
	case OpToR:
		i.need(1, 0)
		i.rpush(i.pop())
	case OpDrop:
		i.pop()
	case OpDup:
		i.need(1, 1)
		i.push(*i.tos())
	case OpSwap:
		i.need(2, 0)
		n := len(i.data)
		i.data[n-1], i.data[n-2] = i.data[n-2], i.data[n-1]
	case OpOver:
		i.need(2, 1)
		i.push(i.data[len(i.data)-2])
	case OpRot:
		i.need(3, 0)
		n := len(i.data)
		i.data[n-3], i.data[n-2], i.data[n-1] = i.data[n-2], i.data[n-1], i.data[n-3]
	case OpNip:
		i.need(2, 0)
		v := i.pop()
		*i.tos() = v
	case OpPick:
		t := i.tos()
		n := int(*t)
		if n < 0 || n+2 > len(i.data) {
			panic(trap{t: StackUnderflow})
		}
		*t = i.data[len(i.data)-2-n]
	case OpQDup:
		i.need(1, 1)
		if v := *i.tos(); v != 0 {
			i.push(v)
		}
	case OpDepth:
		i.push(mem.Cell(len(i.data)))
	case OpAnd:
		i.binary(func(a, b mem.Cell) mem.Cell { return a & b })
	case OpOr:
		i.binary(func(a, b mem.Cell) mem.Cell { return a | b })
	case OpXor:
		i.binary(func(a, b mem.Cell) mem.Cell { return a ^ b })
	case OpInvert:
		t := i.tos()
		*t = ^*t
	case OpLShift:
		i.binary(func(a, b mem.Cell) mem.Cell {
			if uint(i.addr(b)) >= 32 {
				return 0
			}
			return mem.Cell(uint32(a) << uint(i.addr(b)))
		})
	case OpRShift:
		i.binary(func(a, b mem.Cell) mem.Cell {
			if uint(i.addr(b)) >= 32 {
				return 0
			}
			return mem.Cell(uint32(i.addr(a)) >> uint(i.addr(b)))
		})
	case OpAdd:
		i.binary(func(a, b mem.Cell) mem.Cell { return a + b })
	case OpSub:
		i.binary(func(a, b mem.Cell) mem.Cell { return a - b })
	case OpMul:
		i.binary(func(a, b mem.Cell) mem.Cell { return a * b })
	case OpDiv:
		i.binary(func(a, b mem.Cell) mem.Cell { return a / nonZero(b) })
	case OpMod:
		i.binary(func(a, b mem.Cell) mem.Cell { return a % nonZero(b) })
	case OpSlashMod:
		i.need(2, 0)
		n := len(i.data)
		a, b := i.data[n-2], nonZero(i.data[n-1])
		i.data[n-2], i.data[n-1] = i.Image.Norm(a%b), i.Image.Norm(a/b)
	case OpNegate:
		t := i.tos()
		*t = i.Image.Norm(-*t)
	case OpAbs:
		t := i.tos()
		if *t < 0 {
			*t = i.Image.Norm(-*t)
		}
	case OpMax:
		i.binary(func(a, b mem.Cell) mem.Cell {
			if a > b {
				return a
			}
			return b
		})
	case OpMin:
		i.binary(func(a, b mem.Cell) mem.Cell {
			if a < b {
				return a
			}
			return b
		})
	case OpInc:
		t := i.tos()
		*t = i.Image.Norm(*t + 1)
	case OpDec:
		t := i.tos()
		*t = i.Image.Norm(*t - 1)
	case OpUMPlus:
		i.need(2, 0)
		n := len(i.data)
		s := uint64(i.addr(i.data[n-2])) + uint64(i.addr(i.data[n-1]))
		bits := uint(8 * w)
		i.data[n-2] = i.Image.Norm(mem.Cell(s))
		i.data[n-1] = mem.Cell(s >> bits)
	case OpUMSlashMod:
		i.need(3, 0)
		bits := uint(8 * w)
		u := uint64(i.addr(i.pop()))
		hi := uint64(i.addr(i.pop()))
		lo := uint64(i.addr(i.pop()))
		if u == 0 {
			panic(trap{t: ZeroDivision})
		}
		ud := hi<<bits | lo
		i.push(mem.Cell(ud % u))
		i.push(mem.Cell(ud / u))
	case OpUMStar:
		i.need(2, 0)
		bits := uint(8 * w)
		p := uint64(i.addr(i.pop())) * uint64(i.addr(i.pop()))
		i.push(mem.Cell(p))
		i.push(mem.Cell(p >> bits))
	case OpMStar:
		i.need(2, 0)
		bits := uint(8 * w)
		p := int64(i.pop()) * int64(i.pop())
		i.push(mem.Cell(p))
		i.push(mem.Cell(p >> bits))
	case OpStarSlashMod, OpStarSlash:
		i.need(3, 0)
		d := int64(nonZero(*i.tos()))
		i.pop()
		p := int64(i.pop()) * int64(i.pop())
		if op == OpStarSlashMod {
			i.push(mem.Cell(p % d))
		}
		i.push(mem.Cell(p / d))
	case OpSToD:
		i.need(1, 1)
		i.dpush(int64(i.pop()))
	case OpDToS:
		i.need(2, 0)
		i.push(mem.Cell(i.dpop()))
	case OpDNegate:
		i.need(2, 0)
		i.dpush(-i.dpop())
	case OpDPlus:
		i.need(4, 0)
		b := i.dpop()
		i.dpush(i.dpop() + b)
	case OpDMinus:
		i.need(4, 0)
		b := i.dpop()
		i.dpush(i.dpop() - b)
	case OpGreater:
		i.binary(func(a, b mem.Cell) mem.Cell { return flag(a > b) })
	case OpEqual:
		i.binary(func(a, b mem.Cell) mem.Cell { return flag(a == b) })
	case OpLess:
		i.binary(func(a, b mem.Cell) mem.Cell { return flag(a < b) })
	case OpZeroGreater:
		t := i.tos()
		*t = flag(*t > 0)
	case OpZeroEqual:
		t := i.tos()
		*t = flag(*t == 0)
	case OpZeroLess:
		t := i.tos()
		*t = flag(*t < 0)
	case OpULess:
		i.binary(func(a, b mem.Cell) mem.Cell { return flag(i.addr(a) < i.addr(b)) })
	case OpWithin:
		i.need(3, 0)
		hi, lo := i.pop(), i.pop()
		t := i.tos()
		*t = flag(i.addr(i.Image.Norm(*t-lo)) < i.addr(i.Image.Norm(hi-lo)))
	case OpBl:
		i.push(' ')
	case OpCell:
		i.push(mem.Cell(w))
	case OpCount:
		i.need(1, 1)
		t := i.tos()
		a := i.addr(*t)
		c := i.fetchByte(a)
		*t = mem.Cell(a + 1)
		i.push(mem.Cell(c))
	case OpToUpper:
		t := i.tos()
		if *t >= 'a' && *t <= 'z' {
			*t -= 'a' - 'A'
		}
	case OpRP:
		i.push(mem.Cell(len(i.ret)))
	case OpHere:
		i.push(mem.Cell(i.Image.Here))
	case OpComma:
		i.need(1, 0)
		i.memErr(i.Image.Comma(i.pop()))
	case OpCComma:
		i.need(1, 0)
		i.memErr(i.Image.CComma(byte(i.pop())))
	case OpAllot:
		i.need(1, 0)
		_, err := i.Image.Reserve(int(i.pop()))
		i.memErr(err)
	case OpTrace:
		i.trace = i.pop() != 0
	case OpHost:
		i.callHost(int(i.pop()))
	}
	i.IP = next
	i.insCount++
}

func nonZero(v mem.Cell) mem.Cell {
	if v == 0 {
		panic(trap{t: ZeroDivision})
	}
	return v
}

// binary replaces the two top items of the data stack with fn(second, top).
func (i *Instance) binary(fn func(a, b mem.Cell) mem.Cell) {
	i.need(2, 0)
	n := len(i.data)
	v := i.Image.Norm(fn(i.data[n-2], i.data[n-1]))
	i.data = i.data[:n-1]
	i.data[n-2] = v
}

func (i *Instance) callHost(n int) {
	var fn HostFunc
	if n >= 0 && n < len(i.host) {
		fn = i.host[n]
	}
	if fn == nil {
		panic(trap{t: HostError, err: errors.Errorf("unbound host function %d", n)})
	}
	err := fn(i)
	if err == nil {
		return
	}
	switch t := errors.Cause(err).(type) {
	case Trap:
		if t == err {
			panic(trap{t: t})
		}
		panic(trap{t: t, err: err})
	default:
		panic(trap{t: HostError, err: err})
	}
}
