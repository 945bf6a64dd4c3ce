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
	"io"

	"github.com/db47h/eforth1/mem"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

const (
	defaultDepth = 64
	hostSlots    = 256
)

// HostFunc is the prototype of Go functions callable from threaded code with
// the host instruction. They can use the stack methods of the Instance to get
// their arguments and return results.
type HostFunc func(i *Instance) error

// Instance represents an eForth1 VM instance.
type Instance struct {
	IP    int        // Instruction Pointer
	W     mem.Cell   // last fetched instruction cell
	Image *mem.Image // Memory image

	data     []mem.Cell
	ret      []mem.Cell
	retMark  []bool // return stack entries pushed by call or execute
	base     int // return stack depth at which exit stops execution
	done     bool
	halted   bool
	insCount int64
	maxSteps int64
	in       multiReader
	output   io.Writer
	host     []HostFunc
	trace    bool
	log      commonlog.Logger
}

// Option interface
type Option func(*Instance) error

// DataDepth sets the maximum depth of the data stack. It will not erase the
// stack but an error is returned if the stack holds more items than the new
// depth. The default is 64 cells.
func DataDepth(depth int) Option {
	return func(i *Instance) error {
		if depth < 1 || depth < len(i.data) {
			return errors.Errorf("invalid data stack depth %d", depth)
		}
		t := make([]mem.Cell, len(i.data), depth)
		copy(t, i.data)
		i.data = t
		return nil
	}
}

// ReturnDepth sets the maximum depth of the return stack. The default is 64
// cells.
func ReturnDepth(depth int) Option {
	return func(i *Instance) error {
		if depth < 1 || depth < len(i.ret) {
			return errors.Errorf("invalid return stack depth %d", depth)
		}
		t := make([]mem.Cell, len(i.ret), depth)
		copy(t, i.ret)
		i.ret = t
		return nil
	}
}

// Input pushes the given Reader on top of the input stack read by ?rx.
func Input(r io.Reader) Option {
	return func(i *Instance) error { i.PushInput(r); return nil }
}

// Output configures the output Writer for tx! and ." . If w has a Flush
// method, it will be called before reading input and when execution stops.
func Output(w io.Writer) Option {
	return func(i *Instance) error {
		i.output = w
		return nil
	}
}

// MaxSteps limits the number of instructions a single call to Execute or Boot
// may run. A StepLimit fault is raised when the limit is reached. 0 means no
// limit, which is the default.
func MaxSteps(n int64) Option {
	return func(i *Instance) error {
		if n < 0 {
			return errors.Errorf("invalid step limit %d", n)
		}
		i.maxSteps = n
		return nil
	}
}

// BindHost binds fn to host function number n.
func BindHost(n int, fn HostFunc) Option {
	return func(i *Instance) error {
		if n < 0 || n >= hostSlots {
			return errors.Errorf("host function number %d out of range", n)
		}
		if i.host == nil {
			i.host = make([]HostFunc, hostSlots)
		}
		i.host[n] = fn
		return nil
	}
}

// Logger sets the logger used for instruction tracing.
func Logger(l commonlog.Logger) Option {
	return func(i *Instance) error {
		i.log = l
		return nil
	}
}

// Trace enables or disables instruction tracing. Traces are logged at debug
// level.
func Trace(on bool) Option {
	return func(i *Instance) error {
		i.trace = on
		return nil
	}
}

// SetOptions sets the provided options.
func (i *Instance) SetOptions(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return err
		}
	}
	return nil
}

// New creates a new eForth1 Virtual Machine instance running code from the
// given image.
//
// Options will be set by calling SetOptions.
func New(img *mem.Image, opts ...Option) (*Instance, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	i := &Instance{
		Image: img,
		data:  make([]mem.Cell, 0, defaultDepth),
		ret:   make([]mem.Cell, 0, defaultDepth),
		log:   commonlog.GetLogger("eforth.vm"),
	}
	if err := i.SetOptions(opts...); err != nil {
		return nil, err
	}
	return i, nil
}

// Data returns a copy of the data stack, bottom first.
func (i *Instance) Data() []mem.Cell {
	return append([]mem.Cell(nil), i.data...)
}

// Return returns a copy of the return stack, bottom first.
func (i *Instance) Return() []mem.Cell {
	return append([]mem.Cell(nil), i.ret...)
}

// Depth returns the data stack depth.
func (i *Instance) Depth() int { return len(i.data) }

// RDepth returns the return stack depth.
func (i *Instance) RDepth() int { return len(i.ret) }

// Halted returns true once the VM has executed bye.
func (i *Instance) Halted() bool { return i.halted }

// InstructionCount returns the number of instructions executed by the last
// call to Execute or Boot.
func (i *Instance) InstructionCount() int64 { return i.insCount }

// Reset clears both stacks and the halted state.
func (i *Instance) Reset() {
	i.data = i.data[:0]
	i.ret = i.ret[:0]
	i.retMark = i.retMark[:0]
	i.base = 0
	i.done = false
	i.halted = false
	i.IP = 0
}

// Push pushes v on top of the data stack.
func (i *Instance) Push(v mem.Cell) error {
	if len(i.data) == cap(i.data) {
		return StackOverflow
	}
	i.data = append(i.data, i.Image.Norm(v))
	return nil
}

// Pop pops the value on top of the data stack and returns it.
func (i *Instance) Pop() (mem.Cell, error) {
	if len(i.data) == 0 {
		return 0, StackUnderflow
	}
	v := i.data[len(i.data)-1]
	i.data = i.data[:len(i.data)-1]
	return v, nil
}

// Rpush pushes v on top of the return stack.
func (i *Instance) Rpush(v mem.Cell) error {
	if len(i.ret) == cap(i.ret) {
		return RStackOverflow
	}
	i.ret = append(i.ret, i.Image.Norm(v))
	i.markReturn(false)
	return nil
}

// Rpop pops the value on top of the return stack and returns it.
func (i *Instance) Rpop() (mem.Cell, error) {
	if len(i.ret) == 0 {
		return 0, RStackUnderflow
	}
	v := i.ret[len(i.ret)-1]
	i.ret = i.ret[:len(i.ret)-1]
	return v, nil
}
