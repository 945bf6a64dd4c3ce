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
	"bufio"
	"io"
)

type flusher interface {
	Flush() error
}

// multiReader reads from a stack of readers, discarding each one when it
// reaches EOF.
type multiReader struct {
	readers []io.ByteReader
}

func (mr *multiReader) ReadByte() (c byte, err error) {
	for len(mr.readers) > 0 {
		c, err = mr.readers[0].ReadByte()
		if err != io.EOF {
			return c, err
		}
		if cl, ok := mr.readers[0].(io.Closer); ok {
			cl.Close()
		}
		mr.readers = mr.readers[1:]
	}
	return 0, io.EOF
}

func (mr *multiReader) pushReader(r io.Reader) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	mr.readers = append([]io.ByteReader{br}, mr.readers...)
}

// PushInput sets r as the current input Reader for the VM. When this reader
// reaches EOF, the previously pushed reader will be used.
func (i *Instance) PushInput(r io.Reader) {
	i.in.pushReader(r)
}

// Output returns the output Writer, nil if none was configured.
func (i *Instance) Output() io.Writer { return i.output }

// Flush flushes the output Writer if it supports it.
func (i *Instance) Flush() error {
	if f, ok := i.output.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// rx reads one byte from the input stack. ok is false when all inputs are
// exhausted.
func (i *Instance) rx() (c byte, ok bool) {
	if err := i.Flush(); err != nil {
		panic(trap{t: IOError, err: err})
	}
	c, err := i.in.ReadByte()
	switch err {
	case nil:
		return c, true
	case io.EOF:
		return 0, false
	default:
		panic(trap{t: IOError, err: err})
	}
}

// tx writes c to the output. Output is discarded if no Writer is configured.
func (i *Instance) tx(c byte) {
	if i.output == nil {
		return
	}
	if _, err := i.output.Write([]byte{c}); err != nil {
		panic(trap{t: IOError, err: err})
	}
}

func (i *Instance) txs(b []byte) {
	if i.output == nil {
		return
	}
	if _, err := i.output.Write(b); err != nil {
		panic(trap{t: IOError, err: err})
	}
}
