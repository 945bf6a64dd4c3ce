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

// Package mem implements the byte addressed memory image shared by the
// eforth1 compiler and virtual machine.
//
// An image is split in two regions: program space, where the dictionary and
// compiled code live, grows upward from address 0; data space, where
// variables and buffers live, sits above the split point. The first two cells
// of program space are reserved for the boot vector.
package mem

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Cell is the raw type of a value on the VM stacks. Values stored in an image
// are truncated to the image cell width and sign extended when read back.
type Cell int32

// Memory errors.
var (
	ErrOutOfMemory = errors.New("out of memory")
	ErrAddress     = errors.New("illegal address")
)

const (
	// DefaultSize is the default image size in bytes.
	DefaultSize = 8192
	// DefaultDataSpace is the default size of the data space in bytes.
	DefaultDataSpace = 1024
)

// Image is a fixed size memory image.
//
// Here, DataHere and Latest are the allocation registers: Here is the next
// free byte in program space, DataHere the next free byte in data space and
// Latest the name field address of the newest dictionary entry (0 when the
// dictionary is empty). Entry is the address the boot vector jumps to.
type Image struct {
	Here     int
	DataHere int
	Latest   int
	Entry    int

	mem   []byte
	width int
	order binary.ByteOrder
	split int
	data  int
}

// Option interface
type Option func(*Image) error

// Width sets the cell width in bytes. Supported widths are 2 and 4. The
// default is 2.
func Width(w int) Option {
	return func(i *Image) error {
		switch w {
		case 2, 4:
			i.width = w
			return nil
		}
		return errors.Errorf("%d bytes cells not supported", w)
	}
}

// ByteOrder sets the byte order of cells in the image. The default is
// big endian.
func ByteOrder(o binary.ByteOrder) Option {
	return func(i *Image) error {
		if o == nil {
			return errors.New("nil byte order")
		}
		i.order = o
		return nil
	}
}

// DataSpace sets the size in bytes of the data space at the top of the image.
func DataSpace(n int) Option {
	return func(i *Image) error {
		if n < 0 {
			return errors.Errorf("invalid data space size %d", n)
		}
		i.data = n
		return nil
	}
}

// New returns a zeroed image of the given size in bytes.
func New(size int, opts ...Option) (*Image, error) {
	i := &Image{
		width: 2,
		order: binary.BigEndian,
		data:  -1,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	if i.data < 0 {
		i.data = DefaultDataSpace
		if i.data > size/4 {
			i.data = size / 4
		}
	}
	if err := i.init(size); err != nil {
		return nil, err
	}
	i.mem = make([]byte, size)
	return i, nil
}

func (i *Image) init(size int) error {
	if size > 1<<(8*uint(i.width)) {
		return errors.Errorf("image size %d too large for %d bytes cells", size, i.width)
	}
	if size%i.width != 0 {
		return errors.Errorf("image size %d not a multiple of the cell width", size)
	}
	i.data = i.Align(i.data)
	i.split = size - i.data
	if i.split < 4*i.width {
		return errors.Errorf("image size %d too small", size)
	}
	i.Here = 2 * i.width
	i.DataHere = i.split
	return nil
}

// Width returns the cell width in bytes.
func (i *Image) Width() int { return i.width }

// Order returns the byte order used to store cells.
func (i *Image) Order() binary.ByteOrder { return i.order }

// Size returns the image size in bytes.
func (i *Image) Size() int { return len(i.mem) }

// Split returns the address of the first byte of data space.
func (i *Image) Split() int { return i.split }

// Bytes returns the raw image memory. Changes to the returned slice are
// reflected in the image.
func (i *Image) Bytes() []byte { return i.mem }

// Room returns the number of free bytes left in program space.
func (i *Image) Room() int { return i.split - i.Here }

// Norm truncates v to the cell width and sign extends the result.
func (i *Image) Norm(v Cell) Cell {
	if i.width == 2 {
		return Cell(int16(v))
	}
	return v
}

// Addr returns the unsigned interpretation of v as an address.
func (i *Image) Addr(v Cell) int {
	if i.width == 2 {
		return int(uint16(v))
	}
	return int(uint32(v))
}

// Align rounds a up to the next cell boundary.
func (i *Image) Align(a int) int {
	return (a + i.width - 1) &^ (i.width - 1)
}

func (i *Image) check(a, n int) error {
	if a < 0 || n < 0 || a+n > len(i.mem) {
		return errors.Wrapf(ErrAddress, "0x%04x", a)
	}
	return nil
}

// Fetch returns the cell at address a.
func (i *Image) Fetch(a int) (Cell, error) {
	if err := i.check(a, i.width); err != nil {
		return 0, err
	}
	if i.width == 2 {
		return Cell(int16(i.order.Uint16(i.mem[a:]))), nil
	}
	return Cell(int32(i.order.Uint32(i.mem[a:]))), nil
}

// Store stores v at address a.
func (i *Image) Store(a int, v Cell) error {
	if err := i.check(a, i.width); err != nil {
		return err
	}
	if i.width == 2 {
		i.order.PutUint16(i.mem[a:], uint16(v))
	} else {
		i.order.PutUint32(i.mem[a:], uint32(v))
	}
	return nil
}

// FetchByte returns the byte at address a.
func (i *Image) FetchByte(a int) (byte, error) {
	if err := i.check(a, 1); err != nil {
		return 0, err
	}
	return i.mem[a], nil
}

// StoreByte stores b at address a.
func (i *Image) StoreByte(a int, b byte) error {
	if err := i.check(a, 1); err != nil {
		return err
	}
	i.mem[a] = b
	return nil
}

// Copy copies n bytes from src to dst. The regions may overlap.
func (i *Image) Copy(dst, src, n int) error {
	if err := i.check(src, n); err != nil {
		return err
	}
	if err := i.check(dst, n); err != nil {
		return err
	}
	copy(i.mem[dst:dst+n], i.mem[src:src+n])
	return nil
}

// Reserve allocates n bytes in program space and returns the address of the
// first one. Here is left unchanged on failure.
func (i *Image) Reserve(n int) (int, error) {
	if n < 0 || i.Here+n > i.split {
		return 0, errors.Wrapf(ErrOutOfMemory, "program space: need %d bytes, %d left", n, i.Room())
	}
	a := i.Here
	i.Here += n
	return a, nil
}

// ReserveData allocates n bytes in data space and returns the address of the
// first one.
func (i *Image) ReserveData(n int) (int, error) {
	if n < 0 || i.DataHere+n > len(i.mem) {
		return 0, errors.Wrapf(ErrOutOfMemory, "data space: need %d bytes, %d left", n, len(i.mem)-i.DataHere)
	}
	a := i.DataHere
	i.DataHere += n
	return a, nil
}

// AlignHere pads program space with zeros up to the next cell boundary.
func (i *Image) AlignHere() error {
	n := i.Align(i.Here) - i.Here
	a, err := i.Reserve(n)
	if err != nil {
		return err
	}
	for ; n > 0; n-- {
		i.mem[a] = 0
		a++
	}
	return nil
}

// Comma appends v to program space.
func (i *Image) Comma(v Cell) error {
	a, err := i.Reserve(i.width)
	if err != nil {
		return err
	}
	return i.Store(a, v)
}

// CComma appends the byte b to program space.
func (i *Image) CComma(b byte) error {
	a, err := i.Reserve(1)
	if err != nil {
		return err
	}
	i.mem[a] = b
	return nil
}

// Mark is a snapshot of the allocation registers.
type Mark struct {
	Here     int
	DataHere int
	Latest   int
}

// Mark returns a snapshot of the allocation registers.
func (i *Image) Mark() Mark {
	return Mark{i.Here, i.DataHere, i.Latest}
}

// Rollback restores the allocation registers saved by Mark. Memory released
// this way is zeroed.
func (i *Image) Rollback(m Mark) {
	if m.Here < i.Here {
		clear(i.mem[m.Here:i.Here])
	}
	if m.DataHere < i.DataHere {
		clear(i.mem[m.DataHere:i.DataHere])
	}
	i.Here, i.DataHere, i.Latest = m.Here, m.DataHere, m.Latest
}
