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

package eforth

import (
	"io"
	"strconv"

	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
)

// DumpVM section separators.
const (
	sepData = '\x1C' // FS
	sepNext = '\x1D' // GS
)

// appendCells appends sep followed by the decimal values of cells separated
// by spaces.
func appendCells(b []byte, sep byte, cells []mem.Cell) []byte {
	b = append(b, sep)
	for n, v := range cells {
		if n > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendInt(b, int64(v), 10)
	}
	return b
}

// DumpVM writes the state of the VM in a compact machine readable form: the
// data stack, the return stack and the program space cells up to Here, each
// introduced by a separator control character (FS, GS, GS) and with values
// separated by spaces.
func DumpVM(i *vm.Instance, w io.Writer) error {
	img := i.Image
	code := make([]mem.Cell, 0, img.Here/img.Width())
	for a := 0; a+img.Width() <= img.Here; a += img.Width() {
		v, err := img.Fetch(a)
		if err != nil {
			return err
		}
		code = append(code, v)
	}
	b := appendCells(nil, sepData, i.Data())
	b = appendCells(b, sepNext, i.Return())
	b = appendCells(b, sepNext, code)
	_, err := w.Write(b)
	return err
}
