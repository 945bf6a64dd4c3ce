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
	"github.com/db47h/eforth1/mem"
	"github.com/pkg/errors"
)

// StringCodec reads and writes counted strings (a length byte followed by
// the characters) in an image.
var StringCodec stringCodec

type stringCodec struct{}

// Decode returns the counted string at address a. The returned slice aliases
// image memory.
func (stringCodec) Decode(img *mem.Image, a int) ([]byte, error) {
	n, err := img.FetchByte(a)
	if err != nil {
		return nil, err
	}
	if a+1+int(n) > img.Size() {
		return nil, errors.Wrapf(mem.ErrAddress, "string at 0x%04x", a)
	}
	return img.Bytes()[a+1 : a+1+int(n)], nil
}

// Encode writes s as a counted string at address a. Strings longer than 255
// bytes cannot be encoded.
func (stringCodec) Encode(img *mem.Image, a int, s []byte) error {
	if len(s) > 255 {
		return errors.Errorf("string too long: %d bytes", len(s))
	}
	if a < 0 || a+1+len(s) > img.Size() {
		return errors.Wrapf(mem.ErrAddress, "string at 0x%04x", a)
	}
	img.StoreByte(a, byte(len(s)))
	copy(img.Bytes()[a+1:], s)
	return nil
}
