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

package mem

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

const (
	imageMagic   = "eForth1"
	imageVersion = 1
)

// envelope is the on-disk representation of an image.
type envelope struct {
	Magic    string `cbor:"1,keyasint"`
	Version  int    `cbor:"2,keyasint"`
	Width    int    `cbor:"3,keyasint"`
	Order    string `cbor:"4,keyasint"`
	Split    int    `cbor:"5,keyasint"`
	Here     int    `cbor:"6,keyasint"`
	DataHere int    `cbor:"7,keyasint"`
	Latest   int    `cbor:"8,keyasint"`
	Entry    int    `cbor:"9,keyasint"`
	Mem      []byte `cbor:"10,keyasint"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(errors.Wrap(err, "cbor encoding mode"))
	}
	encMode = em
}

func orderName(o binary.ByteOrder) string {
	if o == binary.LittleEndian {
		return "little"
	}
	return "big"
}

// Save writes the image to w.
func (i *Image) Save(w io.Writer) error {
	env := envelope{
		Magic:    imageMagic,
		Version:  imageVersion,
		Width:    i.width,
		Order:    orderName(i.order),
		Split:    i.split,
		Here:     i.Here,
		DataHere: i.DataHere,
		Latest:   i.Latest,
		Entry:    i.Entry,
		Mem:      i.mem,
	}
	return errors.Wrap(encMode.NewEncoder(w).Encode(&env), "image encoding failed")
}

// Load reads an image written by Save.
func Load(r io.Reader) (*Image, error) {
	var env envelope
	if err := cbor.NewDecoder(r).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "image decoding failed")
	}
	if env.Magic != imageMagic {
		return nil, errors.Errorf("not an eForth1 image (magic %q)", env.Magic)
	}
	if env.Version != imageVersion {
		return nil, errors.Errorf("unsupported image version %d", env.Version)
	}
	i := &Image{data: len(env.Mem) - env.Split}
	if err := Width(env.Width)(i); err != nil {
		return nil, err
	}
	switch env.Order {
	case "big":
		i.order = binary.BigEndian
	case "little":
		i.order = binary.LittleEndian
	default:
		return nil, errors.Errorf("unsupported byte order %q", env.Order)
	}
	if err := i.init(len(env.Mem)); err != nil {
		return nil, err
	}
	if i.split != env.Split {
		return nil, errors.Errorf("misaligned split point 0x%04x", env.Split)
	}
	size := len(env.Mem)
	if env.Here < 2*i.width || env.Here > env.Split ||
		env.DataHere < env.Split || env.DataHere > size ||
		env.Latest < 0 || env.Latest >= env.Split ||
		env.Entry < 0 || env.Entry >= env.Split {
		return nil, errors.New("corrupted image registers")
	}
	i.mem = env.Mem
	i.Here, i.DataHere, i.Latest, i.Entry = env.Here, env.DataHere, env.Latest, env.Entry
	return i, nil
}

// SaveFile saves the image to the named file. The file is removed if saving
// fails.
func (i *Image) SaveFile(fileName string) (err error) {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "create failed")
	}
	w := bufio.NewWriter(f)
	defer func() {
		if ferr := w.Flush(); err == nil {
			err = errors.Wrap(ferr, "write failed")
		}
		f.Close()
		if err != nil {
			os.Remove(fileName)
		}
	}()
	return i.Save(w)
}

// LoadFile loads an image from the named file.
func LoadFile(fileName string) (*Image, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "open failed")
	}
	defer f.Close()
	i, err := Load(bufio.NewReader(f))
	return i, errors.Wrapf(err, "load %s", fileName)
}
