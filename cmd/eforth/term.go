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

//go:build !windows

package main

import (
	"github.com/pkg/errors"
	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// rawTerm is a terminal switched to byte at a time input. It remembers the
// attributes to put back on Restore.
type rawTerm struct {
	fd    uintptr
	saved unix.Termios
}

// rawFlags clears line editing, echo, signal keys and flow control from t.
// A read returns as soon as one byte is available.
func rawFlags(t *unix.Termios) {
	t.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHONL | unix.ISIG | unix.IEXTEN
	t.Iflag &^= unix.IXON | unix.IXOFF | unix.ISTRIP | unix.BRKINT
	t.Iflag |= unix.IGNBRK
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
}

// openRaw switches the terminal on fd to raw input. Output processing is
// left alone.
func openRaw(fd uintptr) (*rawTerm, error) {
	rt := &rawTerm{fd: fd}
	if err := termios.Tcgetattr(fd, &rt.saved); err != nil {
		return nil, errors.Wrap(err, "get terminal attributes")
	}
	t := rt.saved
	rawFlags(&t)
	if err := termios.Tcsetattr(fd, termios.TCSANOW, &t); err != nil {
		rt.Restore()
		return nil, errors.Wrap(err, "set terminal attributes")
	}
	return rt, nil
}

// Restore puts back the terminal attributes saved by openRaw.
func (rt *rawTerm) Restore() {
	if err := termios.Tcsetattr(rt.fd, termios.TCSANOW, &rt.saved); err != nil {
		log.Warningf("restore terminal: %v", err)
	}
}
