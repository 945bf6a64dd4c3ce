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

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/chzyer/readline"
	"github.com/db47h/eforth1/internal/config"
	"github.com/db47h/eforth1/lang/eforth"
	"github.com/db47h/eforth1/mem"
	"github.com/db47h/eforth1/vm"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

type fileList []string

func (f *fileList) String() string     { return "" }
func (f *fileList) Set(s string) error { *f = append(*f, s); return nil }
func (f *fileList) Get() interface{}   { return *f }

type cellSizeBits int

func (sz *cellSizeBits) String() string { return strconv.Itoa(int(*sz)) }
func (sz *cellSizeBits) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	switch n {
	case 16, 32:
		*sz = cellSizeBits(n)
		return nil
	default:
		return fmt.Errorf("%d bits cells not supported", n)
	}
}
func (sz *cellSizeBits) Get() interface{} { return *sz }

var (
	noRawIO     bool
	debug       bool
	dump        bool
	trace       bool
	outFileName string
	cellBits    cellSizeBits
	log         = commonlog.GetLogger("eforth")
)

// ctrlD turns ^D into the end of input on raw terminals.
type ctrlD struct {
	r *bufio.Reader
}

func (c ctrlD) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil && b == 4 {
		return 0, io.EOF
	}
	return b, err
}

func (c ctrlD) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	p[0] = b
	return 1, nil
}

func setupIO() (raw bool, tearDown func()) {
	if noRawIO || !readline.IsTerminal(int(os.Stdin.Fd())) {
		return false, nil
	}
	rt, err := openRaw(os.Stdin.Fd())
	if err != nil {
		log.Warningf("raw terminal IO: %v", err)
		return false, nil
	}
	return true, rt.Restore
}

func setupLogging(c config.Log) {
	v := c.Verbosity
	if debug && v < 2 {
		v = 2
	}
	var path *string
	if c.File != "" {
		path = &c.File
	}
	commonlog.Configure(v, path)
}

// openImage loads the image file or creates a new empty image if there is
// none.
func openImage(cfg *config.Config) (*mem.Image, error) {
	if fn := cfg.Image.File; fn != "" {
		img, err := mem.LoadFile(fn)
		if err == nil {
			log.Infof("loaded image %s: %d bytes", fn, img.Size())
			return img, nil
		}
		if !os.IsNotExist(errors.Cause(err)) {
			return nil, err
		}
		log.Noticef("image file %s not found, bootstrapping a new kernel", fn)
	}
	opts, err := cfg.ImageOptions()
	if err != nil {
		return nil, err
	}
	return mem.New(cfg.Image.Size, opts...)
}

func evalFile(it *eforth.Interp, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return it.EvalReader(name, bufio.NewReader(f))
}

// repl runs the interactive console. It reads from stdin without line
// editing if stdin is not a terminal.
func repl(it *eforth.Interp, cfg *config.Config, stdout *bufio.Writer) error {
	if !readline.IsTerminal(int(os.Stdin.Fd())) {
		return it.EvalReader("stdin", os.Stdin)
	}
	l, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.REPL.Prompt,
		HistoryFile:     cfg.REPL.History,
		InterruptPrompt: "^C",
		EOFPrompt:       "bye",
	})
	if err != nil {
		return errors.Wrap(err, "readline")
	}
	defer l.Close()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			it.Abort()
			l.SetPrompt(cfg.REPL.Prompt)
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		err = it.Eval(line)
		switch {
		case err == eforth.ErrBye:
			return nil
		case err != nil:
			stdout.Flush()
			if debug {
				fmt.Fprintf(l.Stderr(), "%+v\n", err)
			} else {
				fmt.Fprintf(l.Stderr(), "%v ?\n", err)
			}
		case it.Compiling():
			l.SetPrompt("] ")
		default:
			stdout.WriteString(" ok\n")
			l.SetPrompt(cfg.REPL.Prompt)
		}
		if err = stdout.Flush(); err != nil {
			return err
		}
	}
}

func atExit(it *eforth.Interp, err error) {
	if err == nil {
		return
	}
	if !debug {
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "\n%+v\n", err)
	if it != nil {
		fmt.Fprintf(os.Stderr, "IP: 0x%04x, Stacks: ", it.VM.IP)
		it.VM.DumpStacks(os.Stderr)
	}
	os.Exit(1)
}

func main() {
	var err error
	var it *eforth.Interp

	stdout := bufio.NewWriter(os.Stdout)

	// flush output, catch and log errors
	defer func() {
		stdout.Flush()
		if err == nil && dump && it != nil {
			err = eforth.DumpVM(it.VM, os.Stdout)
		}
		atExit(it, err)
	}()

	var withFiles fileList

	var cfgFile = flag.String("config", "", "load configuration from TOML file `filename`")
	var fileName = flag.String("image", "", "load memory image from file `filename`")
	var size = flag.Int("size", 0, "size in bytes of a new memory image")
	flag.Var(&cellBits, "bits", "cell size in bits of a new memory image (16 or 32)")
	var run = flag.String("run", "", "execute `word` and exit")
	var boot = flag.Bool("boot", false, "execute the image from its boot vector and exit")
	var entry = flag.String("entry", "", "set the boot vector to `word` before saving")
	flag.BoolVar(&dump, "dump", false, "dump stacks and memory image upon exit")
	flag.Var(&withFiles, "with", "evaluate `filename` before starting (can be specified multiple times)")
	flag.BoolVar(&noRawIO, "noraw", false, "disable raw terminal IO for -run and -boot")
	flag.BoolVar(&debug, "debug", false, "enable debug diagnostics")
	flag.BoolVar(&trace, "trace", false, "enable instruction tracing (logged at debug level)")
	flag.StringVar(&outFileName, "o", "", "save the memory image to `filename` upon exit")

	flag.Parse()

	cfg := config.Default()
	if *cfgFile != "" {
		if cfg, err = config.Load(*cfgFile); err != nil {
			return
		}
	}
	if *fileName != "" {
		cfg.Image.File = *fileName
	}
	if *size > 0 {
		cfg.Image.Size = *size
	}
	if cellBits != 0 {
		cfg.Image.Width = int(cellBits) / 8
	}
	if trace {
		cfg.VM.Trace = true
	}
	setupLogging(cfg.Log)

	img, err := openImage(cfg)
	if err != nil {
		return
	}

	opts := append(cfg.VMOptions(), vm.Output(stdout))
	direct := *run != "" || *boot
	if direct {
		// with the terminal in raw mode, ^D has to be handled by hand.
		rawtty, tearDown := setupIO()
		if tearDown != nil {
			defer tearDown()
		}
		if rawtty {
			opts = append(opts, vm.Input(ctrlD{bufio.NewReader(os.Stdin)}))
		} else {
			opts = append(opts, vm.Input(bufio.NewReader(os.Stdin)))
		}
	}
	if it, err = eforth.New(img, opts...); err != nil {
		return
	}

	for _, fn := range withFiles {
		if err = evalFile(it, fn); err != nil {
			break
		}
	}
	switch {
	case err == eforth.ErrBye:
		err = nil
	case err != nil:
		return
	case *run != "":
		var xt int
		if xt, err = it.Compiler.Tick(*run); err == nil {
			err = it.Execute(xt)
		}
	case *boot:
		err = it.Execute(0)
	default:
		err = repl(it, cfg, stdout)
	}
	if err == eforth.ErrBye {
		err = nil
	}
	if err != nil {
		return
	}

	if *entry != "" {
		var xt int
		if xt, err = it.Compiler.Tick(*entry); err != nil {
			return
		}
		if err = it.Compiler.SetEntry(xt); err != nil {
			return
		}
	}
	if outFileName != "" {
		err = img.SaveFile(outFileName)
	}
}
