// Command rv32emu loads a freestanding RV32 ELF32 ET_EXEC executable and
// serves it to a GDB client speaking the Remote Serial Protocol over TCP.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xyproto/env/v2"

	"github.com/Grazen0/rv32-emu/internal/emu"
	"github.com/Grazen0/rv32-emu/internal/gdbserver"
)

const usage = `usage: rv32emu [-p port] [-v] <elf-path>

  -p, --port <u16>   TCP port to listen on (default 3333, env RV32EMU_PORT)
  -v, --verbose      enable diagnostic logging (env RV32EMU_VERBOSE)
  -h, --help         show this message
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	defaultPort := env.Int("RV32EMU_PORT", 3333)
	defaultVerbose := env.Bool("RV32EMU_VERBOSE")

	fs := flag.NewFlagSet("rv32emu", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	var port int
	var verbose bool
	fs.IntVar(&port, "p", defaultPort, "TCP port")
	fs.IntVar(&port, "port", defaultPort, "TCP port")
	fs.BoolVar(&verbose, "v", defaultVerbose, "verbose")
	fs.BoolVar(&verbose, "verbose", defaultVerbose, "verbose")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	if port < 0 || port > 0xFFFF {
		fmt.Fprintf(os.Stderr, "rv32emu: invalid port %d\n", port)
		return 1
	}

	emu.Verbose = verbose

	elfPath := fs.Arg(0)
	data, err := os.ReadFile(elfPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rv32emu: %v\n", err)
		return 1
	}

	mem, entry, err := emu.LoadElf(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rv32emu: %v\n", err)
		return 1
	}
	emu.Debugf("entry point: 0x%08X\n", entry)

	cpu := emu.NewCpu(mem, entry)

	srv, err := gdbserver.Listen(uint16(port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "rv32emu: %v\n", err)
		return 1
	}
	defer srv.Close()

	quit := &gdbserver.Quit{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		quit.Set()
		srv.Close()
		signal.Stop(sigCh)
		signal.Reset(syscall.SIGINT)
		syscall.Kill(syscall.Getpid(), syscall.SIGINT)
	}()

	emu.Debugf("listening on port %d\n", port)
	if err := srv.AcceptAndRun(cpu, quit); err != nil {
		fmt.Fprintf(os.Stderr, "rv32emu: %v\n", err)
		return 1
	}

	return 0
}
