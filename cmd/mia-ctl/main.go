package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/spf13/pflag"

	"mia/internal/ipc"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: mia-ctl [--socket path] trigger | say <text> | file <path> | stop\n")
	cli.PrintDefaults()
}

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = usage
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		args = []string{ipc.CmdTrigger}
	}

	msg := ipc.ControlMessage{Cmd: args[0]}
	switch msg.Cmd {
	case ipc.CmdTrigger, ipc.CmdStop:
		if len(args) != 1 {
			usage()
			os.Exit(2)
		}
	case ipc.CmdSay, ipc.CmdFile:
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		msg.Arg = strings.Join(args[1:], " ")
		if msg.Cmd == ipc.CmdFile {
			if abs, err := filepath.Abs(msg.Arg); err == nil {
				msg.Arg = abs
			}
		}
	default:
		usage()
		os.Exit(2)
	}

	if err := ipc.SendCommand(*socket, msg); err != nil {
		fmt.Println("mia-daemon not running:", err)
		os.Exit(1)
	}
}
