// Command voicectl drives a running assistant through its control surface.
//
//	voicectl [--addr host:port] toggle|start|stop|status|stop-speaking
//	voicectl [--addr host:port] send <command words...>
//	voicectl [--addr host:port] speak <text...>
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/inbox-voice-lab/internal/control"
	"github.com/inbox-voice-lab/internal/logging"
)

var version = "dev"

// toolFor maps a subcommand to its tool and arguments.
func toolFor(cmd string, rest []string) (string, map[string]any, error) {
	text := strings.Join(rest, " ")
	switch cmd {
	case "toggle":
		return control.ToolToggle, nil, nil
	case "start":
		return control.ToolStart, nil, nil
	case "stop":
		return control.ToolStop, nil, nil
	case "status":
		return control.ToolStatus, nil, nil
	case "stop-speaking":
		return control.ToolStopSpeaking, nil, nil
	case "send":
		if text == "" {
			return "", nil, fmt.Errorf("send needs a command")
		}
		return control.ToolSendVoiceCommand, map[string]any{"command": text}, nil
	case "speak":
		if text == "" {
			return "", nil, fmt.Errorf("speak needs text")
		}
		return control.ToolSpeak, map[string]any{"text": text}, nil
	default:
		return "", nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func defaultAddr() string {
	if v := os.Getenv("CONTROL_ADDR"); v != "" {
		return v
	}
	return "127.0.0.1:9001"
}

func main() {
	addr := pflag.StringP("addr", "a", defaultAddr(), "assistant control address")
	timeout := pflag.DurationP("timeout", "t", 15*time.Second, "overall timeout")
	pflag.Parse()
	logging.Init()
	defer logging.Sync()

	args := pflag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: voicectl [--addr host:port] toggle|start|stop|status|stop-speaking|send TEXT|speak TEXT")
		os.Exit(2)
	}
	tool, toolArgs, err := toolFor(args[0], args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := control.NewClient("voicectl", version)
	if err := c.Connect(ctx, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	out, err := c.Call(ctx, tool, toolArgs)
	if err != nil {
		logging.Warnw("voicectl: call failed", "tool", tool, "err", err)
		fmt.Fprintln(os.Stderr, err)
		c.Close()
		os.Exit(1)
	}
	fmt.Println(out)
}
