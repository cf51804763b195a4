package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// newCtlAttachCmd opens an interactive stream connection: the local
// terminal is put into raw mode so every keystroke is forwarded
// byte-for-byte, and incoming frames are written straight to stdout.
func newCtlAttachCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <id>",
		Short: "Attach an interactive stream to a terminal session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttach(cmd.Context(), *addr, args[0])
		},
	}
}

func runAttach(ctx context.Context, addr, id string) error {
	wsURL := strings.Replace(addr, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL += "/ws/terminal/" + id

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.CloseNow()

	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		prevState, err := term.MakeRaw(stdinFd)
		if err == nil {
			defer term.Restore(stdinFd, prevState)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			os.Stdout.Write(data)
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if werr := conn.Write(ctx, websocket.MessageBinary, buf[:n]); werr != nil {
				break
			}
		}
		if err != nil {
			if err != io.EOF {
				break
			}
			break
		}
		select {
		case <-done:
			return nil
		default:
		}
	}
	<-done
	return nil
}
