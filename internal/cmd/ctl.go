package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

// ctlClient is a minimal HTTP client against a running termrtd, used by the
// termrtctl operator commands below.
type ctlClient struct {
	baseURL string
	http    *http.Client
}

func newCtlClient(baseURL string) *ctlClient {
	return &ctlClient{baseURL: baseURL, http: &http.Client{Timeout: 35 * time.Second}}
}

func (c *ctlClient) do(method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

// output is the color-gating helper: ANSI is only emitted on a real
// terminal. The isatty check decides whether the termenv.Output is used for
// styling at all; the profile further downgrades to NoColor automatically
// on a dumb terminal.
type output struct {
	out     *termenv.Output
	colored bool
}

func newOutput() *output {
	colored := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return &output{out: termenv.NewOutput(os.Stdout), colored: colored}
}

func (o *output) statusSymbol(state string) string {
	if !o.colored {
		switch state {
		case "running":
			return "*"
		case "idle":
			return "o"
		case "stopped", "error":
			return "x"
		default:
			return "-"
		}
	}
	var style termenv.Style
	switch state {
	case "running":
		style = o.out.String("●").Foreground(o.out.Color("2"))
	case "idle":
		style = o.out.String("○").Foreground(o.out.Color("3"))
	case "stopped", "error":
		style = o.out.String("●").Foreground(o.out.Color("1"))
	default:
		style = o.out.String("○")
	}
	return style.String()
}

// NewCtlRootCmd builds the termrtctl operator CLI root command: a thin
// HTTP client over the daemon's /terminals surface.
func NewCtlRootCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:   "termrtctl",
		Short: "Operator CLI for termrtd",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:7717", "termrtd base URL")

	root.AddCommand(newCtlListCmd(&addr))
	root.AddCommand(newCtlCreateCmd(&addr))
	root.AddCommand(newCtlExecCmd(&addr))
	root.AddCommand(newCtlKillCmd(&addr))
	root.AddCommand(newCtlAttachCmd(&addr))
	return root
}

type ctlSession struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status struct {
		State   string `json:"state"`
		Message string `json:"message"`
	} `json:"status"`
	Pid int `json:"pid"`
}

func newCtlListCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List running terminal sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newCtlClient(*addr)
			data, status, err := client.do(http.MethodGet, "/terminals", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("list failed: %s", data)
			}
			var resp struct {
				Terminals []ctlSession `json:"terminals"`
				Count     int          `json:"count"`
			}
			if err := json.Unmarshal(data, &resp); err != nil {
				return err
			}
			if resp.Count == 0 {
				fmt.Println("No running sessions.")
				return nil
			}
			out := newOutput()
			for _, s := range resp.Terminals {
				pid := fmt.Sprintf("(pid %d)", s.Pid)
				if out.colored {
					pid = "\033[2m" + pid + "\033[0m"
				}
				fmt.Printf("  %s %s %s — %s\n", out.statusSymbol(s.Status.State), s.Name, pid, s.Status.State)
			}
			return nil
		},
	}
}

func newCtlCreateCmd(addr *string) *cobra.Command {
	var name, shell, cwd string
	c := &cobra.Command{
		Use:   "create",
		Short: "Create a new terminal session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newCtlClient(*addr)
			data, status, err := client.do(http.MethodPost, "/terminals", map[string]any{
				"name": name, "shell": shell, "cwd": cwd,
			})
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("create failed: %s", data)
			}
			fmt.Println(string(data))
			return nil
		},
	}
	c.Flags().StringVar(&name, "name", "", "session name (required)")
	c.Flags().StringVar(&shell, "shell", "", "shell command override")
	c.Flags().StringVar(&cwd, "cwd", "", "working directory override")
	c.MarkFlagRequired("name")
	return c
}

func newCtlExecCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <id> <command...>",
		Short: "Run a command in a terminal session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newCtlClient(*addr)
			command := args[1]
			for _, a := range args[2:] {
				command += " " + a
			}
			data, status, err := client.do(http.MethodPost, "/terminals/"+args[0]+"/exec", map[string]string{"command": command})
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("exec failed: %s", data)
			}
			return nil
		},
	}
}

func newCtlKillCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "kill <id>",
		Short: "Kill a terminal session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newCtlClient(*addr)
			data, status, err := client.do(http.MethodDelete, "/terminals/"+args[0], nil)
			if err != nil {
				return err
			}
			if status != http.StatusNoContent {
				return fmt.Errorf("kill failed: %s", data)
			}
			return nil
		},
	}
}
