package main

import (
	"fmt"
	"os"

	"termrt/internal/cmd"
)

func main() {
	if err := cmd.NewDaemonRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
