package main

import (
	"fmt"
	"os"

	"courier/internal/ctl"
)

func main() {
	cmd, err := ctl.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: courierctl <health|stats> [--server URL]")
		os.Exit(1)
	}

	if err := ctl.Run(cmd, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
