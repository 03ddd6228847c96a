// cmdshell - an interactive command shell, served locally or over TCP/TLS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cmdshell/cmd"
)

func main() {
	// SIGINT is routed by cmd.Execute: it must reach the interpreter as
	// an advisory rather than cancel the whole process.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cmdshell: %v\n", err)
		os.Exit(1)
	}
}
