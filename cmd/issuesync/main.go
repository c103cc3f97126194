// Package main provides the entry point for the issuesync CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Aman-CERP/issuesync/cmd/issuesync/cmd"
	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprint(os.Stderr, serrors.FormatForCLI(err))
		os.Exit(1)
	}
}
