// Package main is the entry point for the homescout CLI.
package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/jmylchreest/homescout/cmd/homescout/commands"
	"github.com/jmylchreest/homescout/internal/version"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		commands.Root(),
		fang.WithVersion(version.String()),
		fang.WithCommit(version.Get().Commit),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}
