package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/de-tools/flowlog-atlas/pkg/runtime/terminal"
	"github.com/de-tools/flowlog-atlas/pkg/services/azure"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
)

func main() {
	cli := terminal.NewCLI(terminal.Options{
		Connect: func(_ context.Context, tenant string) (platform.Platform, error) {
			cred, err := azure.NewCredential(tenant)
			if err != nil {
				return nil, err
			}
			return azure.NewPlatform(cred, nil)
		},
		Profile: func(profile string) (*azure.Config, error) {
			return azure.LoadConfig("", profile)
		},
		Output: os.Stdout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
