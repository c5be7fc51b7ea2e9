package commands

import (
	"context"

	"github.com/de-tools/flowlog-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/flowlog-atlas/pkg/services/azure"
	"github.com/de-tools/flowlog-atlas/pkg/services/config"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
)

// Connector returns the platform for a tenant. An empty tenant means the
// credential's home tenant.
type Connector func(ctx context.Context, tenant string) (platform.Platform, error)

// ProfileLoader reads an Azure CLI profile.
type ProfileLoader func(profile string) (*azure.Config, error)

// Env is shared by every command. Settings are filled in by the root
// command before a subcommand runs.
type Env struct {
	Settings config.Settings
	Connect  Connector
	Profile  ProfileLoader
	Reporter *export.Reporter
}
