package commands

import (
	"fmt"

	"github.com/de-tools/flowlog-atlas/pkg/services/inventory"
	"github.com/de-tools/flowlog-atlas/pkg/services/reconcile"
	"github.com/de-tools/flowlog-atlas/pkg/store/csv"
	"github.com/spf13/cobra"
)

type MultiCmd struct {
	env           *Env
	flags         runFlags
	subscriptions []string
}

func NewMultiCmd(env *Env) *cobra.Command {
	mc := &MultiCmd{env: env}
	cmd := &cobra.Command{
		Use:   "multi",
		Short: "Export or reconcile flow logs across subscriptions",
		Long: "Works on the named subscriptions, or on every subscription the signed-in\n" +
			"identity can access, optionally limited to one tenant. Inventories carry\n" +
			"the TAInterval column.",
		Args: cobra.NoArgs,
		RunE: mc.run,
	}

	mc.flags.register(cmd)
	cmd.Flags().StringSliceVar(&mc.subscriptions, "subscription", nil, "Subscription ID or name to include (repeatable)")

	return cmd
}

func (mc *MultiCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	mc.flags.applyDefaults(cmd, mc.env.Settings)

	p, err := mc.env.Connect(ctx, mc.flags.tenant)
	if err != nil {
		return fmt.Errorf("failed to connect to Azure: %w", err)
	}

	return execute(ctx, mc.env, &mc.flags, job{
		variant:  "multi",
		schema:   csv.SchemaMulti,
		platform: p,
		scope: inventory.Scope{
			Subscriptions: mc.subscriptions,
			Tenant:        mc.flags.tenant,
		},
		filter: reconcile.Filter{Subscriptions: mc.subscriptions},
	})
}
