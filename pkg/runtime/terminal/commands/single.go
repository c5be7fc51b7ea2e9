package commands

import (
	"fmt"

	"github.com/de-tools/flowlog-atlas/pkg/services/inventory"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
	"github.com/de-tools/flowlog-atlas/pkg/store/csv"
	"github.com/spf13/cobra"
)

type SingleCmd struct {
	env          *Env
	flags        runFlags
	subscription string
	profile      string
}

func NewSingleCmd(env *Env) *cobra.Command {
	sc := &SingleCmd{env: env}
	cmd := &cobra.Command{
		Use:   "single",
		Short: "Export or reconcile the flow logs of one subscription",
		Long: "Works on a single subscription, taken from --subscription or from the\n" +
			"Azure CLI profile. Inventories use the columns without TAInterval.",
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	sc.flags.register(cmd)
	cmd.Flags().StringVar(&sc.subscription, "subscription", "", "Subscription ID or name (default: the one of the Azure CLI profile)")
	cmd.Flags().StringVar(&sc.profile, "profile", "", "Azure CLI profile to read the subscription from (default \"default\")")

	return cmd
}

func (sc *SingleCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sc.flags.applyDefaults(cmd, sc.env.Settings)
	if !cmd.Flags().Changed("profile") {
		sc.profile = sc.env.Settings.Profile
	}

	subscription := sc.subscription
	if subscription == "" {
		cfg, err := sc.env.Profile(sc.profile)
		if err != nil {
			return fmt.Errorf("no --subscription given and the Azure profile could not be read: %w", err)
		}
		subscription = cfg.SubscriptionID
		if sc.flags.tenant == "" {
			sc.flags.tenant = cfg.TenantID
		}
	}

	p, err := sc.env.Connect(ctx, sc.flags.tenant)
	if err != nil {
		return fmt.Errorf("failed to connect to Azure: %w", err)
	}
	fixed, err := platform.NewFixed(ctx, p, subscription)
	if err != nil {
		return err
	}

	return execute(ctx, sc.env, &sc.flags, job{
		variant:  "single",
		schema:   csv.SchemaSingle,
		platform: fixed,
		scope:    inventory.Scope{Subscriptions: []string{fixed.Subscription().ID}},
	})
}
