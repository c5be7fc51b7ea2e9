package commands

import (
	"fmt"
	"os"

	"github.com/de-tools/flowlog-atlas/policy"
	"github.com/spf13/cobra"
)

func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the flow log remediation policy",
	}
	cmd.AddCommand(newPolicyShowCmd(), newPolicyValidateCmd())
	return cmd
}

func newPolicyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the policy definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(policy.Document())
			return err
		},
	}
}

func newPolicyValidateCmd() *cobra.Command {
	var paramsPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a parameter assignment against the policy definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, err := policy.Load()
			if err != nil {
				return err
			}

			f, err := os.Open(paramsPath)
			if err != nil {
				return fmt.Errorf("failed to open parameters: %w", err)
			}
			defer f.Close()

			values, err := policy.ReadAssignment(f)
			if err != nil {
				return err
			}
			if err := def.Validate(values); err != nil {
				return fmt.Errorf("invalid parameters for %q:\n%w", def.DisplayName, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parameters are valid for %q\n", def.DisplayName)
			for _, name := range def.ParameterNames() {
				if v, ok := values[name]; ok {
					fmt.Fprintf(out, "  %s: %v\n", name, v)
				} else {
					fmt.Fprintf(out, "  %s: %v (default)\n", name, def.Parameters[name].DefaultValue)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&paramsPath, "params", "", "JSON file with the parameter values")
	_ = cmd.MarkFlagRequired("params")

	return cmd
}
