package terminal

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/de-tools/flowlog-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/flowlog-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/flowlog-atlas/pkg/services/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	env       *commands.Env
	logOutput io.Writer
	rootCmd   *cobra.Command

	cfgPath  string
	logLevel string
	noColor  bool
}

// Options contain configuration for the CLI
type Options struct {
	Connect commands.Connector
	Profile commands.ProfileLoader
	// Output receives reports, LogOutput receives logs. They default to
	// stdout and stderr.
	Output    io.Writer
	LogOutput io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	cli := &CLI{
		env: &commands.Env{
			Connect:  opts.Connect,
			Profile:  opts.Profile,
			Reporter: export.NewReporter(opts.Output),
		},
		logOutput: opts.LogOutput,
	}

	cli.rootCmd = cli.newRootCmd()
	cli.rootCmd.SetOut(opts.Output)
	return cli
}

func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

func (cli *CLI) ExecuteContext(ctx context.Context, args ...string) error {
	if args != nil {
		cli.rootCmd.SetArgs(args)
	}
	return cli.rootCmd.ExecuteContext(ctx)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "flowlogs",
		Short:             "Export and reconcile Azure network flow logs",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: cli.setup,
	}

	cmd.PersistentFlags().StringVar(&cli.cfgPath, "config", "", "Config file (default is $HOME/.flowlogs.yaml)")
	cmd.PersistentFlags().StringVar(&cli.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().BoolVar(&cli.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(commands.NewSingleCmd(cli.env))
	cmd.AddCommand(commands.NewMultiCmd(cli.env))
	cmd.AddCommand(commands.NewPolicyCmd())
	cmd.AddCommand(commands.NewHistoryCmd(cli.env))

	return cmd
}

// setup loads .env and the settings file, then puts the logger into the
// command context.
func (cli *CLI) setup(cmd *cobra.Command, _ []string) error {
	envErr := godotenv.Load()

	settings, err := config.Load(cli.cfgPath)
	if err != nil {
		return err
	}
	if cli.logLevel != "" {
		settings.LogLevel = cli.logLevel
	}
	level, err := settings.Level()
	if err != nil {
		return err
	}
	if cli.noColor {
		cli.env.Reporter.WithColor(false)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: cli.logOutput, NoColor: cli.noColor}).
		Level(level).
		With().
		Timestamp().
		Logger()
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn().Err(envErr).Msg("failed to load .env file")
	}

	cli.env.Settings = *settings
	cmd.SetContext(logger.WithContext(cmd.Context()))
	return nil
}
