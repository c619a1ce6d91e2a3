// Package cli implements the carebook command line.
package cli

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/internal/logging"
)

type rootOptions struct {
	configPath string
	logOut     io.Writer
}

// NewRootCommand builds the carebook command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "carebook",
		Short: "Patient and doctor appointment portal",
		Long: `carebook serves the appointment portal: patients find doctors and book
appointments, doctors review and complete them. Every piece of business data lives
behind the remote appointment API; the portal keeps only the login session.

Configuration is read from the YAML file given by --config, a .env file in the
working directory and CAREBOOK_* environment variables, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newServeCommand(opts),
		newStubAPICommand(opts),
		newConfigCommand(opts),
	)
	return root
}

// ExecuteContext runs the command line until ctx is cancelled or the command returns.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *rootOptions) load() (carebook.Config, *logrus.Logger, error) {
	cfg, err := carebook.LoadConfig(o.configPath)
	if err != nil {
		return carebook.Config{}, nil, err
	}
	log, err := logging.New(cfg.Log, o.logOut)
	if err != nil {
		return carebook.Config{}, nil, err
	}
	return cfg, log, nil
}
