package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/carebook"
)

const redacted = "<redacted>"

func newConfigCommand(root *rootOptions) *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration carebook would run with after merging defaults, the
config file and the environment. Secrets are redacted unless --show-secrets is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := carebook.LoadConfig(root.configPath)
			if err != nil {
				return err
			}
			if !showSecrets {
				redact(&cfg)
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secrets in clear text")
	return cmd
}

func redact(cfg *carebook.Config) {
	for _, s := range []*string{
		&cfg.Session.SealKey,
		&cfg.Redis.Password,
		&cfg.API.VerifySecret,
		&cfg.StubAPI.Secret,
		&cfg.StubAPI.SigningKey,
	} {
		if *s != "" {
			*s = redacted
		}
	}
}
