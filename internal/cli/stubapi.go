package cli

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/carebook/internal/stubapi"
)

// demoPassword is shared by every seeded demo account.
const demoPassword = "password123"

var demoDoctors = []struct {
	name, email, specialization string
}{
	{"Sarah Chen", "sarah.chen@carebook.test", "Cardiology"},
	{"Miguel Alvarez", "miguel.alvarez@carebook.test", "Dermatology"},
	{"Priya Raman", "priya.raman@carebook.test", "Pediatrics"},
	{"Jonas Weber", "jonas.weber@carebook.test", "Neurology"},
}

func newStubAPICommand(root *rootOptions) *cobra.Command {
	var (
		addr string
		seed bool
	)

	cmd := &cobra.Command{
		Use:   "stub-api",
		Short: "Run an in-memory appointment API for local development",
		Long: `Run an in-memory implementation of the remote appointment API under /api/v1.
State is lost on exit. With --seed, demo doctors and a demo patient are created,
all with password "` + demoPassword + `".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.StubAPI.Addr = addr
			}
			if cmd.Flags().Changed("seed") {
				cfg.StubAPI.SeedDemo = seed
			}
			if err := cfg.ValidateStubAPI(); err != nil {
				return err
			}

			signingKey, err := cfg.StubAPI.SigningKeyBytes()
			if err != nil {
				return err
			}
			stub, err := stubapi.New(stubapi.Config{
				Secret:     []byte(cfg.StubAPI.Secret),
				SigningKey: signingKey,
				TokenTTL:   cfg.StubAPI.TokenTTL,
				BcryptCost: cfg.StubAPI.BcryptCost,
			}, log.WithField("component", "stub-api"))
			if err != nil {
				return err
			}
			if cfg.StubAPI.SeedDemo {
				if err := seedDemo(stub, log); err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:        cfg.StubAPI.Addr,
				Handler:     stub.Handler(),
				ReadTimeout: cfg.Server.ReadTimeout,
				IdleTimeout: cfg.Server.IdleTimeout,
			}
			return runServer(cmd.Context(), srv, cfg.Server.ShutdownTimeout, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides stub_api.addr)")
	cmd.Flags().BoolVar(&seed, "seed", false, "create demo accounts (overrides stub_api.seed_demo)")
	return cmd
}

func seedDemo(stub *stubapi.Server, log logrus.FieldLogger) error {
	for _, d := range demoDoctors {
		if _, err := stub.SeedDoctor(d.name, d.email, demoPassword, d.specialization); err != nil {
			return fmt.Errorf("seed doctor %s: %w", d.email, err)
		}
	}
	if _, err := stub.SeedPatient("Alex Morgan", "alex.morgan@carebook.test", demoPassword); err != nil {
		return fmt.Errorf("seed patient: %w", err)
	}
	log.WithField("doctors", len(demoDoctors)).Info("demo accounts seeded")
	return nil
}
