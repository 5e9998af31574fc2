package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DalmoMendonca/integral-bots/pkg/config"
	"github.com/DalmoMendonca/integral-bots/pkg/logging"
	"github.com/DalmoMendonca/integral-bots/pkg/persona"
	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

var personasFile string

// NewRootCmd returns the root command. Without a subcommand it performs
// one run.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "integral-bots",
		Short:         "Run the integral persona bots on Bluesky",
		Long:          "integral-bots answers mentions and posts about the news as a set of personas, one pass per invocation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&personasFile, "personas", "", "YAML persona overrides (default $PERSONAS_FILE)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStateCmd())
	rootCmd.AddCommand(newPersonasCmd())
	rootCmd.AddCommand(newCheckLLMCmd())
	return rootCmd
}

// setup loads the environment, the persona registry and the validated
// configuration.
func setup() (*logrus.Logger, *persona.Registry, *config.Config, error) {
	logger := logging.NewLogger()
	config.LoadEnv(logger)

	reg, err := loadRegistry()
	if err != nil {
		return logger, nil, nil, err
	}
	cfg, err := config.Load(reg.IDs())
	if err != nil {
		return logger, reg, nil, err
	}
	return logger, reg, cfg, nil
}

func loadRegistry() (*persona.Registry, error) {
	path := personasFile
	if path == "" {
		path = config.PersonasFileFromEnv()
	}
	if path == "" {
		return persona.Default(), nil
	}
	reg, err := persona.LoadFile(path)
	if err != nil {
		return nil, types.Wrap(types.ErrConfiguration, err)
	}
	return reg, nil
}
