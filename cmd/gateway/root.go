package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carrega o estado resolvido no PersistentPreRunE e compartilhado
// entre os subcomandos.
type app struct {
	cfgFile  string
	logLevel string

	v   *viper.Viper
	cfg Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Admission-control reverse proxy",
		Long:          "Reverse proxy that applies cooldown, graduated throttling and per-route quotas before forwarding to the upstream API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./admission.yaml or ./config/admission.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newServeCmd(a),
		newCooldownCmd(a),
		newStatsCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load() error {
	v, err := newViper(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		v.Set("logging.level", a.logLevel)
	}
	cfg, err := decodeConfig(v)
	if err != nil {
		return err
	}
	a.v, a.cfg = v, cfg
	return nil
}
