package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "REDACTED"

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := a.v.AllSettings()
			redactSecrets(settings)

			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func redactSecrets(settings map[string]any) {
	store, ok := settings["store"].(map[string]any)
	if !ok {
		return
	}
	if pw, ok := store["password"].(string); ok && pw != "" {
		store["password"] = redacted
	}
	if raw, ok := store["url"].(string); ok && raw != "" {
		if u, err := url.Parse(raw); err == nil && u.User != nil {
			if _, has := u.User.Password(); has {
				u.User = url.UserPassword(u.User.Username(), redacted)
				store["url"] = u.String()
			}
		}
	}
}
