package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newCooldownCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cooldown",
		Short: "Inspect and manage cooldown penalties",
	}
	cmd.AddCommand(newCooldownListCmd(a), newCooldownArmCmd(a))
	return cmd
}

func (a *app) cooldownStore() (*infra.RedisCooldownStore, func(), error) {
	rdb, err := newRedis(a.cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	store := infra.NewRedisCooldownStore(rdb, strings.Trim(a.cfg.Store.KeyPrefix, ":"))
	return store, func() { _ = rdb.Close() }, nil
}

type cooldownRow struct {
	Client    string    `json:"client"`
	Route     string    `json:"route"`
	Remaining string    `json:"remaining"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newCooldownListCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active cooldown penalties",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported output format: %s", output)
			}

			store, closeFn, err := a.cooldownStore()
			if err != nil {
				return err
			}
			defer closeFn()

			recs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(recs, func(i, j int) bool {
				if !recs[i].ExpiresAt.Equal(recs[j].ExpiresAt) {
					return recs[i].ExpiresAt.After(recs[j].ExpiresAt)
				}
				return recs[i].Key.String() < recs[j].Key.String()
			})

			now := time.Now()
			rows := make([]cooldownRow, 0, len(recs))
			for _, rec := range recs {
				rows = append(rows, cooldownRow{
					Client:    rec.Key.Client,
					Route:     rec.Key.Route,
					Remaining: admission.HumanizeDuration(rec.Remaining(now)),
					ExpiresAt: rec.ExpiresAt.UTC().Truncate(time.Second),
				})
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				payload, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(payload))
				return err
			}

			if len(rows) == 0 {
				_, err := fmt.Fprintln(out, "(no active cooldowns)")
				return err
			}
			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Client", "Route", "Remaining", "Expires At"})
			for _, r := range rows {
				t.AppendRow(table.Row{r.Client, r.Route, r.Remaining, r.ExpiresAt.Format(time.RFC3339)})
			}
			t.AppendFooter(table.Row{"", "", "Total", len(rows)})
			_, err = fmt.Fprintln(out, t.Render())
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table|json")
	return cmd
}

func newCooldownArmCmd(a *app) *cobra.Command {
	var (
		client   string
		route    string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "arm",
		Short: "Arm a cooldown penalty for a client on a route",
		Long: `Arm a cooldown penalty for a (client, route) key, exactly as an observed 429 would.
An already active penalty is never extended.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(client) == "" || strings.TrimSpace(route) == "" {
				return errors.New("--client and --route are required")
			}
			if duration <= 0 {
				duration = a.cfg.Cooldown.Penalty
			}

			store, closeFn, err := a.cooldownStore()
			if err != nil {
				return err
			}
			defer closeFn()

			key := domain.NewClientRouteKey(client, route)
			remaining, err := store.Arm(cmd.Context(), key, duration)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cooldown active for %s: %s left\n", key, admission.HumanizeDuration(remaining))
			return err
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "client identity (IP or user:<id>)")
	cmd.Flags().StringVar(&route, "route", "", "route pattern, e.g. /api/v1/chat")
	cmd.Flags().DurationVar(&duration, "duration", 0, "penalty duration (default cooldown.penalty)")
	return cmd
}
