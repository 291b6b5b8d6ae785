package main

import (
	"fmt"
	"sort"

	"admission-gateway/middleware/admission/domain"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show admission decision counters per route",
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, err := newRedis(a.cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			snap, err := newStatsStore(a.cfg.Stats, rdb).Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderStats(snap))
			return err
		},
	}
}

func renderStats(snap domain.StatsSnapshot) string {
	header := table.Row{"Route"}
	for _, o := range domain.Outcomes {
		header = append(header, string(o))
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(header)

	routes := make([]string, 0, len(snap.ByRoute))
	for r := range snap.ByRoute {
		routes = append(routes, r)
	}
	sort.Strings(routes)

	for _, r := range routes {
		row := table.Row{r}
		for _, o := range domain.Outcomes {
			row = append(row, snap.ByRoute[r][o])
		}
		t.AppendRow(row)
	}

	footer := table.Row{"Total"}
	for _, o := range domain.Outcomes {
		footer = append(footer, snap.Total[o])
	}
	t.AppendFooter(footer)

	return t.Render() + fmt.Sprintf("\ndegraded decisions: %d", snap.Degraded)
}
