package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rocket-mimo/internal/config"
	"rocket-mimo/internal/domain"
)

func newNetworksCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List known networks (built-in and configured)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Prepare(v, cfgFile); err != nil {
				return err
			}
			var cfg config.Config
			if err := v.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("decode config: %w", err)
			}
			table, err := cfg.NetworkTable()
			if err != nil {
				return err
			}
			return printNetworks(cmd.OutOrStdout(), table, cfg.ChainID)
		},
	}
}

func printNetworks(out io.Writer, table domain.Networks, selected int64) error {
	ids := make([]int64, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tCHAIN ID\tNAME\tWETH\tROUTER\tAMM FACTORY")
	for _, id := range ids {
		n := table[id]
		mark := ""
		if id == selected {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", mark, n.ChainID, n.Name, n.WETH.Hex(), n.Router.Hex(), n.AMMFactory.Hex())
	}
	return w.Flush()
}
