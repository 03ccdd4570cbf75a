package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sunlightlinux/sigmux/pkg/signals"
)

var signalsCmd = &cobra.Command{
	Use:   "signals [SIGNAL...]",
	Short: "List the signals sigmux knows, or describe the given ones",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) > 0 {
			for _, arg := range args {
				sig, err := signals.ParseSignal(arg)
				if err != nil {
					return err
				}
				if err := signals.Psignal(out, sig, signals.Name(sig)); err != nil {
					return err
				}
			}
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NUM\tNAME\tWAITABLE\tDESCRIPTION")
		for _, info := range signals.List() {
			waitable := "yes"
			if !info.Catchable {
				waitable = "no"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", info.Number, info.Name, waitable, info.Description)
		}
		return tw.Flush()
	},
}
