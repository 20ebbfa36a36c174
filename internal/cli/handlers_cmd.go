package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/soyeahso/actiongw/internal/logging"
	"github.com/soyeahso/actiongw/internal/policy"
	"github.com/spf13/cobra"
)

func newHandlersCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "handlers",
		Short: "List registered handlers and the capability table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, ":memory:", logging.New(nil, "silent"))
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			caps := a.gateway.Policy().All()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"handlers":     a.registry.List(),
					"stats":        a.registry.Stats(),
					"capabilities": caps,
				})
			}
			return printHandlers(out, a, caps)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printHandlers(out io.Writer, a *app, caps []policy.Capability) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HANDLER\tMODULE\tAUTH\tDESCRIPTION")
	for _, e := range a.registry.Entries() {
		auth := ""
		if e.RequiresAuth {
			auth = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Key, e.Module, auth, e.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tTARGET\tCOST\tRATE")
	for _, c := range caps {
		rate := "unlimited"
		if c.Rate != nil {
			rate = fmt.Sprintf("%d/%s", c.Rate.MaxCalls, c.Rate.Window)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Action, c.Target, c.Cost, rate)
	}
	return tw.Flush()
}
