package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) spansCommand() *cobra.Command {
	var (
		flags  parseFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "spans FILE",
		Short: "List the block spans of a file without decoding them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, closeInput, err := flags.request(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeInput()

			spans, issues, err := a.service.Spans(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(spans, "", "  ")
				if err != nil {
					return fmt.Errorf("encode spans: %w", err)
				}
				fmt.Fprintf(a.stdout, "%s\n", data)
			} else {
				tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TYPE\tNAME\tROWS")
				for _, s := range spans {
					// Rows are shown 1-based and inclusive, as a spreadsheet shows them.
					fmt.Fprintf(tw, "%s\t%s\t%d-%d\n", s.Type, s.Name, s.StartRow+1, s.EndRow)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			printIssues(a.stderr, issues)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print spans as JSON")
	return cmd
}
