package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/startable/internal/core"
	"github.com/JonMunkholm/startable/internal/source"
	"github.com/JonMunkholm/startable/internal/startable"
)

func (a *app) renderCommand() *cobra.Command {
	var (
		flags   parseFlags
		outSep  string
		missing string
	)

	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Decode a file and write it back as StarTable CSV",
		Long: `Decode a StarTable CSV or Excel file and write the decoded blocks back
as StarTable CSV. Decoding the output yields the same tables. Useful to
normalize a file or to convert a workbook to CSV.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, closeInput, err := flags.request(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeInput()
			req.Output = startable.OutputTable.String()

			res, err := a.service.Parse(cmd.Context(), req)
			if res == nil {
				return err
			}
			printIssues(a.stderr, res.Issues)
			if err != nil {
				return err
			}

			sep, serr := outputSeparator(outSep, a.cfg.Parse.Separator)
			if serr != nil {
				return serr
			}
			// Write destinations the way they were read.
			destRow := a.cfg.Parse.DestinationRow
			if req.DestinationRow != nil {
				destRow = *req.DestinationRow
			}
			opts := startable.RenderOptions{
				MissingRep:     missing,
				DestinationRow: destRow,
			}
			return writeBlocks(a.stdout, res.Blocks, opts, sep)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&outSep, "out-sep", "", "output field separator (default: the input separator setting)")
	cmd.Flags().StringVar(&missing, "missing", "-", "marker written for missing values")
	return cmd
}

func outputSeparator(flag, def string) (rune, error) {
	if flag == "" {
		flag = def
	}
	return core.ParseSeparator(flag)
}

// writeBlocks renders blocks as CSV with one empty row between blocks.
func writeBlocks(w io.Writer, blocks []startable.Block, opts startable.RenderOptions, sep rune) error {
	var grid startable.CellGrid
	for _, b := range blocks {
		var part startable.CellGrid
		switch b.Type {
		case startable.BlockTable:
			if t, ok := b.Table(); ok {
				part = startable.RenderTable(t, opts)
			}
		case startable.BlockDirective:
			if d, ok := b.Directive(); ok {
				part = startable.RenderDirective(d)
			}
		case startable.BlockMetadata:
			if m, ok := b.Metadata(); ok {
				part = startable.RenderMetadata(m)
			}
		case startable.BlockTemplateRow:
			if tr, ok := b.Payload.(*startable.TemplateRow); ok {
				part = tr.Rows
			}
		}
		if len(part) == 0 {
			continue
		}
		if len(grid) > 0 {
			grid = append(grid, startable.Row{})
		}
		grid = append(grid, part...)
	}
	return source.WriteCSV(w, grid, sep)
}
