package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/startable/internal/core"
	"github.com/JonMunkholm/startable/internal/source"
)

// parseFlags are the options shared by every command that reads a file.
type parseFlags struct {
	tables      []string
	types       []string
	mode        string
	sep         string
	charset     string
	sheet       string
	inputFormat string
	destRow     bool
	keepBlank   bool
}

func (f *parseFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.tables, "tables", nil, "only decode tables with these names")
	fs.StringSliceVar(&f.types, "types", nil, "only emit these block types (metadata, directive, table, template_row, blank)")
	fs.StringVar(&f.mode, "mode", "", "error policy: lenient, strict-block or strict")
	fs.StringVar(&f.sep, "sep", "", `CSV field separator ("tab" for tabs)`)
	fs.StringVar(&f.charset, "charset", "", "CSV text encoding, e.g. latin1")
	fs.StringVar(&f.sheet, "sheet", "", "Excel worksheet (default: first)")
	fs.StringVar(&f.inputFormat, "input-format", "", "input format: csv or xlsx (default: from extension)")
	fs.BoolVar(&f.destRow, "dest-row", false, "read destinations from the row after the table name")
	fs.BoolVar(&f.keepBlank, "keep-blank", false, "emit blank blocks")
}

// request opens path and builds a parse request. "-" reads CSV from stdin.
func (f *parseFlags) request(cmd *cobra.Command, path string) (core.ParseRequest, func(), error) {
	req := core.ParseRequest{
		Tables:    f.tables,
		Types:     f.types,
		Mode:      f.mode,
		Separator: f.sep,
		Charset:   f.charset,
		Sheet:     f.sheet,
	}
	if f.inputFormat != "" {
		format, err := source.ParseFormat(f.inputFormat)
		if err != nil {
			return req, nil, err
		}
		req.Format = format
	}
	if cmd.Flags().Changed("dest-row") {
		req.DestinationRow = &f.destRow
	}
	if cmd.Flags().Changed("keep-blank") {
		req.KeepBlank = &f.keepBlank
	}

	if path == "-" {
		req.Body = cmd.InOrStdin()
		if req.Format == "" {
			req.Format = source.FormatCSV
		}
		return req, func() {}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return req, nil, fmt.Errorf("open input: %w", err)
	}
	req.Name = path
	req.Body = file
	return req, func() { file.Close() }, nil
}
