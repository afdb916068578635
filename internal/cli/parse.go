package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/startable/internal/core"
)

func (a *app) parseCommand() *cobra.Command {
	var (
		flags  parseFlags
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Decode a file and print its blocks",
		Long: `Decode a StarTable CSV or Excel file and print every emitted block.

Issues are listed on stderr. In strict mode the blocks decoded before the
first issue are still printed and the command exits with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, closeInput, err := flags.request(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeInput()
			req.Output = output

			res, err := a.service.Parse(cmd.Context(), req)
			if res == nil {
				return err
			}
			if werr := writeResult(a.stdout, res, format); werr != nil {
				return werr
			}
			printIssues(a.stderr, res.Issues)
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&output, "output", "", "table payload: table, jsondata or cellgrid")
	cmd.Flags().StringVar(&format, "format", "json", "print format: json or yaml")
	return cmd
}

// writeResult prints res as indented JSON or as YAML. YAML is produced from the
// JSON form so both keep the same keys and order.
func writeResult(w io.Writer, res *core.ParseResult, format string) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	switch format {
	case "json", "":
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "yaml", "yml":
		return jsonToYAML(w, data)
	}
	return fmt.Errorf("%w: unknown print format %q (want json or yaml)", core.ErrInvalidOption, format)
}

// jsonToYAML re-encodes JSON as block-style YAML, keeping key order.
func jsonToYAML(w io.Writer, data []byte) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("convert to yaml: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// blockStyle clears the flow style JSON documents decode with.
func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = 0
	}
	if n.Kind == yaml.ScalarNode && n.Style == yaml.DoubleQuotedStyle {
		n.Style = 0
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}
