package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/island"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.html>",
	Short: "List the islands in server-rendered HTML",
	Long: `Scan rendered HTML for island markers and print each island's component
path, name and props. Unbalanced markers are reported as an error.

Examples:
  isle inspect out/index.html
  isle inspect out/index.html --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var inspectFormat string

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "text", "Output format (text, json)")
}

type inspectedIsland struct {
	Path  string          `json:"path"`
	Name  string          `json:"name,omitempty"`
	Props json.RawMessage `json:"props"`
	Bytes int             `json:"bytes"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return errors.WrapIO(err, "READ_FAILED", args[0])
	}
	defer f.Close()

	markers, err := island.Extract(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	islands := make([]inspectedIsland, 0, len(markers))
	for _, m := range markers {
		var props json.RawMessage
		if err := m.Metadata.DecodeProps(&props); err != nil {
			return errors.NewEncodingError(m.Metadata.Path, err)
		}
		islands = append(islands, inspectedIsland{
			Path:  m.Metadata.Path,
			Name:  m.Metadata.Name,
			Props: props,
			Bytes: len(m.HTML),
		})
	}

	out := cmd.OutOrStdout()
	switch inspectFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(islands)
	case "text":
		if len(islands) == 0 {
			fmt.Fprintln(out, "No islands found")
			return nil
		}
		for _, i := range islands {
			name := i.Name
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(out, "%s\t%s\t%s\t%d bytes\n", i.Path, name, i.Props, i.Bytes)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", inspectFormat)
	}
}
