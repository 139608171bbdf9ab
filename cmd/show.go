package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/portalmesh/relmeta/internal/manifest"
)

var showFormat string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted manifests",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := manifest.NewStore(Cfg.Output.Dir)

		doc, err := store.LoadDocument()
		if err != nil {
			return err
		}

		out := map[string]any{
			"core": doc,
		}
		for _, scope := range Cfg.Rules.Scopes {
			idx, err := store.LoadRuleIndex(scope.Name)
			if err != nil {
				return err
			}
			out["rules-"+scope.Name] = idx
		}

		return printDocument(out, showFormat)
	},
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "json", "output format (json or yaml)")
	RootCmd.AddCommand(showCmd)
}

func printDocument(v any, format string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	switch format {
	case "json":
		fmt.Println(string(data))
		return nil
	case "yaml":
		// Round-trip through the JSON form so the YAML view uses the
		// same field names as the persisted files.
		var plain any
		if err := json.Unmarshal(data, &plain); err != nil {
			return err
		}
		return yaml.NewEncoder(os.Stdout).Encode(plain)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
