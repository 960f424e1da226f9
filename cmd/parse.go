package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/prodocs/harvest-cli/internal/source"
)

var (
	parseLabel string
	parseJSON  bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <input-file>",
	Short: "Parse an input file and print the work items without processing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		items, err := source.Read(ctx, args[0], parseLabel)
		if err != nil {
			return eris.Wrapf(err, "read input %s", args[0])
		}

		if parseJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		for _, item := range items {
			label := item.Label
			if label == "" {
				label = "-"
			}
			fmt.Printf("%s\t%s\n", label, item.URL)
		}
		fmt.Fprintf(os.Stderr, "%d items\n", len(items))
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseLabel, "label", "", "default label for inputs without a label column")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "print items as JSON")
	rootCmd.AddCommand(parseCmd)
}
