package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/prodocs/harvest-cli/internal/model"
	"github.com/prodocs/harvest-cli/internal/store"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect batch history",
	Long:  "Commands for listing past batches and viewing their stored results.",
}

// -- batches list --

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		batches, err := st.ListBatches(ctx, store.BatchFilter{
			Status: model.BatchStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "batches list")
		}

		if len(batches) == 0 {
			fmt.Fprintln(os.Stderr, "No batches found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tINPUT\tTOTAL\tSTATUS\tSUCCEEDED\tFILES\tCREATED")
		for _, b := range batches {
			succeeded, files := "-", "-"
			if b.Summary != nil {
				succeeded = fmt.Sprintf("%d", b.Summary.Succeeded)
				files = fmt.Sprintf("%d", b.Summary.TotalFiles)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				b.ID, b.InputPath, b.Total, b.Status, succeeded, files,
				b.CreatedAt.Format(time.RFC3339),
			)
		}
		return w.Flush()
	},
}

// -- batches show --

var batchesShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show one batch with its item results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		batch, err := st.GetBatch(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "get batch %s", args[0])
		}
		items, err := st.ListItems(ctx, batch.ID)
		if err != nil {
			return eris.Wrapf(err, "list items for %s", batch.ID)
		}

		out := struct {
			Batch *model.Batch            `json:"batch"`
			Items []*model.PipelineResult `json:"items"`
		}{Batch: batch, Items: items}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	batchesListCmd.Flags().String("status", "", "filter by status (running, complete)")
	batchesListCmd.Flags().Int("limit", 20, "maximum batches to list")
	batchesCmd.AddCommand(batchesListCmd)
	batchesCmd.AddCommand(batchesShowCmd)
	rootCmd.AddCommand(batchesCmd)
}
