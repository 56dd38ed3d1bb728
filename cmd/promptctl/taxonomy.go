package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"promptbuilder/internal/gateway/handler/rpc"
	"promptbuilder/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Inspect and edit the category taxonomy",
}

var listCategory string

var taxonomyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the working copy (loads it on first use)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := unary[rpc.Empty, rpc.TaxonomyResponse](cmd.Context(), rpc.TaxonomyServiceGetProcedure, &rpc.Empty{})
		if err != nil {
			return err
		}
		if listCategory != "" {
			return output(cmd.OutOrStdout(), res.Categories[listCategory])
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var taxonomyLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Reload from the store, discarding unsaved edits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := unary[rpc.Empty, rpc.TaxonomyResponse](cmd.Context(), rpc.TaxonomyServiceLoadProcedure, &rpc.Empty{})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res.Status)
	},
}

var taxonomyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether local edits are saved",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := unary[rpc.Empty, rpc.StatusView](cmd.Context(), rpc.TaxonomyServiceStatusProcedure, &rpc.Empty{})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var taxonomySaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the whole working copy to the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := unary[rpc.Empty, rpc.SaveResponse](cmd.Context(), rpc.TaxonomyServiceSaveProcedure, &rpc.Empty{})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var upsertItem taxonomy.Item

var taxonomyUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Add an item, or update it when --id matches an existing one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := unary[rpc.ItemRequest, rpc.ItemResponse](cmd.Context(), rpc.TaxonomyServiceUpsertProcedure, &rpc.ItemRequest{Item: upsertItem})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var taxonomyDeleteCmd = &cobra.Command{
	Use:   "delete <category> <id>",
	Short: "Delete an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := unary[rpc.ItemRef, rpc.StatusView](cmd.Context(), rpc.TaxonomyServiceDeleteProcedure, &rpc.ItemRef{Category: args[0], ID: args[1]})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var taxonomyMoveCmd = &cobra.Command{
	Use:   "move <category> <index> <up|down>",
	Short: "Swap an item with its neighbour",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("index must be a number: %w", err)
		}
		res, err := unary[rpc.ReorderRequest, rpc.ReorderResponse](cmd.Context(), rpc.TaxonomyServiceReorderProcedure, &rpc.ReorderRequest{
			Category: args[0], Index: index, Direction: args[2],
		})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var taxonomyDuplicateCmd = &cobra.Command{
	Use:   "duplicate <category> <id>",
	Short: "Draft a copy of an item labelled \"<label> Copy\"",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := unary[rpc.ItemRef, rpc.ItemResponse](cmd.Context(), rpc.TaxonomyServiceDuplicateProcedure, &rpc.ItemRef{Category: args[0], ID: args[1]})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var taxonomySnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List archived saves",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := unary[rpc.Empty, rpc.ListSnapshotsResponse](cmd.Context(), rpc.TaxonomyServiceListSnapshotsProcedure, &rpc.Empty{})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res.Snapshots)
	},
}

var taxonomyRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot>",
	Short: "Replace the working copy with an archived save; run save to persist it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := unary[rpc.RestoreSnapshotRequest, rpc.TaxonomyResponse](cmd.Context(), rpc.TaxonomyServiceRestoreSnapshotProcedure, &rpc.RestoreSnapshotRequest{Name: args[0]})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res.Status)
	},
}

func init() {
	taxonomyListCmd.Flags().StringVarP(&listCategory, "category", "c", "", "only show one category")

	f := taxonomyUpsertCmd.Flags()
	f.StringVar(&upsertItem.ID, "id", "", "item id (generated when empty)")
	f.StringVarP(&upsertItem.Category, "category", "c", "", "category id")
	f.StringVar(&upsertItem.Label, "label", "", "display label")
	f.StringVar(&upsertItem.PromptText, "prompt", "", "text inserted into the prompt")
	f.StringSliceVar(&upsertItem.Tags, "tags", nil, "comma separated tags")
	_ = taxonomyUpsertCmd.MarkFlagRequired("category")

	taxonomyCmd.AddCommand(
		taxonomyListCmd,
		taxonomyLoadCmd,
		taxonomyStatusCmd,
		taxonomySaveCmd,
		taxonomyUpsertCmd,
		taxonomyDeleteCmd,
		taxonomyMoveCmd,
		taxonomyDuplicateCmd,
		taxonomySnapshotsCmd,
		taxonomyRestoreCmd,
	)
	rootCmd.AddCommand(taxonomyCmd)
}
