package main

import (
	"github.com/spf13/cobra"

	"promptbuilder/internal/gateway/handler/rpc"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage the taxonomy endpoint override",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the effective endpoint (the key is masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := unary[rpc.Empty, rpc.SettingsResponse](cmd.Context(), rpc.SettingsServiceGetProcedure, &rpc.Empty{})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var settingsUpdate rpc.UpdateSettingsRequest

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an endpoint override",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := unary[rpc.UpdateSettingsRequest, rpc.SettingsResponse](cmd.Context(), rpc.SettingsServiceUpdateProcedure, &settingsUpdate)
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the override and fall back to the server defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := unary[rpc.Empty, rpc.SettingsResponse](cmd.Context(), rpc.SettingsServiceClearProcedure, &rpc.Empty{})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

func init() {
	settingsSetCmd.Flags().StringVar(&settingsUpdate.APIURL, "url", "", "web app URL of the sheet script")
	settingsSetCmd.Flags().StringVar(&settingsUpdate.APIKey, "key", "", "API key expected by the script")
	_ = settingsSetCmd.MarkFlagRequired("url")
	_ = settingsSetCmd.MarkFlagRequired("key")

	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsClearCmd)
	rootCmd.AddCommand(settingsCmd)
}
