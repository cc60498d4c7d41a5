package main

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var showBuildsCmd = &cobra.Command{
	Use:   "show-builds PRODUCT_ID",
	Short: "List build descriptors for a product's configured platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, paths, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		clients, err := buildCoreClients(paths, settings)
		if err != nil {
			return err
		}

		productID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}

		builds, err := clients.Repo.ProductBuilds(cmd.Context(), productID, settings.Platform, 2)
		if err != nil {
			return err
		}

		rows := pterm.TableData{{"Build ID", "Branch", "Version", "Published", "Generation"}}
		for _, b := range builds {
			rows = append(rows, []string{b.BuildID, b.Branch, b.VersionName, b.Date, strconv.Itoa(b.Generation)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

func init() {
	rootCmd.AddCommand(showBuildsCmd)
}
