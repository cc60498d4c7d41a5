package main

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/galaxydl/galaxydl/pkg/catalog"
)

var updateCacheCmd = &cobra.Command{
	Use:   "update-cache",
	Short: "Force a full refresh of the catalog cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, paths, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		clients, err := buildCoreClients(paths, settings)
		if err != nil {
			return err
		}

		spinner, _ := pterm.DefaultSpinner.Start("Fetching owned products...")
		games, err := catalog.Refresh(cmd.Context(), catalog.RepoFetcher{Client: clients.Repo}, "", "", false, nil)
		if err != nil {
			spinner.Fail("Refresh failed")
			return err
		}

		store := catalog.New(paths.GameDetailsCache(), catalog.Config{ValidFor: settings.cacheValidFor()})
		if err := store.Save(time.Now(), games); err != nil {
			spinner.Fail("Could not write cache")
			return err
		}

		spinner.Success()
		pterm.Success.Printf("Cached %d products to %s\n", len(games), paths.GameDetailsCache())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCacheCmd)
}
