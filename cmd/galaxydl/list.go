package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/galaxydl/galaxydl/internal/layout"
	"github.com/galaxydl/galaxydl/pkg/catalog"
	"github.com/galaxydl/galaxydl/pkg/fileunit"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the owned-game catalog",
	Long:  `--list-format selects the rendering: games, details, json, tags, userdata, wishlist, transform.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, paths, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		clients, err := buildCoreClients(paths, settings)
		if err != nil {
			return err
		}

		games, err := loadOrRefreshCatalog(cmd.Context(), clients, paths, settings)
		if err != nil {
			return err
		}

		switch listFormat {
		case "", "games":
			for _, g := range games {
				pterm.Println(g.Title)
			}
		case "json":
			enc, err := json.MarshalIndent(games, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(enc))
		case "details":
			for _, g := range games {
				pterm.Printf("%-40s id=%d slug=%s dlcs=%d\n", g.Title, g.ID, g.Slug, len(g.DLCs))
			}
		case "transform":
			for _, g := range games {
				pterm.Println(fileunit.GamenameTransform(g.Slug))
			}
		case "userdata":
			data, err := clients.Repo.UserData(cmd.Context())
			if err != nil {
				return err
			}
			enc, _ := json.MarshalIndent(data, "", "  ")
			fmt.Println(string(enc))
		case "tags", "wishlist":
			pterm.Warning.Printf("--list-format %s is not backed by a cached field; re-run with --update-cache after the service exposes it\n", listFormat)
		default:
			return fmt.Errorf("unknown --list-format %q", listFormat)
		}
		return nil
	},
}

// loadOrRefreshCatalog applies §4.10's freshness gate: a usable cache
// hit returns immediately, anything else triggers a network refresh.
func loadOrRefreshCatalog(ctx context.Context, clients *coreClients, paths layout.Paths, settings Settings) ([]catalog.CachedGame, error) {
	store := catalog.New(paths.GameDetailsCache(), catalog.Config{
		ValidFor:   settings.cacheValidFor(),
		AllowStale: settings.AllowStaleCache,
	})

	games, err := store.Load(time.Now())
	if err == nil {
		return games, nil
	}

	games, err = catalog.Refresh(ctx, catalog.RepoFetcher{Client: clients.Repo}, "", "", false, nil)
	if err != nil {
		return nil, fmt.Errorf("refreshing catalog: %w", err)
	}
	if err := store.Save(time.Now(), games); err != nil {
		pterm.Warning.Println("could not persist catalog cache:", err)
	}
	return games, nil
}

func init() {
	listCmd.Flags().StringVar(&listFormat, "list-format", "games", "games|details|json|tags|userdata|wishlist|transform")
	rootCmd.AddCommand(listCmd)
}
