package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/galaxydl/galaxydl/internal/layout"
)

var rootCmd = &cobra.Command{
	Use:   "galaxydl",
	Short: "Download and maintain a local mirror of a Galaxy game library",
	Long:  `galaxydl authenticates against a Galaxy-style content service, caches the owned-game catalog, and downloads/verifies/repairs installers, patches, and repository builds.`,
}

// Execute initializes the command tree and delegates to Cobra for
// argument parsing and subcommand dispatch.
func Execute() {
	if !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != "" {
		pterm.DisableStyling()
		pterm.RawOutput = true
	}
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("cache-root", "", "Cache directory (gamedetails.json, verifier XML sidecars); defaults to the user cache dir")
	rootCmd.PersistentFlags().String("config-root", "", "Config directory (config.cfg, cookies.txt, blacklist.txt, galaxy_tokens.json); defaults to the user config dir")
	rootCmd.PersistentFlags().String("download-root", "", "Root of the download tree")
	rootCmd.PersistentFlags().Int("threads", 4, "Parallel download workers")
	rootCmd.PersistentFlags().String("language", "en", "Preferred language code")
	rootCmd.PersistentFlags().String("platform", "windows", "Preferred platform: windows, mac, linux")
	rootCmd.PersistentFlags().String("arch", "64", "Preferred architecture for repository builds: 32 or 64")
	rootCmd.PersistentFlags().Bool("include-dlc", true, "Include DLC in catalog expansion and builds")
	rootCmd.PersistentFlags().Bool("duplicate-handling", true, "Coalesce file units that share a target path, OR-ing their language masks")
	rootCmd.PersistentFlags().String("client-id", "", "OAuth client id")
	rootCmd.PersistentFlags().String("client-secret", "", "OAuth client secret")
	rootCmd.PersistentFlags().StringSlice("used-cdn", nil, "CDN endpoint_name priority order")

	_ = viperBindPersistentFlags(rootCmd)
}

// resolvePaths fills in any cache/config/download root left empty on
// the command line with the platform's conventional per-user
// directories, namespaced under "galaxydl" the way internal/layout's
// helpers expect.
func resolvePaths(settings Settings) layout.Paths {
	p := layout.Paths{
		CacheRoot:    settings.CacheRoot,
		ConfigRoot:   settings.ConfigRoot,
		DownloadRoot: settings.DownloadRoot,
	}
	if p.CacheRoot == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			p.CacheRoot = dir
		}
	}
	if p.ConfigRoot == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			p.ConfigRoot = dir
		}
	}
	if p.DownloadRoot == "" {
		if dir, err := os.UserHomeDir(); err == nil {
			p.DownloadRoot = dir + "/Games"
		}
	}
	return p
}
