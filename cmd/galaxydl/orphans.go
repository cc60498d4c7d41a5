package main

import (
	"context"
	"regexp"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/galaxydl/galaxydl/internal/layout"
	"github.com/galaxydl/galaxydl/pkg/catalog"
	"github.com/galaxydl/galaxydl/pkg/fileunit"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/orphan"
)

var orphansFlags struct {
	pattern string
	delete  bool
}

var orphansCmd = &cobra.Command{
	Use:   "check-orphans [REGEX]",
	Short: "List (or delete) files under the download root that no current plan names",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, paths, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		clients, err := buildCoreClients(paths, settings)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		pattern := orphansFlags.pattern
		if len(args) == 1 {
			pattern = args[0]
		}
		var filter *regexp.Regexp
		if pattern != "" {
			filter, err = regexp.Compile(pattern)
			if err != nil {
				return err
			}
		}

		expected, err := expectedDownloadPaths(ctx, clients, paths, settings)
		if err != nil {
			return err
		}

		orphans, err := orphan.Scan(settings.DownloadRoot, orphan.ExpectedSet(expected), filter)
		if err != nil {
			return err
		}
		if len(orphans) == 0 {
			pterm.Success.Println("no orphans found")
			return nil
		}

		var total int64
		for _, o := range orphans {
			pterm.Println(o.Path)
			total += o.Size
		}
		pterm.Info.Printf("%d orphan file(s), %d bytes\n", len(orphans), total)

		if orphansFlags.delete {
			if err := orphan.Delete(orphans); err != nil {
				return err
			}
			pterm.Success.Println("orphans deleted")
		}
		return nil
	},
}

// expectedDownloadPaths computes the full set of target paths the
// current catalog/configuration would produce, the same expansion
// runFileDownload uses, so --check-orphans reports against the plan a
// --download run would actually execute.
func expectedDownloadPaths(ctx context.Context, clients *coreClients, paths layout.Paths, settings Settings) ([]string, error) {
	games, err := loadOrRefreshCatalog(ctx, clients, paths, settings)
	if err != nil {
		return nil, err
	}

	downlink := fileunit.TransportDownlinkFetcher{HTTP: clients.HTTP}
	cfg := fileunit.Config{
		LanguageMask:      settings.languageMask(),
		PlatformMask:      settings.platformMask(),
		IncludeDLC:        settings.IncludeDLC,
		DuplicateHandling: settings.DuplicateHandling,
	}
	templates := catalog.Templates{
		InstallerTemplate: "%gamename%/%gamename_transformed%_installer",
		ExtraTemplate:     "%gamename%/extras",
		PatchTemplate:     "%gamename%/patches",
		LangpackTemplate:  "%gamename%/language_packs",
	}

	products, err := catalog.Expand(ctx, downlink, games, cfg, templates, nil)
	if err != nil {
		return nil, err
	}

	var targets []string
	for _, p := range products {
		targets = collectTargetPaths(targets, p)
	}
	return targets, nil
}

func collectTargetPaths(paths []string, p model.Product) []string {
	for _, u := range p.Installers {
		paths = append(paths, u.TargetPath)
	}
	for _, u := range p.Extras {
		paths = append(paths, u.TargetPath)
	}
	for _, u := range p.Patches {
		paths = append(paths, u.TargetPath)
	}
	for _, u := range p.LanguagePacks {
		paths = append(paths, u.TargetPath)
	}
	for _, child := range p.Children {
		paths = collectTargetPaths(paths, *child)
	}
	return paths
}

func init() {
	orphansCmd.Flags().StringVar(&orphansFlags.pattern, "pattern", "", "restrict the scan to paths matching this regex")
	orphansCmd.Flags().BoolVar(&orphansFlags.delete, "delete", false, "delete the orphans found instead of only listing them")
	rootCmd.AddCommand(orphansCmd)
}
