package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/galaxydl/galaxydl/pkg/catalog"
	"github.com/galaxydl/galaxydl/pkg/engine"
	"github.com/galaxydl/galaxydl/pkg/fileunit"
	"github.com/galaxydl/galaxydl/pkg/messages"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/planner"
	"github.com/galaxydl/galaxydl/pkg/progress"
	"github.com/galaxydl/galaxydl/pkg/transport"
	"github.com/galaxydl/galaxydl/pkg/verifier"
)

var downloadFlags struct {
	product            string
	repository         bool
	buildIndex         int
	reportPath         string
	installerTemplate  string
	extraTemplate      string
	patchTemplate      string
	langpackTemplate   string
	galaxyDependencies bool
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a product's files (installer path) or depot items (repository path)",
	Long: `Without --repository, expands the cached downloads JSON into
FileUnits via FileUnitBuilder and runs them through the classic
installer/extra/patch/langpack path. With --repository, resolves the
product's build manifest through DepotPlanner and downloads DepotItems
instead (§4.4).`,
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

		games, err := loadOrRefreshCatalog(ctx, clients, paths, settings)
		if err != nil {
			return err
		}

		selected, err := selectGames(games, downloadFlags.product)
		if err != nil {
			return err
		}

		report, err := messages.OpenReportWriter(downloadFlags.reportPath)
		if err != nil {
			return err
		}
		defer report.Close()

		bus := messages.NewBus(64)
		verifierIndex := verifier.New(paths.XMLRoot(), clients.HTTP)
		downlink := fileunit.TransportDownlinkFetcher{HTTP: clients.HTTP}

		deps := engine.Deps{
			HTTP:      clients.HTTP,
			Tokens:    clients.Tokens,
			Blacklist: clients.Black,
			Messages:  bus,
			Verifier:  verifierIndex,
			Downlink:  engineDownlinkAdapter{inner: downlink},
			Repo:      clients.Repo,
			Report:    report,
		}
		eng := engine.New(deps, engine.Config{
			Workers:       settings.Threads,
			MaxRetries:    3,
			RetryWait:     5 * time.Second,
			CDNPreference: settings.UsedCDN,
		})

		if downloadFlags.repository {
			return runRepositoryDownload(ctx, eng, clients, settings, selected)
		}
		return runFileDownload(ctx, eng, downlink, settings, selected)
	},
}

// engineDownlinkAdapter reconciles engine.Downlinker (returns
// engine.DownlinkInfo) with fileunit.DownlinkFetcher (returns
// fileunit.DownlinkInfo): the two types are structurally identical but
// distinct, since pkg/engine keeps its own copy of the shape rather
// than importing pkg/fileunit for one struct.
type engineDownlinkAdapter struct {
	inner fileunit.DownlinkFetcher
}

func (a engineDownlinkAdapter) FetchDownlink(ctx context.Context, queryURL string) (engine.DownlinkInfo, error) {
	info, err := a.inner.FetchDownlink(ctx, queryURL)
	if err != nil {
		return engine.DownlinkInfo{}, err
	}
	return engine.DownlinkInfo{DownloadURL: info.DownloadURL, ChecksumURL: info.ChecksumURL}, nil
}

// selectGames narrows games to one product (by id or slug) when
// selector is non-empty, otherwise returns the full catalog.
func selectGames(games []catalog.CachedGame, selector string) ([]catalog.CachedGame, error) {
	if selector == "" {
		return games, nil
	}
	id, idErr := strconv.ParseInt(selector, 10, 64)
	for _, g := range games {
		if (idErr == nil && g.ID == id) || g.Slug == selector {
			return []catalog.CachedGame{g}, nil
		}
	}
	return nil, fmt.Errorf("product %q not found in catalog", selector)
}

// runFileDownload implements the installer/extra/patch/langpack path:
// FileUnitBuilder expansion followed by DownloadFiles.
func runFileDownload(ctx context.Context, eng *engine.Engine, downlink fileunit.DownlinkFetcher, settings Settings, games []catalog.CachedGame) error {
	cfg := fileunit.Config{
		LanguageMask:      settings.languageMask(),
		PlatformMask:      settings.platformMask(),
		IncludeDLC:        settings.IncludeDLC,
		DuplicateHandling: settings.DuplicateHandling,
	}
	templates := catalog.Templates{
		InstallerTemplate: defaultTemplate(downloadFlags.installerTemplate, "%gamename%/%gamename_transformed%_installer"),
		ExtraTemplate:     defaultTemplate(downloadFlags.extraTemplate, "%gamename%/extras"),
		PatchTemplate:     defaultTemplate(downloadFlags.patchTemplate, "%gamename%/patches"),
		LangpackTemplate:  defaultTemplate(downloadFlags.langpackTemplate, "%gamename%/language_packs"),
	}

	products, err := catalog.Expand(ctx, downlink, games, cfg, templates, nil)
	if err != nil {
		return fmt.Errorf("expanding products: %w", err)
	}

	var units []model.FileUnit
	for _, p := range products {
		units = appendProductUnits(units, p)
	}
	if len(units) == 0 {
		pterm.Warning.Println("nothing to download: no file units matched the configured language/platform")
		return nil
	}

	return renderAndRun(ctx, eng, settings.Threads, len(units), func() engine.Result {
		return eng.DownloadFiles(ctx, units)
	})
}

func appendProductUnits(units []model.FileUnit, p model.Product) []model.FileUnit {
	units = append(units, p.Installers...)
	units = append(units, p.Extras...)
	units = append(units, p.Patches...)
	units = append(units, p.LanguagePacks...)
	for _, child := range p.Children {
		units = appendProductUnits(units, *child)
	}
	return units
}

func defaultTemplate(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	return fallback
}

// runRepositoryDownload implements the generation-2 build-manifest
// path: ProductBuilds -> ManifestV2 -> DepotPlanner.Plan -> DownloadDepotItems.
func runRepositoryDownload(ctx context.Context, eng *engine.Engine, clients *coreClients, settings Settings, games []catalog.CachedGame) error {
	if len(games) != 1 {
		return fmt.Errorf("--repository requires --product to select exactly one title")
	}
	game := games[0]

	builds, err := clients.Repo.ProductBuilds(ctx, game.ID, settings.Platform, 2)
	if err != nil {
		return fmt.Errorf("listing builds: %w", err)
	}
	if len(builds) == 0 {
		return fmt.Errorf("no generation-2 builds available for %s on %s", game.Slug, settings.Platform)
	}
	idx := downloadFlags.buildIndex
	if idx < 0 || idx >= len(builds) {
		idx = 0
	}
	build := builds[idx]
	if build.Link == "" {
		return fmt.Errorf("build %s has no generation-2 manifest link", build.BuildID)
	}

	var manifest planner.BuildManifest
	if err := clients.HTTP.GetJSON(ctx, build.Link, transport.DefaultOptions(), &manifest); err != nil {
		return fmt.Errorf("fetching build manifest: %w", err)
	}

	p, err := planner.New(clients.Repo, planner.Config{
		LanguageRegexp:     settings.Language,
		Arch:               settings.Arch,
		IncludeDLC:         settings.IncludeDLC,
		GalaxyDependencies: downloadFlags.galaxyDependencies,
	})
	if err != nil {
		return err
	}

	items, err := p.Plan(ctx, manifest)
	if err != nil {
		return fmt.Errorf("planning depot items: %w", err)
	}
	if len(items) == 0 {
		pterm.Warning.Println("nothing to download: no depot items matched the configured language/arch")
		return nil
	}

	destRoot := settings.DownloadRoot + "/" + fileunit.GamenameTransform(game.Slug)
	return renderAndRun(ctx, eng, settings.Threads, len(items), func() engine.Result {
		return eng.DownloadDepotItems(ctx, destRoot, items)
	})
}

// renderAndRun runs run in the background while polling eng's progress
// through pkg/progress.Aggregator at a fixed tick, matching §4.8's
// rolling-window telemetry contract; it returns run's Result once done.
// remainingUnits is reported as the static queue size fed to run: the
// engine does not currently expose a live in-flight queue-depth
// counter, only RemainingBytes.
func renderAndRun(ctx context.Context, eng *engine.Engine, workers, remainingUnits int, run func() engine.Result) error {
	agg := progress.New(workers)
	done := make(chan engine.Result, 1)
	go func() { done <- run() }()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	width, _, _ := term.GetSize(int(os.Stdout.Fd()))
	for {
		select {
		case result := <-done:
			printResult(result)
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d file(s) failed", len(result.Failed))
			}
			return nil
		case <-ticker.C:
			lines, summary := agg.Tick(time.Now(), eng.Progress(), remainingUnits, eng.RemainingBytes())
			renderLive(lines, summary, width)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printResult(r engine.Result) {
	pterm.Success.Printf("%d succeeded, %d skipped, %d failed\n", r.Succeeded, r.Skipped, len(r.Failed))
	for _, f := range r.Failed {
		pterm.Error.Printf("  %s: %v\n", f.TargetPath, f.Err)
	}
}

func renderLive(lines []progress.WorkerLine, summary progress.Summary, width int) {
	for _, l := range progress.WorkerLines(lines, width) {
		pterm.Println(l)
	}
	pterm.Println(progress.SummaryLine(summary))
}

func init() {
	downloadCmd.Flags().StringVar(&downloadFlags.product, "product", "", "product id or slug; omit to download the whole catalog")
	downloadCmd.Flags().BoolVar(&downloadFlags.repository, "repository", false, "use the generation-2 build-manifest/depot path instead of the installer path")
	downloadCmd.Flags().IntVar(&downloadFlags.buildIndex, "build-index", 0, "index into the product's ProductBuilds list (repository path only)")
	downloadCmd.Flags().StringVar(&downloadFlags.reportPath, "report", "", "append an {OK,ND,MD5,FS} report line per file")
	downloadCmd.Flags().StringVar(&downloadFlags.installerTemplate, "installer-template", "", "override the installer target-path template")
	downloadCmd.Flags().StringVar(&downloadFlags.extraTemplate, "extra-template", "", "override the extras target-path template")
	downloadCmd.Flags().StringVar(&downloadFlags.patchTemplate, "patch-template", "", "override the patches target-path template")
	downloadCmd.Flags().StringVar(&downloadFlags.langpackTemplate, "langpack-template", "", "override the language-packs target-path template")
	downloadCmd.Flags().BoolVar(&downloadFlags.galaxyDependencies, "galaxy-dependencies", true, "resolve the build manifest's dependency list against the global dependencies repository")
	rootCmd.AddCommand(downloadCmd)
}
