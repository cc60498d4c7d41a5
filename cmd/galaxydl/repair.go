package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/galaxydl/galaxydl/pkg/catalog"
	"github.com/galaxydl/galaxydl/pkg/fileunit"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/transport"
	"github.com/galaxydl/galaxydl/pkg/verifier"
)

var repairFlags struct {
	target string
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Re-verify a downloaded file against its XML sidecar and patch mismatched chunks",
	Long: `Loads the local verifier sidecar for --target, compares it
against the file's on-disk content chunk-by-chunk (§4.9), and re-fetches
only the mismatched byte ranges from the unit's current downlink URL
rather than redownloading the whole file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if repairFlags.target == "" {
			return fmt.Errorf("--target (a local file path produced by a previous download) is required")
		}
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

		downlink := fileunit.TransportDownlinkFetcher{HTTP: clients.HTTP}
		cfg := fileunit.Config{
			LanguageMask:      settings.languageMask(),
			PlatformMask:      settings.platformMask(),
			IncludeDLC:        settings.IncludeDLC,
			DuplicateHandling: settings.DuplicateHandling,
		}
		products, err := catalog.Expand(ctx, downlink, games, cfg, catalog.Templates{
			InstallerTemplate: "%gamename%/%gamename_transformed%_installer",
			ExtraTemplate:     "%gamename%/extras",
			PatchTemplate:     "%gamename%/patches",
			LangpackTemplate:  "%gamename%/language_packs",
		}, nil)
		if err != nil {
			return err
		}

		unit, ok := findUnitByTargetPath(products, repairFlags.target)
		if !ok {
			return fmt.Errorf("no FileUnit in the current plan targets %s", repairFlags.target)
		}

		info, err := downlink.FetchDownlink(ctx, unit.DownlinkQueryURL)
		if err != nil {
			return fmt.Errorf("resolving downlink: %w", err)
		}

		verifierIndex := verifier.New(paths.XMLRoot(), clients.HTTP)
		sidecar, ok := verifierIndex.Load(unit.Gamename, unitFilename(unit))
		if !ok {
			if info.ChecksumURL == "" {
				return fmt.Errorf("no local or remote checksum XML available for %s", repairFlags.target)
			}
			sidecar, err = verifierIndex.FetchRemote(ctx, info.ChecksumURL)
			if err != nil {
				return fmt.Errorf("fetching remote checksum XML: %w", err)
			}
		}

		bad, err := verifier.MismatchedChunks(repairFlags.target, sidecar)
		if err != nil {
			return err
		}
		if len(bad) == 0 {
			pterm.Success.Println("file is intact, nothing to repair")
			return nil
		}
		pterm.Info.Printf("%d mismatched chunk(s), repairing\n", len(bad))

		for _, chunk := range bad {
			if err := repairChunkWithRetry(ctx, clients.HTTP, repairFlags.target, info.DownloadURL, chunk); err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.ID, err)
			}
		}

		if err := verifierIndex.Save(unit.Gamename, unitFilename(unit), sidecar); err != nil {
			pterm.Warning.Println("could not refresh local sidecar:", err)
		}
		pterm.Success.Println("repair complete")
		return nil
	},
}

// repairChunkWithRetry re-fetches and re-patches one mismatched chunk,
// retrying up to verifier.MaxChunkRepairAttempts times: PatchChunk
// itself rejects a still-mismatching fetch, so a bad range response is
// worth one more try rather than failing the whole repair run.
func repairChunkWithRetry(ctx context.Context, http *transport.Client, target, url string, chunk model.VerifierChunk) error {
	var lastErr error
	for attempt := 0; attempt < verifier.MaxChunkRepairAttempts; attempt++ {
		data, err := fetchChunk(ctx, http, url, chunk)
		if err != nil {
			lastErr = err
			continue
		}
		if err := verifier.PatchChunk(target, chunk, data); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func fetchChunk(ctx context.Context, http *transport.Client, url string, chunk model.VerifierChunk) ([]byte, error) {
	var buf bytes.Buffer
	rangeHeader := fmt.Sprintf("bytes=%d-%d", chunk.From, chunk.To-1)
	if _, err := http.DownloadRange(ctx, url, &buf, rangeHeader, transport.DefaultOptions()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func findUnitByTargetPath(products []model.Product, target string) (model.FileUnit, bool) {
	for _, p := range products {
		if u, ok := findUnitInProduct(p, target); ok {
			return u, true
		}
	}
	return model.FileUnit{}, false
}

func findUnitInProduct(p model.Product, target string) (model.FileUnit, bool) {
	for _, group := range [][]model.FileUnit{p.Installers, p.Extras, p.Patches, p.LanguagePacks} {
		for _, u := range group {
			if u.TargetPath == target {
				return u, true
			}
		}
	}
	for _, child := range p.Children {
		if u, ok := findUnitInProduct(*child, target); ok {
			return u, true
		}
	}
	return model.FileUnit{}, false
}

func unitFilename(u model.FileUnit) string {
	return u.ID
}

func init() {
	repairCmd.Flags().StringVar(&repairFlags.target, "target", "", "local file path to repair")
	rootCmd.AddCommand(repairCmd)
}
