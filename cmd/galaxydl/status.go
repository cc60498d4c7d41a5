package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/galaxydl/galaxydl/pkg/catalog"
	"github.com/galaxydl/galaxydl/pkg/fileunit"
	"github.com/galaxydl/galaxydl/pkg/messages"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/verifier"
)

var statusFlags struct {
	reportPath string
}

var statusCmd = &cobra.Command{
	Use:   "check-status",
	Short: "Report each planned file's on-disk outcome as an {OK,ND,MD5,FS} line",
	Long: `Walks every FileUnit the current catalog/configuration would
produce and classifies it: OK (present, verified or unverifiable),
ND (not downloaded), MD5 (present but sidecar chunk hashes mismatch),
FS (filesystem error reading the file). Mirrors --download --report's
line format without downloading anything.`,
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

		report, err := messages.OpenReportWriter(statusFlags.reportPath)
		if err != nil {
			return err
		}
		defer report.Close()

		verifierIndex := verifier.New(paths.XMLRoot(), clients.HTTP)

		counts := map[messages.FileOutcome]int{}
		for _, p := range products {
			checkProductStatus(p, verifierIndex, report, counts)
		}

		for _, outcome := range []messages.FileOutcome{messages.OutcomeOK, messages.OutcomeND, messages.OutcomeMD5, messages.OutcomeFS} {
			pterm.Printf("%-4s %d\n", outcome, counts[outcome])
		}
		return nil
	},
}

func checkProductStatus(p model.Product, verifierIndex *verifier.Index, report *messages.ReportWriter, counts map[messages.FileOutcome]int) {
	for _, group := range [][]model.FileUnit{p.Installers, p.Extras, p.Patches, p.LanguagePacks} {
		for _, u := range group {
			outcome := classifyUnit(u, verifierIndex)
			counts[outcome]++
			line := messages.ReportLine{Outcome: outcome, Gamename: u.Gamename, Filename: u.TargetPath, Size: u.DeclaredSize}
			if err := report.Write(line); err != nil {
				pterm.Warning.Println("writing report line:", err)
			}
			pterm.Println(line.String())
		}
	}
	for _, child := range p.Children {
		checkProductStatus(*child, verifierIndex, report, counts)
	}
}

func classifyUnit(u model.FileUnit, verifierIndex *verifier.Index) messages.FileOutcome {
	info, err := os.Stat(u.TargetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return messages.OutcomeND
		}
		return messages.OutcomeFS
	}

	sidecar, ok := verifierIndex.Load(u.Gamename, u.ID)
	if !ok {
		return messages.OutcomeOK
	}
	if info.Size() != sidecar.TotalSize {
		return messages.OutcomeMD5
	}
	bad, err := verifier.MismatchedChunks(u.TargetPath, sidecar)
	if err != nil {
		return messages.OutcomeFS
	}
	if len(bad) > 0 {
		return messages.OutcomeMD5
	}
	return messages.OutcomeOK
}

func init() {
	statusCmd.Flags().StringVar(&statusFlags.reportPath, "report", "", "also append each line to this report file")
	rootCmd.AddCommand(statusCmd)
}
