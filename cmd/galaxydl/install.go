package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/galaxydl/galaxydl/pkg/legacyrepo"
)

// splitFilesListPath mirrors pkg/legacyrepo's unexported
// splitFilesListPath constant: the fixed sidecar member path naming
// which extracted files are split across "<base>.splitN" parts.
const splitFilesListPath = "data/noarch/support/split_files"

var installFlags struct {
	url     string
	destDir string
	nosplit bool
}

var installCmd = &cobra.Command{
	Use:   "install-build",
	Short: "Extract a legacy monolithic installer as a synthetic repository (§4.5)",
	Long: `Used for titles with no generation-2 build manifest: treats a
single shell-script-plus-zip installer as a repository, extracting its
members directly rather than running the installer. Files listed in
the data/noarch/support/split_files member arrive as <base>.splitN
parts, which are joined back into the base file after extraction
unless --no-split-merge is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if installFlags.url == "" {
			return fmt.Errorf("--url (the installer's direct download URL) is required")
		}
		if installFlags.destDir == "" {
			return fmt.Errorf("--dest is required")
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

		repo, err := legacyrepo.Open(ctx, clients.HTTP, installFlags.url)
		if err != nil {
			return fmt.Errorf("opening legacy installer: %w", err)
		}

		members := repo.Members()
		spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Extracting %d member(s)...", len(members)))

		var extracted []string
		for _, m := range members {
			destPath := filepath.Join(installFlags.destDir, filepath.FromSlash(m.Path))
			if m.IsSymlink {
				if err := repo.ExtractSymlink(m, destPath); err != nil {
					spinner.Fail()
					return fmt.Errorf("extracting symlink %s: %w", m.Path, err)
				}
			} else {
				if err := repo.Extract(m, destPath); err != nil {
					spinner.Fail()
					return fmt.Errorf("extracting %s: %w", m.Path, err)
				}
			}
			extracted = append(extracted, destPath)
		}
		spinner.Success()

		if !installFlags.nosplit {
			if err := mergeSplitInstallerParts(installFlags.destDir, members); err != nil {
				pterm.Warning.Println("split-file reassembly:", err)
			}
		}

		pterm.Success.Printf("extracted %d file(s) to %s\n", len(extracted), installFlags.destDir)
		return nil
	},
}

// mergeSplitInstallerParts implements the §4.5/§9.1-supplemented
// split-file reassembly: the data/noarch/support/split_files member (if
// present) lists base paths, each base's "<base>.splitN" parts are
// concatenated in index order into the base file, and the parts are
// removed once combined.
func mergeSplitInstallerParts(destDir string, members []legacyrepo.Member) error {
	var listMember *legacyrepo.Member
	for i := range members {
		if members[i].Path == splitFilesListPath {
			listMember = &members[i]
			break
		}
	}
	if listMember == nil {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(destDir, filepath.FromSlash(listMember.Path)))
	if err != nil {
		return err
	}
	bases, err := legacyrepo.ParseSplitFilesList(data)
	if err != nil {
		return err
	}

	groups := legacyrepo.GroupSplitParts(members, bases)
	for base, parts := range groups {
		basePath := filepath.Join(destDir, filepath.FromSlash(base))
		var partPaths []string
		for _, p := range parts {
			partPaths = append(partPaths, filepath.Join(destDir, filepath.FromSlash(p.Path)))
		}
		if err := legacyrepo.CombineSplitParts(basePath, partPaths); err != nil {
			return fmt.Errorf("combining parts for %s: %w", base, err)
		}
	}
	return nil
}

func init() {
	installCmd.Flags().StringVar(&installFlags.url, "url", "", "direct download URL of the monolithic installer")
	installCmd.Flags().StringVar(&installFlags.destDir, "dest", "", "extraction destination directory")
	installCmd.Flags().BoolVar(&installFlags.nosplit, "no-split-merge", false, "skip joining <base>.splitN parts listed in split_files")
	rootCmd.AddCommand(installCmd)
}
