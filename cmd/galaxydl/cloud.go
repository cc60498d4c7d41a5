package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/galaxydl/galaxydl/pkg/cloudsave"
)

var cloudFlags struct {
	endpoint string
	local    string
	remote   string
}

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Upload, download, delete, inspect, or sync cloud save files",
}

var cloudUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a local file to the cloud save store (--cloud-upload)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := buildCloudClient(cmd)
		if err != nil {
			return err
		}
		if cloudFlags.local == "" || cloudFlags.remote == "" {
			return fmt.Errorf("--local and --remote are required")
		}
		if err := client.Upload(cmd.Context(), cloudFlags.local, cloudFlags.remote); err != nil {
			return err
		}
		pterm.Success.Println("uploaded")
		return nil
	},
}

var cloudDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a cloud save file to a local path (--cloud-download)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := buildCloudClient(cmd)
		if err != nil {
			return err
		}
		if cloudFlags.local == "" || cloudFlags.remote == "" {
			return fmt.Errorf("--local and --remote are required")
		}
		if err := client.Download(cmd.Context(), cloudFlags.remote, cloudFlags.local); err != nil {
			return err
		}
		pterm.Success.Println("downloaded")
		return nil
	},
}

var cloudDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a cloud save file (--cloud-delete)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := buildCloudClient(cmd)
		if err != nil {
			return err
		}
		if cloudFlags.remote == "" {
			return fmt.Errorf("--remote is required")
		}
		if err := client.Delete(cmd.Context(), cloudFlags.remote); err != nil {
			return err
		}
		pterm.Success.Println("deleted")
		return nil
	},
}

var cloudShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List remote cloud save metadata under a prefix (--cloud-show)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := buildCloudClient(cmd)
		if err != nil {
			return err
		}
		items, err := client.List(cmd.Context(), cloudFlags.remote)
		if err != nil {
			return err
		}
		rows := pterm.TableData{{"Path", "Size", "LocalLastModified"}}
		for _, it := range items {
			rows = append(rows, []string{it.Path, fmt.Sprintf("%d", it.Size), it.LocalLastModified.Format(time.RFC3339)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

var cloudShowLocalCmd = &cobra.Command{
	Use:   "show-local",
	Short: "Print local file metadata for comparison against --cloud-show (--cloud-show-local)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cloudFlags.local == "" {
			return fmt.Errorf("--local is required")
		}
		info, err := os.Stat(cloudFlags.local)
		if err != nil {
			return err
		}
		pterm.Printf("%s  %d bytes  LocalLastModified=%s\n", cloudFlags.local, info.Size(), info.ModTime().UTC().Format(time.RFC3339))
		return nil
	},
}

var cloudSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Diff local vs remote via LocalLastModified and upload/download/noop (--cloud-sync)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := buildCloudClient(cmd)
		if err != nil {
			return err
		}
		if cloudFlags.local == "" || cloudFlags.remote == "" {
			return fmt.Errorf("--local and --remote are required")
		}

		ctx := cmd.Context()
		localInfo, localErr := os.Stat(cloudFlags.local)
		localExists := localErr == nil

		remoteMeta, remoteErr := client.Show(ctx, cloudFlags.remote)
		remoteExists := remoteErr == nil

		var localModTime time.Time
		if localExists {
			localModTime = localInfo.ModTime().UTC()
		}

		action := cloudsave.Decide(localExists, localModTime, remoteExists, remoteMeta)
		pterm.Info.Println("decision:", action)

		switch action {
		case cloudsave.SyncUpload:
			return client.Upload(ctx, cloudFlags.local, cloudFlags.remote)
		case cloudsave.SyncDownload:
			return client.Download(ctx, cloudFlags.remote, cloudFlags.local)
		default:
			pterm.Success.Println("already in sync")
			return nil
		}
	},
}

// buildCloudClient loads settings/tokens the way every other verb does
// and layers a cloudsave.Client on top, using the token store as the
// cloud store's bearer-token source and UserData's user id as the
// object key's first segment.
func buildCloudClient(cmd *cobra.Command) (*cloudsave.Client, error) {
	settings, paths, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	clients, err := buildCoreClients(paths, settings)
	if err != nil {
		return nil, err
	}

	userData, err := clients.Repo.UserData(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("resolving user id for cloud storage: %w", err)
	}

	endpoint := cloudFlags.endpoint
	if endpoint == "" {
		endpoint = "cloudstorage.gog.com"
	}
	return cloudsave.New(endpoint, clients.Tokens, userData.UserID, settings.ClientID)
}

func init() {
	cloudCmd.PersistentFlags().StringVar(&cloudFlags.endpoint, "cloud-endpoint", "", "cloud storage endpoint host; defaults to cloudstorage.gog.com")
	cloudCmd.PersistentFlags().StringVar(&cloudFlags.local, "local", "", "local file path")
	cloudCmd.PersistentFlags().StringVar(&cloudFlags.remote, "remote", "", "remote path under the account's cloud save tree")

	cloudCmd.AddCommand(cloudUploadCmd, cloudDownloadCmd, cloudDeleteCmd, cloudShowCmd, cloudShowLocalCmd, cloudSyncCmd)
	rootCmd.AddCommand(cloudCmd)
}
