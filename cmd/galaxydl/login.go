package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/galaxydl/galaxydl/pkg/token"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Acquire a refresh token via the OAuth authorization-code flow and persist it",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, paths, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if settings.ClientID == "" {
			return fmt.Errorf("--client-id (or config.cfg's client-id) is required for login")
		}

		url := token.AuthorizeURL(settings.ClientID)
		pterm.Info.Println("Open this URL in a browser and authorize the application:")
		pterm.Println(url)
		pterm.Println("Paste the \"code\" query parameter from the redirect URL below:")

		code, err := readLine()
		if err != nil {
			return err
		}

		store := token.New()
		ctx := context.Background()
		if err := store.ExchangeCode(ctx, settings.ClientID, settings.ClientSecret, strings.TrimSpace(code)); err != nil {
			return fmt.Errorf("exchanging authorization code: %w", err)
		}
		if err := store.Save(paths.GalaxyTokens(), true); err != nil {
			return fmt.Errorf("saving token: %w", err)
		}

		pterm.Success.Printf("Logged in; token saved to %s\n", paths.GalaxyTokens())
		return nil
	},
}

func readLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
