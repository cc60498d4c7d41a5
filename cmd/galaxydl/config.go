package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/galaxydl/galaxydl/internal/layout"
	"github.com/galaxydl/galaxydl/pkg/blacklist"
	"github.com/galaxydl/galaxydl/pkg/fileunit"
	"github.com/galaxydl/galaxydl/pkg/model"
	"github.com/galaxydl/galaxydl/pkg/repo"
	"github.com/galaxydl/galaxydl/pkg/token"
	"github.com/galaxydl/galaxydl/pkg/transport"
)

// Settings is the fully-resolved configuration for one invocation:
// persistent flags layered over config.cfg (§6's `key=value` file),
// itself layered over viper's built-in defaults.
type Settings struct {
	CacheRoot         string
	ConfigRoot        string
	DownloadRoot      string
	Threads           int
	Language          string
	Platform          string
	Arch              string
	IncludeDLC        bool
	DuplicateHandling bool
	ClientID          string
	ClientSecret      string
	UsedCDN           []string
	CacheValidMinutes int
	AllowStaleCache   bool
}

// viperBindPersistentFlags ties every persistent flag to a same-named
// viper key so config.cfg, environment variables (GALAXYDL_ prefix),
// and the flag itself all resolve through one precedence chain.
func viperBindPersistentFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.PersistentFlags())
}

// loadSettings reads config.cfg (viper's "properties" codec, matching
// §6's plain `key=value` grammar) from the resolved config root, merges
// it under the already-bound flags/env, and decodes the result.
func loadSettings(cmd *cobra.Command) (Settings, layout.Paths, error) {
	viper.SetEnvPrefix("galaxydl")
	viper.AutomaticEnv()

	s := Settings{
		CacheRoot:         viper.GetString("cache-root"),
		ConfigRoot:        viper.GetString("config-root"),
		DownloadRoot:      viper.GetString("download-root"),
		Threads:           viper.GetInt("threads"),
		Language:          viper.GetString("language"),
		Platform:          viper.GetString("platform"),
		Arch:              viper.GetString("arch"),
		IncludeDLC:        viper.GetBool("include-dlc"),
		DuplicateHandling: viper.GetBool("duplicate-handling"),
		ClientID:          viper.GetString("client-id"),
		ClientSecret:      viper.GetString("client-secret"),
		UsedCDN:           viper.GetStringSlice("used-cdn"),
		CacheValidMinutes: 60,
	}
	if s.Threads <= 0 {
		s.Threads = 1
	}

	paths := resolvePaths(s)

	cfgViper := viper.New()
	cfgViper.SetConfigFile(paths.ConfigFile())
	cfgViper.SetConfigType("properties")
	if err := cfgViper.ReadInConfig(); err == nil {
		if v := cfgViper.GetString("client-id"); v != "" && s.ClientID == "" {
			s.ClientID = v
		}
		if v := cfgViper.GetString("client-secret"); v != "" && s.ClientSecret == "" {
			s.ClientSecret = v
		}
		if v := cfgViper.GetInt("threads"); v > 0 && !cmd.PersistentFlags().Changed("threads") {
			s.Threads = v
		}
		if v := cfgViper.GetInt("cache-valid-minutes"); v > 0 {
			s.CacheValidMinutes = v
		}
		if cfgViper.IsSet("allow-stale-cache") {
			s.AllowStaleCache = cfgViper.GetBool("allow-stale-cache")
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, layout.Paths{}, fmt.Errorf("reading %s: %w", paths.ConfigFile(), err)
	}
	// A missing config.cfg is not an error (§4.10-style "absent -> use
	// defaults" posture); any other read failure is surfaced.

	return s, paths, nil
}

// platformMask/languageMask translate the resolved settings into the
// bitmasks pkg/fileunit and pkg/planner filter against.
func (s Settings) platformMask() model.PlatformMask { return fileunit.LookupPlatform(s.Platform) }
func (s Settings) languageMask() model.LanguageMask { return fileunit.LookupLanguage(s.Language) }
func (s Settings) cacheValidFor() time.Duration {
	return time.Duration(s.CacheValidMinutes) * time.Minute
}

// coreClients bundles the shared, stateless handles every verb builds
// once: an HTTP transport, the persisted token store, and the
// repository client layered on top of it.
type coreClients struct {
	HTTP   *transport.Client
	Tokens *token.Store
	Repo   *repo.Client
	Black  blacklist.List
}

func buildCoreClients(paths layout.Paths, settings Settings) (*coreClients, error) {
	http := transport.New(transport.DefaultConfig())

	tokens := token.New()
	if err := tokens.Load(paths.GalaxyTokens()); err != nil {
		// Not fatal here: verbs that don't need auth (e.g. --check-orphans)
		// still work, and --login populates this file for the first time.
	}

	repoClient := repo.New(http, tokens, settings.UsedCDN)

	black, warnings, err := blacklist.Load(paths.Blacklist())
	if err != nil {
		return nil, fmt.Errorf("loading blacklist: %w", err)
	}
	for _, w := range warnings {
		fmt.Println("blacklist:", w)
	}

	return &coreClients{HTTP: http, Tokens: tokens, Repo: repoClient, Black: black}, nil
}
