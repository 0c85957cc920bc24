package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lazypower/affect/internal/config"
	"github.com/lazypower/affect/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "affect",
	Short: "Emotional memory for game NPCs",
	Long: "Affect keeps a decaying emotional memory for every NPC session and answers " +
		"valence/arousal queries over HTTP. Run `affect serve`, then drive it with `affect npc`.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the YAML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(npcCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

// defaultConfigPath returns ~/.affect/config.yaml, or "" when there is no
// home directory.
func defaultConfigPath() string {
	if p := os.Getenv("AFFECT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".affect", "config.yaml")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// resolveDBPath picks the database path from config, falling back to the
// default location.
func resolveDBPath(cfg config.Config) (string, error) {
	if cfg.Database.Path != "" {
		return cfg.Database.Path, nil
	}
	p, err := store.DefaultDBPath()
	if err != nil {
		return "", fmt.Errorf("resolve db path: %w", err)
	}
	return p, nil
}
