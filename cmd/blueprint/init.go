package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/blueprint/internal/config"
	"github.com/metalagman/blueprint/internal/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func defaultConfigJSON() ([]byte, error) {
	cfg := config.Default()
	// Storage is written relative so the config stays portable.
	data, err := json.MarshalIndent(struct {
		Generation fileGeneration         `json:"generation"`
		Storage    config.StorageConfig   `json:"storage"`
		Server     config.ServerConfig    `json:"server"`
		Retention  config.RetentionPolicy `json:"retention"`
	}{
		Generation: fileGeneration{
			Provider:          cfg.Generation.Provider,
			Model:             cfg.Generation.Model,
			APIKeyEnv:         cfg.Generation.APIKeyEnv,
			Timeout:           cfg.Generation.Timeout.String(),
			Temperature:       cfg.Generation.Temperature,
			RepairTemperature: cfg.Generation.RepairTemperature,
		},
		Storage:   cfg.Storage,
		Server:    cfg.Server,
		Retention: cfg.Retention,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// fileGeneration is the on-disk form of the generation section, with the
// timeout as a duration string.
type fileGeneration struct {
	Provider          string  `json:"provider"`
	Model             string  `json:"model"`
	APIKeyEnv         string  `json:"api_key_env"`
	Timeout           string  `json:"timeout"`
	Temperature       float64 `json:"temperature"`
	RepairTemperature float64 `json:"repair_temperature"`
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the local database",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			path := resolveConfigPath(repoRoot, viper.GetString("config"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			data, err := defaultConfigJSON()
			if err != nil {
				return fmt.Errorf("encode default config: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			log.Info().Str("path", path).Msg("wrote default config")

			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			version, err := db.SchemaVersion(a.db)
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			log.Info().Str("path", a.cfg.Storage.Path).Int64("schema", version).Msg("database ready")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}
