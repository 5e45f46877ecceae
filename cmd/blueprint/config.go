package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/metalagman/blueprint/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = ".blueprint/config.json"
	envPrefix         = "BLUEPRINT"
)

func resolveConfigPath(repoRoot, path string) string {
	if path == "" {
		path = defaultConfigPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	return path
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func setDefaults(v *viper.Viper) {
	d := config.Default()
	v.SetDefault("generation.provider", d.Generation.Provider)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.api_key_env", d.Generation.APIKeyEnv)
	v.SetDefault("generation.timeout", d.Generation.Timeout.String())
	v.SetDefault("generation.temperature", d.Generation.Temperature)
	v.SetDefault("generation.repair_temperature", d.Generation.RepairTemperature)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("retention.keep_last", d.Retention.KeepLast)
	v.SetDefault("retention.keep_days", d.Retention.KeepDays)
}

// loadConfig reads the config file (if present), a .env file and BLUEPRINT_*
// environment overrides. A missing config file means defaults.
func loadConfig(repoRoot string) (config.Config, error) {
	if err := godotenv.Load(filepath.Join(repoRoot, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}

	path := resolveConfigPath(repoRoot, viper.GetString("config"))
	setDefaults(viper.GetViper())
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		// The schema applies to what is written in the file, before defaults
		// and environment strings are merged in.
		file := viper.New()
		file.SetConfigFile(path)
		file.SetConfigType(configType(path))
		if err := file.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := config.ValidateSettings(file.AllSettings()); err != nil {
			return config.Config{}, err
		}

		viper.SetConfigFile(path)
		viper.SetConfigType(configType(path))
		if err := viper.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Debug().Str("path", path).Msg("config file not found, using defaults")
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return config.Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Storage.Path != "" && !filepath.IsAbs(cfg.Storage.Path) {
		cfg.Storage.Path = filepath.Join(repoRoot, cfg.Storage.Path)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
