package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/example/todo-api/client"
)

const projectConfigFile = "todo-tui.toml"

// Config holds the terminal client settings.
type Config struct {
	APIURL  string        `toml:"api_url"`
	Timeout time.Duration `toml:"timeout"`
	LogFile string        `toml:"log_file"`
	Debug   bool          `toml:"debug"`
}

// loadConfig resolves settings in priority order:
// 1. Defaults
// 2. User config file ($XDG_CONFIG_HOME/todo-tui/config.toml)
// 3. Project config file (./todo-tui.toml)
// 4. Environment variables
// 5. CLI flags
func loadConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{
		APIURL:  client.DefaultBaseURL,
		Timeout: 10 * time.Second,
		LogFile: "todo-tui.log",
	}

	if path := userConfigFile(); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", path, err)
		}
	}
	if _, err := os.Stat(projectConfigFile); err == nil {
		if err := loadConfigFile(cfg, projectConfigFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", projectConfigFile, err)
		}
	}

	if v := os.Getenv("TODO_API_URL"); v != "" {
		cfg.APIURL = v
	}

	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "base URL of the todo API")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "file receiving client logs")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	return cfg, nil
}

// userConfigFile returns the user-level config path if it exists.
func userConfigFile() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	path := filepath.Join(dir, "todo-tui", "config.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// loadConfigFile loads TOML config from the given file.
func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}
