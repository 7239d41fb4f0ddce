package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Config is the bot's own configuration, read once at startup.
// Reply rules live in their own file under DataDir and are managed
// through chat commands, not here.
type Config struct {
	WSURL          string  `json:"ws_url"`
	AccessToken    string  `json:"access_token,omitempty"`
	Admins         []int64 `json:"admins"`
	CommandPrefix  string  `json:"command_prefix,omitempty"`  // default "/reply"
	WakePrefix     string  `json:"wake_prefix,omitempty"`     // optional trigger prefix for groups
	RequireMention bool    `json:"require_mention,omitempty"` // groups reply only when mentioned/woken
	DataDir        string  `json:"data_dir,omitempty"`        // default: $XDG_DATA_HOME/replybot
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) fillDefaults() error {
	if cfg.WSURL == "" {
		return errors.New("config: ws_url is required")
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "/reply"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, "replybot")
	}
	return nil
}

func (cfg *Config) rulesPath() string {
	return filepath.Join(cfg.DataDir, "keyword_reply_config.json")
}

func (cfg *Config) imagesDir() string {
	return filepath.Join(cfg.DataDir, "images")
}
