package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/thewnetwork/telesync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".telesync", "config.json")
	DefaultServerURL  = "https://www.telebox.online"
	DefaultWorkers    = 4
)

var (
	ErrNoToken        = errors.New("config: api token missing")
	ErrNoBaseFolderID = errors.New("config: base folder id missing")
)

type Config struct {
	Token        string `json:"token"`
	ServerURL    string `json:"server_url"`
	BaseFolderID int64  `json:"base_folder_id"`
	Workers      int    `json:"workers"`
	Path         string `json:"-"`
}

// Validate checks required fields and fills in defaults for optional ones.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrNoToken
	}

	if c.BaseFolderID <= 0 {
		return ErrNoBaseFolderID
	}

	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}

	if c.Workers < 1 {
		c.Workers = DefaultWorkers
	}

	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path

	return &cfg, nil
}
