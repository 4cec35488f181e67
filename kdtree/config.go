// Package kdtree implements the disk-backed k-d tree: construction with
// leaf-overflow splitting and branch-and-bound k-nearest-neighbor query,
// composing the node table, leaf pager, and content database (§4.6, §4.7,
// §4.8).
package kdtree

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/molecularmodelinglab/simsearchserver/internal/utils"
)

// Config is a tree's persisted configuration, written to config.yaml in
// its directory (§4.8).
type Config struct {
	Directory        string `yaml:"directory"`
	DescLength       int    `yaml:"desc_length"`
	RecordPageLength int    `yaml:"record_page_length"`
	// NodePageLength is kept for forward compatibility; the current codec
	// keeps the node table wholly in memory and does not page it (§4.3).
	NodePageLength int `yaml:"node_page_length"`
	// NumRecords is an optional hint for progress reporting; it is not
	// authoritative and is not reconciled against ContentDB.Count.
	NumRecords int `yaml:"num_records,omitempty"`
}

const configFileName = "config.yaml"
const nodeFileName = "node"
const recordFileName = "record"
const contentFileName = "db.db"
const buildLogFileName = "build_log.txt"

func (c Config) validate() error {
	if c.DescLength <= 0 {
		return fmt.Errorf("kdtree: config desc_length must be positive, got %d", c.DescLength)
	}
	if c.RecordPageLength <= 0 {
		return fmt.Errorf("kdtree: config record_page_length must be positive, got %d", c.RecordPageLength)
	}
	if err := utils.ValidateBufferSize(uint64(c.RecordPageLength), utils.MaxLeafPageLength, "record_page_length"); err != nil {
		return fmt.Errorf("kdtree: %w", err)
	}
	return nil
}

func loadConfig(dir string) (Config, error) {
	path := filepath.Join(dir, configFileName)
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return Config{}, fmt.Errorf("kdtree: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, path, err)
	}
	return cfg, nil
}

func saveConfig(cfg Config) error {
	path := filepath.Join(cfg.Directory, configFileName)
	buf, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("kdtree: marshaling config: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}
