// this code is adapted from https://github.com/ryogrid/SamehadaDB (common/config.go)
package common

import (
	"github.com/pelletier/go-toml"
)

// Defaults mirror spec.md section 6's configuration knobs.
const (
	DefaultPageSize         = 4096
	DefaultBufferPoolFrames = 16

	// InvalidPageID / InvalidTxnID sentinel values, kept as untyped
	// constants here so both types.PageID and types.TxnID can use them
	// without an import cycle.
	InvalidPageID = -1
	InvalidTxnID  = -1

	// HeaderPageID is the root-header page (spec.md section 6): page 0
	// records the current root page id, free-page head, and page size.
	HeaderPageID = 0
)

var EnableDebug bool = false

// Config bundles the knobs spec.md section 6 calls out. The zero value is
// not valid; use NewDefaultConfig or LoadConfig.
type Config struct {
	PageSize           int
	BufferPoolFrames   int
	DataFile           string
	EnableDebugAsserts bool
}

// NewDefaultConfig returns the teacher's hardcoded defaults (4096 byte pages,
// 16 frames) with dataFile as the data file path (callers that construct
// everything in-process, such as tests or embedding, may pass "").
func NewDefaultConfig(dataFile string) *Config {
	return &Config{
		PageSize:         DefaultPageSize,
		BufferPoolFrames: DefaultBufferPoolFrames,
		DataFile:         dataFile,
	}
}

// tomlConfig is the on-disk shape; any field left unset falls back to the
// default in NewDefaultConfig.
type tomlConfig struct {
	PageSize           int    `toml:"page_size"`
	BufferPoolFrames   int    `toml:"buffer_pool_frames"`
	DataFile           string `toml:"data_file"`
	EnableDebugAsserts bool   `toml:"enable_debug_asserts"`
}

// LoadConfig parses a TOML config file at path, filling in defaults for
// any knob the file omits or leaves at zero.
func LoadConfig(path string) (*Config, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, err
	}
	var tc tomlConfig
	if err := tree.Unmarshal(&tc); err != nil {
		return nil, err
	}
	cfg := NewDefaultConfig(tc.DataFile)
	if tc.PageSize > 0 {
		cfg.PageSize = tc.PageSize
	}
	if tc.BufferPoolFrames > 0 {
		cfg.BufferPoolFrames = tc.BufferPoolFrames
	}
	cfg.EnableDebugAsserts = tc.EnableDebugAsserts
	return cfg, nil
}
