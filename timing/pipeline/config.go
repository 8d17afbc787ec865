package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
)

// FUConfig configures one functional-unit class.
type FUConfig struct {
	Count   int `json:"count"`
	Latency int `json:"latency"`
}

// CacheConfig configures one level of the memory hierarchy, grounded
// on the reference repository's timing/cache.Config shape.
type CacheConfig struct {
	Size          int `json:"size"`
	BlockSize     int `json:"block_size"`
	Associativity int `json:"associativity"`
	MissPenalty   int `json:"miss_penalty"`
}

// Config is the full configuration surface for a pipeline Driver.
type Config struct {
	FetchWidth  int `json:"fetch_width"`
	IssueWidth  int `json:"issue_width"`
	CommitWidth int `json:"commit_width"`

	ROBCapacity      int `json:"rob_capacity"`
	RSCapacityPerClass int `json:"rs_capacity_per_class"`
	LSQCapacity      int `json:"lsq_capacity"`
	CDBWidth         int `json:"cdb_width"`

	ALU FUConfig `json:"alu"`
	FPU FUConfig `json:"fpu"`
	LSU FUConfig `json:"lsu"`

	BranchPredictorType    string `json:"branch_predictor_type"`
	BranchPredictorEntries int    `json:"branch_predictor_entries"`
	HistoryLength          int    `json:"history_length"`
	BTBEntries             int    `json:"btb_entries"`

	ICache CacheConfig `json:"icache"`
	DCache CacheConfig `json:"dcache"`

	MemorySize uint64 `json:"memory_size"`
	MaxCycles  uint64 `json:"max_cycles"`
}

// DefaultConfig returns a reasonable baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		FetchWidth:         4,
		IssueWidth:         4,
		CommitWidth:        4,
		ROBCapacity:        64,
		RSCapacityPerClass: 16,
		LSQCapacity:        16,
		CDBWidth:           4,
		ALU:                FUConfig{Count: 4, Latency: 1},
		FPU:                FUConfig{Count: 2, Latency: 3},
		LSU:                FUConfig{Count: 2, Latency: 2},
		BranchPredictorType:    "gshare",
		BranchPredictorEntries: 1024,
		HistoryLength:          10,
		BTBEntries:             256,
		ICache: CacheConfig{Size: 32 * 1024, BlockSize: 64, Associativity: 4, MissPenalty: 10},
		DCache: CacheConfig{Size: 32 * 1024, BlockSize: 64, Associativity: 4, MissPenalty: 10},
		MemorySize: 1 << 20,
		MaxCycles:  1_000_000,
	}
}

// LoadConfig reads a JSON configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg as JSON to path.
func SaveConfig(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

// Validate implements the §7 "Configuration-invalid" checks.
func (c *Config) Validate() error {
	if c.FetchWidth <= 0 || c.IssueWidth <= 0 || c.CommitWidth <= 0 {
		return fmt.Errorf("config: pipeline widths must be positive")
	}
	if c.ROBCapacity <= 0 || c.RSCapacityPerClass <= 0 || c.LSQCapacity <= 0 {
		return fmt.Errorf("config: capacities must be positive")
	}
	if c.ALU.Count <= 0 || c.LSU.Count <= 0 {
		return fmt.Errorf("config: ALU and LSU counts must be positive")
	}
	for name, fu := range map[string]FUConfig{"alu": c.ALU, "fpu": c.FPU, "lsu": c.LSU} {
		if fu.Count < 0 || fu.Latency <= 0 {
			return fmt.Errorf("config: %s latency must be positive", name)
		}
	}
	switch c.BranchPredictorType {
	case "always_taken", "bimodal", "gshare":
	default:
		return fmt.Errorf("config: unknown branch predictor type %q", c.BranchPredictorType)
	}
	for name, cache := range map[string]CacheConfig{"icache": c.ICache, "dcache": c.DCache} {
		if !isPowerOfTwo(cache.Size) || !isPowerOfTwo(cache.BlockSize) || !isPowerOfTwo(cache.Associativity) {
			return fmt.Errorf("config: %s size/block_size/associativity must be powers of two", name)
		}
		if cache.MissPenalty <= 0 {
			return fmt.Errorf("config: %s miss_penalty must be positive", name)
		}
	}
	if c.MemorySize == 0 {
		return fmt.Errorf("config: memory_size must be positive")
	}
	return nil
}

// Clone returns a deep copy of cfg.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
