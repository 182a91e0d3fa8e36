package config

import (
	"log"
	"os"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"contribook/reputation"
)

// LoadServiceConfig reads and parses the contribook.yml file
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	log.Printf("[config] LoadServiceConfig called with path: %s", path)
	file, err := os.Open(path)
	if err != nil {
		log.Printf("[config] Failed to open file: %v", err)
		return nil, err
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		log.Printf("[config] Failed to decode YAML: %v", err)
		return nil, err
	}

	applyDefaults(&cfgFile.Config)
	log.Printf("[config] Successfully loaded config: ListenAddr=%s, Backend=%s, VerificationBackend=%s", cfgFile.Config.ListenAddr, cfgFile.Config.Storage.Backend, cfgFile.Config.Storage.VerificationBackend)
	return &cfgFile.Config, nil
}

func applyDefaults(cfg *ServiceConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultBackend
	}
	if cfg.Storage.Directory == "" {
		cfg.Storage.Directory = DefaultDirectory
	}
	if cfg.FilesDir == "" {
		cfg.FilesDir = DefaultFilesDir
	}
	if cfg.AppendRetries <= 0 {
		cfg.AppendRetries = DefaultAppendRetries
	}
}

// ScoringConfig mirrors the [scoring] section of an .ini override file
type ScoringConfig struct {
	Submit             int64 `ini:"submit"`
	PeerVerified       int64 `ini:"peer_verified"`
	InstructorVerified int64 `ini:"instructor_verified"`
	FlagPenalty        int64 `ini:"flag_penalty"`
	PeerThreshold      int   `ini:"peer_threshold"`
}

// LoadScoringConfig reads scoring weights from an .ini file
func LoadScoringConfig(path string) (*ScoringConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	scoringSection := cfg.Section("scoring")
	scoringCfg := &ScoringConfig{}
	err = scoringSection.MapTo(scoringCfg)
	if err != nil {
		return nil, err
	}
	return scoringCfg, nil
}

// ConvertScoringWeights converts a ScoringConfig to reputation.Weights,
// falling back to the stock formula for any unset value
func ConvertScoringWeights(cfg *ScoringConfig) reputation.Weights {
	weights := reputation.DefaultWeights()
	if cfg == nil {
		return weights
	}
	if cfg.Submit != 0 {
		weights.Submit = cfg.Submit
	}
	if cfg.PeerVerified != 0 {
		weights.PeerVerified = cfg.PeerVerified
	}
	if cfg.InstructorVerified != 0 {
		weights.InstructorVerified = cfg.InstructorVerified
	}
	if cfg.FlagPenalty != 0 {
		weights.FlagPenalty = cfg.FlagPenalty
	}
	if cfg.PeerThreshold > 0 {
		weights.PeerThreshold = cfg.PeerThreshold
	}
	return weights
}
