package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	coremetrics "github.com/lmichel/tonectl/core/metrics"
	"github.com/lmichel/tonectl/infra/cloud"
	"github.com/lmichel/tonectl/infra/mqtt"
)

type Config struct {
	Cloud    cloud.Config       `json:"cloud"`
	MQTT     mqtt.Config        `json:"mqtt"`
	Metrics  coremetrics.Config `json:"metrics"`
	Planning PlanningConfig     `json:"planning"`
	Logging  LoggingConfig      `json:"logging"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("TONECTL_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "tonectl_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Cloud.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Planning.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Cloud.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Planning.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
