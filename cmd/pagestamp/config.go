package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gardar/pagestamp/pkg/assign"
	"github.com/gardar/pagestamp/pkg/document"
	"github.com/gardar/pagestamp/pkg/stamp"
	"github.com/gardar/pagestamp/pkg/symbol"
	"github.com/gardar/pagestamp/pkg/taskapi"
)

// tokenEnv holds the task service credential when the config has none.
const tokenEnv = "PAGESTAMP_TOKEN"

type yamlConfig struct {
	Symbol      string   `yaml:"symbol"`
	SymbolSize  int      `yaml:"symbol_size"`
	SymbolWidth float64  `yaml:"symbol_width"`
	Anchor      string   `yaml:"anchor"`
	Margin      *float64 `yaml:"margin"`
	LayerName   string   `yaml:"layer_name"`
	Compression *bool    `yaml:"compression"`
	Workers     int      `yaml:"workers"`
	Materials   []string `yaml:"materials"`
	Poppler     string   `yaml:"poppler"`
	LogLevel    string   `yaml:"log_level"`
	TaskAPI     struct {
		URL     string        `yaml:"url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"task_api"`
}

// appConfig is the parsed configuration of one run.
type appConfig struct {
	Loader    document.Config
	Stamp     stamp.Config
	Materials assign.Vocabulary
	TaskAPI   taskapi.Options
	LogLevel  slog.Level
}

func defaultAppConfig() *appConfig {
	return &appConfig{
		Loader:    document.DefaultConfig(),
		Stamp:     stamp.DefaultConfig(),
		Materials: assign.DefaultMaterials,
		TaskAPI:   taskapi.Options{Token: os.Getenv(tokenEnv)},
		LogLevel:  slog.LevelInfo,
	}
}

// loadConfig reads a YAML file and converts it to library configs. An empty
// path yields the defaults.
func loadConfig(path string) (*appConfig, error) {
	cfg := defaultAppConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, err
	}
	if err := yc.apply(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (yc *yamlConfig) apply(cfg *appConfig) error {
	if yc.Symbol != "" {
		kind, err := symbol.ParseKind(yc.Symbol)
		if err != nil {
			return err
		}
		cfg.Stamp.Symbol = kind
	}
	if yc.SymbolSize > 0 {
		cfg.Stamp.SymbolSize = yc.SymbolSize
	}
	if yc.SymbolWidth > 0 {
		cfg.Stamp.SymbolWidth = yc.SymbolWidth
	}
	if yc.Anchor != "" {
		anchor, err := stamp.ParseAnchor(yc.Anchor)
		if err != nil {
			return err
		}
		cfg.Stamp.Anchor = anchor
	}
	if yc.Margin != nil {
		cfg.Stamp.Margin = *yc.Margin
	}
	if yc.LayerName != "" {
		cfg.Stamp.LayerName = yc.LayerName
		cfg.Loader.StampLayerName = yc.LayerName
	}
	if yc.Compression != nil {
		cfg.Stamp.Compression = *yc.Compression
	}
	if yc.Workers > 0 {
		cfg.Stamp.Workers = yc.Workers
	}
	if len(yc.Materials) > 0 {
		cfg.Materials = assign.Vocabulary(yc.Materials)
	}
	if yc.Poppler != "" {
		cfg.Loader.PDFRasterizer = &document.PopplerRasterizer{Command: yc.Poppler}
	}
	if yc.LogLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(yc.LogLevel))); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	cfg.TaskAPI.URL = yc.TaskAPI.URL
	cfg.TaskAPI.Timeout = yc.TaskAPI.Timeout
	if yc.TaskAPI.Token != "" {
		cfg.TaskAPI.Token = yc.TaskAPI.Token
	}
	return nil
}
