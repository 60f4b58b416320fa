/*
Package config manages the TOML config of the autocomplete services.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/bastiangx/autocomplete/internal/utils"
	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Server  ServerConfig  `toml:"server"`
	Dict    DictConfig    `toml:"dict"`
	HTTP    HTTPConfig    `toml:"http"`
	Feed    FeedConfig    `toml:"feed"`
	Sources SourcesConfig `toml:"sources"`
	CLI     CliConfig     `toml:"cli"`
}

// EngineConfig tunes the completion engine.
type EngineConfig struct {
	MaxTermLength int  `toml:"max_term_length"`
	FoldCase      bool `toml:"fold_case"`
	LoadChunkSize int  `toml:"load_chunk_size"`
}

// ServerConfig has options shared by the IPC and HTTP front ends.
type ServerConfig struct {
	DefaultLimit int  `toml:"default_limit"`
	MaxLimit     int  `toml:"max_limit"`
	MinPrefix    int  `toml:"min_prefix"`
	MaxPrefix    int  `toml:"max_prefix"`
	EnableFilter bool `toml:"enable_filter"`
}

// DictConfig holds dictionary options.
type DictConfig struct {
	// Path is a single vocabulary file (.txt, .csv, .yaml, .msgpack).
	Path string `toml:"path"`
	// DataDir holds dict_NNNN.bin chunk files.
	DataDir      string `toml:"data_dir"`
	ChunkSize    int    `toml:"chunk_size"`
	MaxWords     int    `toml:"max_words"`
	SnapshotPath string `toml:"snapshot_path"`
}

// HTTPConfig holds the HTTP API options.
type HTTPConfig struct {
	Addr    string `toml:"addr"`
	Enabled bool   `toml:"enabled"`
}

// FeedConfig holds the Kafka update feed options. An empty topic disables it.
type FeedConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	GroupID string   `toml:"group_id"`
}

// SourcesConfig names external vocabularies loaded at startup.
type SourcesConfig struct {
	PostgresDSN   string `toml:"postgres_dsn"`
	PostgresQuery string `toml:"postgres_query"`
	RedisAddr     string `toml:"redis_addr"`
	RedisKey      string `toml:"redis_key"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit    int  `toml:"default_limit"`
	DefaultMinLen   int  `toml:"default_min_len"`
	DefaultMaxLen   int  `toml:"default_max_len"`
	DefaultNoFilter bool `toml:"default_no_filter"`
}

// EngineOptions converts the engine section into completer options.
func (c *Config) EngineOptions() suggest.Options {
	return suggest.Options{
		MaxTermLength: c.Engine.MaxTermLength,
		FoldCase:      c.Engine.FoldCase,
		LoadChunkSize: c.Engine.LoadChunkSize,
	}
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		return utils.GetExecutableDir()
	}
	primaryPath := filepath.Join(homeDir, ".config", utils.AppDirName)
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", utils.AppDirName)
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from the -config flag
// 2. Default path: [UserConfigDir]/autocomplete/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err == nil {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
			log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}

	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}
	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxTermLength: suggest.DefaultMaxTermLength,
			FoldCase:      false,
			LoadChunkSize: suggest.DefaultLoadChunkSize,
		},
		Server: ServerConfig{
			DefaultLimit: 10,
			MaxLimit:     64,
			MinPrefix:    0,
			MaxPrefix:    60,
			EnableFilter: false,
		},
		Dict: DictConfig{
			DataDir:   "data/",
			ChunkSize: 10000,
			MaxWords:  50000,
		},
		HTTP: HTTPConfig{
			Addr:    ":8080",
			Enabled: false,
		},
		Feed: FeedConfig{
			Brokers: []string{"localhost:9092"},
			GroupID: "autocomplete",
		},
		Sources: SourcesConfig{
			RedisKey: "autocomplete:terms",
		},
		CLI: CliConfig{
			DefaultLimit:    10,
			DefaultMinLen:   0,
			DefaultMaxLen:   60,
			DefaultNoFilter: true,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)
	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file. Keys missing from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse salvages well-typed keys from a file that does not decode
// into Config, e.g. one holding a string where an int belongs.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "engine"); ok {
		extractEngineConfig(section, &config.Engine)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "dict"); ok {
		extractDictConfig(section, &config.Dict)
	}
	if section, ok := utils.ExtractSection(tempConfig, "http"); ok {
		extractHTTPConfig(section, &config.HTTP)
	}
	if section, ok := utils.ExtractSection(tempConfig, "feed"); ok {
		extractFeedConfig(section, &config.Feed)
	}
	if section, ok := utils.ExtractSection(tempConfig, "sources"); ok {
		extractSourcesConfig(section, &config.Sources)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	return config, nil
}

func extractEngineConfig(data map[string]any, engine *EngineConfig) {
	if val, ok := utils.ExtractInt64(data, "max_term_length"); ok {
		engine.MaxTermLength = val
	}
	if val, ok := utils.ExtractBool(data, "fold_case"); ok {
		engine.FoldCase = val
	}
	if val, ok := utils.ExtractInt64(data, "load_chunk_size"); ok {
		engine.LoadChunkSize = val
	}
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		server.DefaultLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "min_prefix"); ok {
		server.MinPrefix = val
	}
	if val, ok := utils.ExtractInt64(data, "max_prefix"); ok {
		server.MaxPrefix = val
	}
	if val, ok := utils.ExtractBool(data, "enable_filter"); ok {
		server.EnableFilter = val
	}
}

// extractDictConfig extracts dictionary configuration from a map
func extractDictConfig(data map[string]any, dict *DictConfig) {
	if val, ok := utils.ExtractString(data, "path"); ok {
		dict.Path = val
	}
	if val, ok := utils.ExtractString(data, "data_dir"); ok {
		dict.DataDir = val
	}
	if val, ok := utils.ExtractInt64(data, "chunk_size"); ok {
		dict.ChunkSize = val
	}
	if val, ok := utils.ExtractInt64(data, "max_words"); ok {
		dict.MaxWords = val
	}
	if val, ok := utils.ExtractString(data, "snapshot_path"); ok {
		dict.SnapshotPath = val
	}
}

func extractHTTPConfig(data map[string]any, http *HTTPConfig) {
	if val, ok := utils.ExtractString(data, "addr"); ok {
		http.Addr = val
	}
	if val, ok := utils.ExtractBool(data, "enabled"); ok {
		http.Enabled = val
	}
}

func extractFeedConfig(data map[string]any, feed *FeedConfig) {
	if val, ok := utils.ExtractStringSlice(data, "brokers"); ok {
		feed.Brokers = val
	}
	if val, ok := utils.ExtractString(data, "topic"); ok {
		feed.Topic = val
	}
	if val, ok := utils.ExtractString(data, "group_id"); ok {
		feed.GroupID = val
	}
}

func extractSourcesConfig(data map[string]any, sources *SourcesConfig) {
	if val, ok := utils.ExtractString(data, "postgres_dsn"); ok {
		sources.PostgresDSN = val
	}
	if val, ok := utils.ExtractString(data, "postgres_query"); ok {
		sources.PostgresQuery = val
	}
	if val, ok := utils.ExtractString(data, "redis_addr"); ok {
		sources.RedisAddr = val
	}
	if val, ok := utils.ExtractString(data, "redis_key"); ok {
		sources.RedisKey = val
	}
}

// extractCliConfig extracts CLI config from a map
func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		cli.DefaultLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "default_min_len"); ok {
		cli.DefaultMinLen = val
	}
	if val, ok := utils.ExtractInt64(data, "default_max_len"); ok {
		cli.DefaultMaxLen = val
	}
	if val, ok := utils.ExtractBool(data, "default_no_filter"); ok {
		cli.DefaultNoFilter = val
	}
}

// RebuildConfigFile force creates a new config.toml at the default path
func RebuildConfigFile() (string, error) {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return "", err
	}
	if err := utils.EnsureDir(filepath.Dir(defaultPath)); err != nil {
		return "", err
	}
	return defaultPath, utils.SaveTOMLFile(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// Update changes the server limits and saves to file. Nil arguments keep their value.
func (c *Config) Update(configPath string, maxLimit, minPrefix, maxPrefix *int, enableFilter *bool) error {
	server := &c.Server
	if maxLimit != nil {
		server.MaxLimit = *maxLimit
	}
	if minPrefix != nil {
		server.MinPrefix = *minPrefix
	}
	if maxPrefix != nil {
		server.MaxPrefix = *maxPrefix
	}
	if enableFilter != nil {
		server.EnableFilter = *enableFilter
	}
	if configPath == "" {
		return nil
	}
	return SaveConfig(c, configPath)
}
