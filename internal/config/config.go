package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// EnvPrefix は環境変数のプレフィックスです (例: SCHOLARSHIP_FETCH_TIMEOUT_SECS)。
	EnvPrefix = "SCHOLARSHIP"
	// DefaultConfigName は設定ファイル名 (拡張子なし) です。
	DefaultConfigName = "scholarship"

	defaultUserAgent = "Mozilla/5.0 (compatible; ScholarshipScanner/1.0)"
)

// Config はアプリケーション全体の設定です。
type Config struct {
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Scan   ScanConfig   `yaml:"scan" mapstructure:"scan"`
}

// FetchConfig はページ取得の設定です。
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries  uint64 `yaml:"max_retries" mapstructure:"max_retries"`
}

// Timeout は TimeoutSecs を time.Duration で返します。
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ServerConfig はHTTPサービスの設定です。
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// OutputConfig は抽出結果の保存先です。Driver は none, file, sqlite のいずれかです。
type OutputConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BatchConfig は複数URLスキャンの設定です。
type BatchConfig struct {
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ScanConfig は抽出対象の設定です。
type ScanConfig struct {
	Keyword string `yaml:"keyword" mapstructure:"keyword"`
}

// Load は設定ファイルと環境変数から設定を読み込みます。
// path が空の場合はカレントディレクトリの scholarship.yaml を探し、存在しなければデフォルト値を使います。
// path が指定された場合、そのファイルが存在しないとエラーになります。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.user_agent", defaultUserAgent)
	v.SetDefault("fetch.max_retries", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("output.driver", "none")
	v.SetDefault("output.path", "scholarships.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("batch.concurrency", 6)
	v.SetDefault("batch.rate_per_sec", 1.0)
	v.SetDefault("scan.keyword", "scholarship")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値の整合性を検査します。
func (c *Config) Validate() error {
	if c.Fetch.TimeoutSecs <= 0 {
		return eris.Errorf("config: fetch.timeout_secs must be positive, got %d", c.Fetch.TimeoutSecs)
	}
	switch c.Output.Driver {
	case "none", "file", "sqlite":
	default:
		return eris.Errorf("config: unknown output.driver %q", c.Output.Driver)
	}
	if c.Output.Driver != "none" && c.Output.Path == "" {
		return eris.New("config: output.path is required when output.driver is set")
	}
	if c.Batch.Concurrency < 0 {
		return eris.Errorf("config: batch.concurrency must not be negative, got %d", c.Batch.Concurrency)
	}
	return nil
}

// NewLogger は LogConfig から zap ロガーを構築します。
// format が console の場合は開発用設定、それ以外はJSONの本番用設定です。verbose は debug レベルを強制します。
func NewLogger(cfg LogConfig, verbose bool) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}
