package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar は設定ファイル（YAML）のパスを指定する環境変数。
const ConfigPathEnvVar = "FANFOOTPRINT_CONFIG"

// バックエンドの種類
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
// キーは環境変数名を小文字にしたもので、YAMLファイルでも同じキーを使う。
type Config struct {
	// Backend
	Backend        string        `koanf:"backend" validate:"required,oneof=supabase postgres memory"`
	BackendTimeout time.Duration `koanf:"backend_timeout" validate:"gt=0"`

	// Hosted backend
	SupabaseURL     string `koanf:"supabase_url" validate:"required_if=Backend supabase,omitempty,url"`
	SupabaseAnonKey string `koanf:"supabase_anon_key" validate:"required_if=Backend supabase"`

	// Database
	DatabaseURL       string        `koanf:"database_url" validate:"required_if=Backend postgres"`
	DBMaxOpenConns    int           `koanf:"db_max_open_conns" validate:"gt=0"`
	DBMaxIdleConns    int           `koanf:"db_max_idle_conns" validate:"gte=0"`
	DBConnMaxLifetime time.Duration `koanf:"db_conn_max_lifetime" validate:"gt=0"`

	// Self-hosted auth
	JWTSecret       string        `koanf:"jwt_secret" validate:"required_if=Backend postgres"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl" validate:"gt=0"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl" validate:"gt=0"`

	// Session
	SessionMaxAge      int           `koanf:"session_max_age" validate:"gt=0"` // 秒
	SessionIdleTimeout time.Duration `koanf:"session_idle_timeout" validate:"gt=0"`
	CleanupInterval    time.Duration `koanf:"cleanup_interval" validate:"gt=0"`

	// Logging
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// Server
	ServerPort string `koanf:"server_port" validate:"required,numeric"`
	BaseURL    string `koanf:"base_url" validate:"required,url"`

	// Cookie
	CookieSecure bool   `koanf:"-"`
	CookieDomain string `koanf:"cookie_domain"`

	// CORS
	CORSAllowedOrigin string `koanf:"cors_allowed_origin"`
}

// defaultConfig は既定値を返す。
func defaultConfig() Config {
	return Config{
		Backend:            BackendSupabase,
		BackendTimeout:     10 * time.Second,
		DBMaxOpenConns:     10,
		DBMaxIdleConns:     5,
		DBConnMaxLifetime:  30 * time.Minute,
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    30 * 24 * time.Hour,
		SessionMaxAge:      2592000,
		SessionIdleTimeout: 24 * time.Hour,
		CleanupInterval:    time.Hour,
		LogLevel:           "info",
		ServerPort:         "8080",
		BaseURL:            "http://localhost:8080",
		CORSAllowedOrigin:  "http://localhost:3000",
	}
}

// Load は既定値、設定ファイル、環境変数の順に重ねてConfigを読み込む。
// 後に読み込んだものが優先される。検証に失敗した場合はエラーを返す。
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc(configKeys())), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configKeys はConfigのkoanfタグから設定キーの集合を作る。
func configKeys() map[string]struct{} {
	t := reflect.TypeOf(Config{})
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := strings.SplitN(t.Field(i).Tag.Get("koanf"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		keys[name] = struct{}{}
	}
	return keys
}

// envTransformFunc は環境変数名を小文字の設定キーに変換する。
// 設定キーに無い環境変数は空文字を返して読み飛ばす。
func envTransformFunc(keys map[string]struct{}) func(string) string {
	return func(name string) string {
		key := strings.ToLower(name)
		if _, ok := keys[key]; !ok {
			return ""
		}
		return key
	}
}

// Validate は設定値を検証する。エラーメッセージには環境変数名を使う。
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return strings.ToUpper(name)
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			missing = append(missing, fe.Field())
		default:
			invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return fmt.Errorf("invalid configuration values: %v", invalid)
}
