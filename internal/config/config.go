package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken       string             `yaml:"discord_token"`
	DatabasePath       string             `yaml:"database_path"`
	LogLevel           string             `yaml:"log_level"`
	ModLogChannel      string             `yaml:"mod_log_channel"`
	StaffRoleIDs       []string           `yaml:"staff_role_ids"`
	AuditRetentionDays int                `yaml:"audit_retention_days"`
	LevelRoles         map[int]string     `yaml:"level_roles"`
	Health             HealthConfig       `yaml:"health"`
	Roblox             RobloxConfig       `yaml:"roblox"`
	Verification       VerificationConfig `yaml:"verification"`
	EmbedColors        EmbedColors        `yaml:"embed_colors"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type RobloxConfig struct {
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	CommunityGroupIDs []uint64 `yaml:"community_group_ids"`
}

type VerificationConfig struct {
	CodeTTLMinutes int `yaml:"code_ttl_minutes"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Success int `yaml:"success"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:       "/data/warden.db",
		LogLevel:           "info",
		AuditRetentionDays: 90,
		Health:             HealthConfig{Enabled: false, Addr: ":8080"},
		Roblox: RobloxConfig{
			TimeoutSeconds: 10,
			CommunityGroupIDs: []uint64{
				397892232,
				677331375,
				1045776713,
				892150219,
			},
		},
		Verification: VerificationConfig{CodeTTLMinutes: 10},
		EmbedColors: EmbedColors{
			Action:  0xF59E0B,
			Success: 0x22C55E,
			Error:   0xEF4444,
		},
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Verification.CodeTTLMinutes <= 0 {
		cfg.Verification.CodeTTLMinutes = 10
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.ModLogChannel = envString("MOD_LOG_CHANNEL", cfg.ModLogChannel)
	cfg.StaffRoleIDs = envStringList("STAFF_ROLE_IDS", cfg.StaffRoleIDs)
	cfg.AuditRetentionDays = envInt("AUDIT_RETENTION_DAYS", cfg.AuditRetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Roblox.TimeoutSeconds = envInt("ROBLOX_TIMEOUT_SECONDS", cfg.Roblox.TimeoutSeconds)
	cfg.Roblox.CommunityGroupIDs = envUintList("COMMUNITY_GROUP_IDS", cfg.Roblox.CommunityGroupIDs)
	cfg.Verification.CodeTTLMinutes = envInt("VERIFICATION_CODE_TTL_MINUTES", cfg.Verification.CodeTTLMinutes)
	cfg.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.EmbedColors.Action)
	cfg.EmbedColors.Success = envInt("EMBED_COLOR_SUCCESS", cfg.EmbedColors.Success)
	cfg.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.EmbedColors.Error)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func envStringList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envUintList(key string, fallback []uint64) []uint64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []uint64
	for _, part := range strings.Split(value, ",") {
		parsed, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	return out
}
