package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/stake-plus/govcomms-feedback/src/data"
)

// Base contains common configuration fields
type Base struct {
	Token   string
	GuildID string
}

// LoadBase reads the discord token and guild. The settings cache should be
// loaded first when a database is configured.
func LoadBase() Base {
	return Base{
		Token:   GetSetting("discord_token", "CLIENT_SECRET", GetSetting("discord_token", "DISCORD_TOKEN", "")),
		GuildID: GetSetting("guild_id", "GUILD_ID", ""),
	}
}

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val := strings.TrimSpace(data.GetSetting(name))
	if val == "" && envKey != "" {
		val = strings.TrimSpace(os.Getenv(envKey))
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func getBoolSetting(name, envKey string, defaultValue bool) bool {
	return parseBoolDefault(GetSetting(name, envKey, ""), defaultValue)
}

// getIntSetting returns fallback when the value is unset. An unparsable value
// yields 0 so validation can report it.
func getIntSetting(name, envKey string, fallback int) int {
	raw := GetSetting(name, envKey, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseCSV(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
