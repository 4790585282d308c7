package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Accounts []accountSchema `toml:"accounts"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported accounts schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	Alias       string          `toml:"alias"`
	Host        string          `toml:"host"`
	Priority    int             `toml:"priority"`
	APIBasePath string          `toml:"api_base_path,omitempty"`
	UseAPIv3    bool            `toml:"use_api_v3,omitempty"`
	Color       string          `toml:"color,omitempty"`
	Auth        authSchema      `toml:"auth"`
	RateLimit   rateLimitSchema `toml:"rate_limit"`
}

// Secrets may reference environment variables as $NAME or ${NAME}.
type authSchema struct {
	Kind     string `toml:"kind"`
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"`
	Token    string `toml:"token,omitempty"`
}

type rateLimitSchema struct {
	Enabled         bool  `toml:"enabled"`
	DelayMs         int64 `toml:"delay_ms"`
	ConcurrentSlots int   `toml:"concurrent_slots"`
}
