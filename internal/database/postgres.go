package database

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormCfg)
}

// buildPostgresDSN renders a libpq keyword/value connection string. Options
// are emitted in key order after the connection keywords.
func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	var b strings.Builder
	write := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(quotePostgresValue(value))
	}

	write("host", firstNonEmpty(cfg.Host, "localhost"))
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	write("port", strconv.Itoa(port))
	write("user", cfg.User)
	write("dbname", cfg.Name)
	if cfg.Password != "" {
		write("password", cfg.Password)
	}

	options := map[string]string{"sslmode": "disable", "TimeZone": "UTC"}
	for key, value := range cfg.Options {
		options[key] = value
	}
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		write(key, options[key])
	}

	return b.String(), nil
}

// quotePostgresValue single-quotes values libpq would otherwise split on.
func quotePostgresValue(value string) string {
	if value != "" && !strings.ContainsAny(value, " '\\\t") {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
