package database

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func openMySQL(cfg Config, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), gormCfg)
}

// buildMySQLDSN lets the driver format the DSN so credentials containing
// reserved characters are escaped. Times are always parsed in UTC.
func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	dc := mysqldriver.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(firstNonEmpty(cfg.Host, "127.0.0.1"), strconv.Itoa(port))
	dc.DBName = cfg.Name
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Params = map[string]string{"charset": "utf8mb4"}

	for key, value := range cfg.Options {
		switch strings.ToLower(key) {
		case "tls":
			dc.TLSConfig = value
		case "parsetime", "loc":
			// fixed above
		default:
			dc.Params[key] = value
		}
	}

	return dc.FormatDSN(), nil
}
