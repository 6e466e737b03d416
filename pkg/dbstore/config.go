package dbstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xo/dburl"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	ErrNoDSNorURL         = errors.New("no Data Source connection details provided")
	ErrInvalidDBUrl       = errors.New("invalid DB URL")
	ErrUnsupportedDialect = errors.New("unsupported data source type")
)

// Config struct defines common options to select and connect to the DB holding VM inventory.
type Config struct {
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty"`

	URL      string `mapstructure:"url" yaml:"url,omitempty"`
	User     string `mapstructure:"user" yaml:"user,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	DBName string `mapstructure:"name" yaml:"name,omitempty"`
	Port   *int   `mapstructure:"port" yaml:"port,omitempty"`
}

// Enabled reports if any connection details are given.
func (c Config) Enabled() bool {
	return c.DSN != "" || c.URL != ""
}

// Dialector produces [gorm.Dialector] based on the config options selected.
// This allows for flexible implementation where DB driver is selected based on the DB Url and connection parameters.
func (c Config) Dialector() (gorm.Dialector, error) {
	if !c.Enabled() {
		return nil, ErrNoDSNorURL
	}

	u, err := dburl.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDBUrl, err)
	}

	// convert custom params to DSN:
	extraParams := []string{u.DSN}
	if c.DSN != "" {
		extraParams = append(extraParams, c.DSN)
	}
	if c.User != "" {
		extraParams = append(extraParams, fmt.Sprintf("user=%v", c.User))
	}
	if c.Password != "" {
		extraParams = append(extraParams, fmt.Sprintf("password=%v", c.Password))
	}
	if c.DBName != "" {
		extraParams = append(extraParams, fmt.Sprintf("dbname=%v", c.DBName))
	}
	if c.Port != nil {
		extraParams = append(extraParams, fmt.Sprintf("port=%d", *c.Port))
	}

	dsn := strings.Join(extraParams, " ")
	switch u.Driver {
	case "sqlite3", "sqlite":
		return sqlite.Open(u.DSN), nil
	case "mysql":
		return mysql.Open(u.DSN), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDialect, u.Driver)
	}
}

// Open connects to the DB selected by the config.
func (c Config) Open(options ...gorm.Option) (*gorm.DB, error) {
	dialector, err := c.Dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to inventory DB: %w", err)
	}

	return db, nil
}
