package model

import (
	"strings"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
)

// Database engines a connection can point at
const (
	DBTypeSQLServer = "sqlserver"
	DBTypePostgres  = "postgres"
	DBTypeMySQL     = "mysql"

	// DBTypeSQLite connections use FilePath instead of a server address.
	DBTypeSQLite = "sqlite"
)

// DefaultPort returns the standard port for a database engine.
func DefaultPort(dbType string) int {
	switch strings.ToLower(dbType) {
	case DBTypePostgres:
		return 5432
	case DBTypeMySQL:
		return 3306
	case DBTypeSQLite:
		return 0
	default:
		return 1433
	}
}

// DatabaseConnection is a configured data source used as analysis input
type DatabaseConnection struct {
	ID                *int64 `json:"id,omitempty" yaml:"id,omitempty"`
	ConnectionName    string `json:"connection_name" yaml:"connection_name"`
	DBType            string `json:"db_type" yaml:"db_type"`
	ServerAddress     string `json:"server_address" yaml:"server_address"`
	FilePath          string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	Port              int    `json:"port" yaml:"port"`
	DatabaseName      string `json:"database_name" yaml:"database_name"`
	UseWindowsAuth    bool   `json:"use_windows_auth" yaml:"use_windows_auth"`
	Username          string `json:"username,omitempty" yaml:"username,omitempty"`
	EncryptedPassword string `json:"encrypted_password,omitempty" yaml:"-"`
}

func (c DatabaseConnection) Key() int64 {
	if c.ID == nil {
		return 0
	}
	return *c.ID
}

func (c DatabaseConnection) Validate() error {
	if strings.TrimSpace(c.ConnectionName) == "" {
		return errs.Validation("connection_name", "connection name is required")
	}
	if strings.TrimSpace(c.ServerAddress) == "" && strings.TrimSpace(c.FilePath) == "" {
		return errs.Validation("server_address", "server address or file path is required")
	}
	switch strings.ToLower(c.DBType) {
	case "", DBTypeSQLServer, DBTypePostgres, DBTypeMySQL, DBTypeSQLite:
	default:
		return errs.Validation("db_type", "unsupported database type "+c.DBType)
	}
	return nil
}

// Details builds the request body the SQL endpoints expect. The stored
// password is encrypted by the backend, so the caller supplies the clear one.
func (c DatabaseConnection) Details(password string) ConnectionDetails {
	port := c.Port
	if port == 0 {
		port = DefaultPort(c.DBType)
	}
	server := c.ServerAddress
	if server == "" {
		server = c.FilePath
	}
	return ConnectionDetails{
		Server:         server,
		Database:       c.DatabaseName,
		Port:           port,
		UseWindowsAuth: c.UseWindowsAuth,
		Username:       c.Username,
		Password:       password,
	}
}
