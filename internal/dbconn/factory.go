package dbconn

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/model"
	"github.com/Ashfaaq98/dossier-console/internal/store"
)

var dialects = map[string]dialect{
	model.DBTypeSQLServer: {
		name:         "mssql",
		driver:       "sqlserver",
		versionQuery: "SELECT @@VERSION, DB_NAME()",
		tablesQuery: `SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_SCHEMA, TABLE_NAME`,
	},
	model.DBTypePostgres: {
		name:         "postgres",
		driver:       "postgres",
		versionQuery: "SELECT version(), current_database()",
		tablesQuery: `SELECT table_schema, table_name FROM information_schema.tables
			WHERE table_type = 'BASE TABLE' AND table_schema NOT IN ('pg_catalog', 'information_schema')
			ORDER BY table_schema, table_name`,
	},
	model.DBTypeMySQL: {
		name:         "mysql",
		driver:       "mysql",
		versionQuery: "SELECT VERSION(), DATABASE()",
		tablesQuery: `SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = DATABASE() ORDER BY TABLE_SCHEMA, TABLE_NAME`,
	},
	model.DBTypeSQLite: {
		name:         "sqlite",
		driver:       store.DriverName,
		versionQuery: "SELECT sqlite_version(), 'main'",
		tablesQuery: `SELECT 'main', name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	},
}

// NormalizeType maps accepted spellings onto the model db types. Empty
// means SQL Server, the only engine the SQL API speaks.
func NormalizeType(dbType string) string {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "", "sqlserver", "mssql":
		return model.DBTypeSQLServer
	case "postgres", "postgresql":
		return model.DBTypePostgres
	case "mysql", "mariadb":
		return model.DBTypeMySQL
	case "sqlite", "sqlite3":
		return model.DBTypeSQLite
	}
	return dbType
}

// validate mirrors the SQL API: windows auth or both credentials.
func validate(dbType string, d model.ConnectionDetails) error {
	if strings.TrimSpace(d.Server) == "" {
		return errs.Validation("server", "server is required")
	}
	if dbType == model.DBTypeSQLite {
		return nil
	}
	if d.UseWindowsAuth {
		if dbType != model.DBTypeSQLServer {
			return errs.Validation("use_windows_auth", "windows authentication is only supported for SQL Server")
		}
		return nil
	}
	if d.Username == "" || d.Password == "" {
		return errs.Validation("username", "username and password are required for SQL authentication")
	}
	return nil
}

// New opens a connector for dbType. No connection is made until the first
// call on it.
func New(dbType string, d model.ConnectionDetails) (Connector, error) {
	dbType = NormalizeType(dbType)
	dia, ok := dialects[dbType]
	if !ok {
		return nil, errs.Validation("db_type", fmt.Sprintf("unsupported database type %q", dbType))
	}
	if err := validate(dbType, d); err != nil {
		return nil, err
	}

	dsn, err := buildDSN(dbType, d)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dia.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", dia.name, err)
	}
	return &sqlConnector{dialect: dia, db: db}, nil
}

func buildDSN(dbType string, d model.ConnectionDetails) (string, error) {
	port := d.Port
	if port == 0 {
		port = model.DefaultPort(dbType)
	}
	switch dbType {
	case model.DBTypeSQLServer:
		return sqlServerDSN(d, port), nil
	case model.DBTypePostgres:
		return postgresDSN(d, port), nil
	case model.DBTypeMySQL:
		cfg := mysql.NewConfig()
		cfg.User = d.Username
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Server, strconv.Itoa(port))
		cfg.DBName = d.Database
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	case model.DBTypeSQLite:
		return d.Server, nil
	}
	return "", fmt.Errorf("unsupported database type %q", dbType)
}

// sqlServerDSN builds a sqlserver:// URL. A named instance ("HOST\SQLEXPRESS")
// goes in the path and is resolved by the browser service, so no port is set.
// Without credentials the driver falls back to integrated authentication.
func sqlServerDSN(d model.ConnectionDetails, port int) string {
	u := &url.URL{Scheme: "sqlserver"}
	host, instance, named := strings.Cut(d.Server, `\`)
	if named {
		u.Host = host
		u.Path = instance
	} else {
		u.Host = net.JoinHostPort(d.Server, strconv.Itoa(port))
	}
	if !d.UseWindowsAuth {
		u.User = url.UserPassword(d.Username, d.Password)
	}
	q := url.Values{}
	q.Set("database", d.Database)
	q.Set("encrypt", "true")
	q.Set("TrustServerCertificate", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

func postgresDSN(d model.ConnectionDetails, port int) string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Server, strconv.Itoa(port)),
		User:   url.UserPassword(d.Username, d.Password),
		Path:   "/" + d.Database,
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}
