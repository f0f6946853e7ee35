package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Ashfaaq98/dossier-console/internal/dbconn"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

var (
	sqlConnectionID int64
	sqlDirect       bool
	sqlTarget       model.DatabaseConnection
	sqlPassword     string
	sqlMaxRows      int
)

// sqlClient is what the SQL API and a direct connector have in common.
type sqlClient interface {
	TestConnection(ctx context.Context, details model.ConnectionDetails) (model.ConnectionResult, error)
	ListTables(ctx context.Context, details model.ConnectionDetails) (model.TablesResult, error)
	ExecuteQuery(ctx context.Context, details model.ConnectionDetails, query string) (model.QueryResult, error)
}

var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "Test connections, list tables and run queries",
	Long: `SQL commands go through the SQL API by default. With --direct the console
connects to the database itself (SQL Server, PostgreSQL, MySQL or SQLite).

The target is a saved connection (--connection ID) or given inline with
--server/--database/--username. The password comes from --password,
DOSSIER_SQL_PASSWORD or a prompt.

Examples:
  dossier sql test --connection 3
  dossier sql tables --server 'DESKTOP-T9HKFSQ\SQLEXPRESS' --database Projeto_Dev --windows-auth
  dossier sql query --connection 3 "SELECT TOP 10 * FROM dbo.Clientes"
  dossier sql query --direct --type postgres --server db --database crm --username app "SELECT 1"`,
}

var sqlTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Test a database connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSQL(cmd, func(ctx context.Context, client sqlClient, d model.ConnectionDetails) error {
			res, err := client.TestConnection(ctx, d)
			if err != nil {
				return err
			}
			fmt.Printf("✓ %s\n", res.Message)
			fmt.Printf("   Server: %s\n", res.ServerVersion)
			fmt.Printf("   Database: %s\n", res.Database)
			return nil
		})
	},
}

var sqlTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of a database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSQL(cmd, func(ctx context.Context, client sqlClient, d model.ConnectionDetails) error {
			res, err := client.ListTables(ctx, d)
			if err != nil {
				return err
			}
			if len(res.Tables) == 0 {
				fmt.Println("No tables found.")
				return nil
			}
			fmt.Printf("Found %d tables:\n\n", len(res.Tables))
			for _, t := range res.Tables {
				fmt.Printf("  %s\n", t)
			}
			return nil
		})
	},
}

var sqlQueryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a query and print its result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withSQL(cmd, func(ctx context.Context, client sqlClient, d model.ConnectionDetails) error {
			res, err := client.ExecuteQuery(ctx, d, query)
			if err != nil {
				return err
			}
			printQueryResult(res)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sqlCmd)
	sqlCmd.AddCommand(sqlTestCmd, sqlTablesCmd, sqlQueryCmd)

	f := sqlCmd.PersistentFlags()
	f.Int64Var(&sqlConnectionID, "connection", 0, "ID of a saved connection")
	f.BoolVar(&sqlDirect, "direct", false, "Connect to the database directly instead of through the SQL API")
	f.StringVar(&sqlTarget.DBType, "type", model.DBTypeSQLServer, "Database type for --direct: sqlserver, postgres, mysql, sqlite")
	f.StringVar(&sqlTarget.ServerAddress, "server", "", "Server address (or file for sqlite)")
	f.IntVar(&sqlTarget.Port, "port", 0, "Port (default for the database type)")
	f.StringVar(&sqlTarget.DatabaseName, "database", "", "Database name")
	f.BoolVar(&sqlTarget.UseWindowsAuth, "windows-auth", false, "Use Windows authentication (SQL Server)")
	f.StringVar(&sqlTarget.Username, "username", "", "Username for SQL authentication")
	f.StringVar(&sqlPassword, "password", "", "Password for SQL authentication")
	sqlQueryCmd.Flags().IntVar(&sqlMaxRows, "max-rows", 100, "Maximum number of rows to print (0 for all)")
}

// withSQL resolves the target connection and client, then runs fn.
func withSQL(cmd *cobra.Command, fn func(ctx context.Context, client sqlClient, d model.ConnectionDetails) error) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	target := sqlTarget
	if sqlConnectionID != 0 {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		err = a.state.LoadConnections(ctx)
		conn, ok := a.state.Connection(sqlConnectionID)
		a.close()
		if err != nil {
			return fmt.Errorf("failed to load connections: %w", err)
		}
		if !ok {
			return fmt.Errorf("connection %d not found", sqlConnectionID)
		}
		target = conn
	}
	if target.ServerAddress == "" && target.FilePath == "" {
		return fmt.Errorf("no target: use --connection or --server")
	}

	password, err := resolvePassword(target)
	if err != nil {
		return err
	}
	details := target.Details(password)

	var client sqlClient
	if sqlDirect {
		client = dbconn.NewClient(target.DBType)
	} else {
		gw, err := newGateway(cfg, newLogger(cfg, "gateway"))
		if err != nil {
			return err
		}
		client = gw
	}
	return fn(ctx, client, details)
}

func resolvePassword(c model.DatabaseConnection) (string, error) {
	if c.UseWindowsAuth || dbconn.NormalizeType(c.DBType) == model.DBTypeSQLite {
		return "", nil
	}
	if sqlPassword != "" {
		return sqlPassword, nil
	}
	if p := os.Getenv("DOSSIER_SQL_PASSWORD"); p != "" {
		return p, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("password required: use --password or DOSSIER_SQL_PASSWORD")
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", c.Username)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

func printQueryResult(res model.QueryResult) {
	if !res.HasRows() {
		fmt.Println(res.Message)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(res.Columns, "\t"))
	rows := res.Data
	if sqlMaxRows > 0 && len(rows) > sqlMaxRows {
		rows = rows[:sqlMaxRows]
	}
	for _, row := range rows {
		cells := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			if v := row[col]; v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = strings.ReplaceAll(fmt.Sprint(v), "\t", " ")
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	fmt.Printf("\n(%d rows", len(res.Data))
	if len(rows) < len(res.Data) {
		fmt.Printf(", %d shown", len(rows))
	}
	fmt.Println(")")
}
