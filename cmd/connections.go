package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/dossier-console/internal/dbconn"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

var newConn model.DatabaseConnection

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Manage database connections used as analysis input",
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List database connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(GetConfig())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.state.LoadConnections(cmd.Context()); err != nil {
			return fmt.Errorf("failed to list connections: %w", err)
		}
		conns := a.state.Connections()
		if len(conns) == 0 {
			fmt.Println("No connections found.")
			return nil
		}
		fmt.Printf("Found %d connections:\n\n", len(conns))
		for i, c := range conns {
			printConnection(i+1, c)
		}
		return nil
	},
}

func printConnection(n int, c model.DatabaseConnection) {
	dbType := c.DBType
	if dbType == "" {
		dbType = model.DBTypeSQLServer
	}
	fmt.Printf("%d. %s [%s]\n", n, c.ConnectionName, dbType)
	fmt.Printf("   ID: %d\n", c.Key())
	if c.FilePath != "" {
		fmt.Printf("   File: %s\n", c.FilePath)
	} else {
		fmt.Printf("   Server: %s", c.ServerAddress)
		if c.Port > 0 {
			fmt.Printf(":%d", c.Port)
		}
		fmt.Println()
	}
	if c.DatabaseName != "" {
		fmt.Printf("   Database: %s\n", c.DatabaseName)
	}
	if c.UseWindowsAuth {
		fmt.Println("   Auth: Windows")
	} else if c.Username != "" {
		fmt.Printf("   Auth: SQL (%s)\n", c.Username)
	}
	fmt.Println()
}

var connectionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a database connection",
	Long: `Add a database connection. The backend stores the password encrypted.

Examples:
  # SQL Server named instance with Windows authentication
  dossier connections add --name dev --server 'DESKTOP-T9HKFSQ\SQLEXPRESS' --database Projeto_Dev --windows-auth

  # PostgreSQL with SQL authentication
  dossier connections add --name crm --type postgres --server db.local --database crm --username app --password secret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn := newConn
		conn.DBType = dbconn.NormalizeType(conn.DBType)
		if conn.DBType == model.DBTypeSQLite && conn.FilePath == "" {
			conn.FilePath, conn.ServerAddress = conn.ServerAddress, ""
		}
		if err := conn.Validate(); err != nil {
			return err
		}
		a, err := newApp(GetConfig())
		if err != nil {
			return err
		}
		defer a.close()

		created, err := a.state.AddConnection(cmd.Context(), conn)
		if err != nil {
			return fmt.Errorf("failed to add connection: %w", err)
		}
		fmt.Printf("✓ Connection %q added (ID %d)\n", created.ConnectionName, created.Key())
		return nil
	},
}

var connectionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a database connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid connection id %q: %w", args[0], err)
		}
		a, err := newApp(GetConfig())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.state.DeleteConnection(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete connection: %w", err)
		}
		fmt.Printf("✓ Connection %d deleted\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectionsCmd)
	connectionsCmd.AddCommand(connectionsListCmd, connectionsAddCmd, connectionsDeleteCmd)

	f := connectionsAddCmd.Flags()
	f.StringVar(&newConn.ConnectionName, "name", "", "Connection name (required)")
	f.StringVar(&newConn.DBType, "type", model.DBTypeSQLServer, "Database type: sqlserver, postgres, mysql, sqlite")
	f.StringVar(&newConn.ServerAddress, "server", "", "Server address, e.g. HOST\\SQLEXPRESS")
	f.StringVar(&newConn.FilePath, "file", "", "Database file (sqlite)")
	f.IntVar(&newConn.Port, "port", 0, "Port (default for the database type)")
	f.StringVar(&newConn.DatabaseName, "database", "", "Database name")
	f.BoolVar(&newConn.UseWindowsAuth, "windows-auth", false, "Use Windows authentication (SQL Server)")
	f.StringVar(&newConn.Username, "username", "", "Username for SQL authentication")
	f.StringVar(&newConn.EncryptedPassword, "password", "", "Password for SQL authentication")
	connectionsAddCmd.MarkFlagRequired("name")
}
