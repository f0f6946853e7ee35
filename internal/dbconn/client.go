package dbconn

import (
	"context"
	"strings"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// Client offers the SQL API operations against a database directly. Each
// call opens a connection and closes it again.
type Client struct {
	dbType string
}

func NewClient(dbType string) *Client {
	return &Client{dbType: NormalizeType(dbType)}
}

func (c *Client) open(d model.ConnectionDetails) (Connector, error) {
	return New(c.dbType, d)
}

func (c *Client) TestConnection(ctx context.Context, d model.ConnectionDetails) (model.ConnectionResult, error) {
	conn, err := c.open(d)
	if err != nil {
		return model.ConnectionResult{}, err
	}
	defer conn.Close()

	result, err := conn.TestConnection(ctx)
	if err != nil {
		return model.ConnectionResult{Success: false, Message: "Erro na conexão: " + err.Error()},
			errs.Backend("test connection", 0, "Erro na conexão: "+err.Error())
	}
	return result, nil
}

func (c *Client) ListTables(ctx context.Context, d model.ConnectionDetails) (model.TablesResult, error) {
	conn, err := c.open(d)
	if err != nil {
		return model.TablesResult{}, err
	}
	defer conn.Close()

	tables, err := conn.ListTables(ctx)
	if err != nil {
		return model.TablesResult{Success: false, Message: "Erro ao listar tabelas: " + err.Error()},
			errs.Backend("list tables", 0, "Erro ao listar tabelas: "+err.Error())
	}
	return model.TablesResult{Success: true, Tables: tables}, nil
}

func (c *Client) ExecuteQuery(ctx context.Context, d model.ConnectionDetails, query string) (model.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return model.QueryResult{}, errs.Validation("query", "type a query to execute")
	}
	conn, err := c.open(d)
	if err != nil {
		return model.QueryResult{}, err
	}
	defer conn.Close()

	result, err := conn.ExecuteQuery(ctx, query)
	if err != nil {
		return model.QueryResult{Success: false, Message: "Erro ao executar a query: " + err.Error()},
			errs.Backend("execute query", 0, "Erro ao executar a query: "+err.Error())
	}
	return result, nil
}
