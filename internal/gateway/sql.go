package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// decodeSQL decodes a SQL API body and turns success:false into a
// BackendError carrying the backend's message.
func decodeSQL[T any](op string, resp *response, out *T, success func(*T) (bool, string)) error {
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	if ok, msg := success(out); !ok {
		return errs.Backend(op, resp.status, msg)
	}
	return nil
}

// TestConnection checks the SQL API can reach the database in details.
func (c *Client) TestConnection(ctx context.Context, details model.ConnectionDetails) (model.ConnectionResult, error) {
	const op = "test connection"
	var result model.ConnectionResult
	resp, err := c.do(ctx, op, http.MethodPost, c.sqlBaseURL, "/api/test-connection", details)
	if err != nil {
		return result, err
	}
	err = decodeSQL(op, resp, &result, func(r *model.ConnectionResult) (bool, string) { return r.Success, r.Message })
	return result, err
}

// ListTables returns "schema.table" names for the database in details.
func (c *Client) ListTables(ctx context.Context, details model.ConnectionDetails) (model.TablesResult, error) {
	const op = "list tables"
	var result model.TablesResult
	resp, err := c.do(ctx, op, http.MethodPost, c.sqlBaseURL, "/api/tables", details)
	if err != nil {
		return result, err
	}
	err = decodeSQL(op, resp, &result, func(r *model.TablesResult) (bool, string) { return r.Success, r.Message })
	return result, err
}

// ExecuteQuery runs query on the database in details. A blank query is
// rejected before any request is made.
func (c *Client) ExecuteQuery(ctx context.Context, details model.ConnectionDetails, query string) (model.QueryResult, error) {
	const op = "execute query"
	var result model.QueryResult
	if strings.TrimSpace(query) == "" {
		return result, errs.Validation("query", "type a query to execute")
	}
	resp, err := c.do(ctx, op, http.MethodPost, c.sqlBaseURL, "/api/execute-query", model.QueryRequest{Connection: details, Query: query})
	if err != nil {
		return result, err
	}
	err = decodeSQL(op, resp, &result, func(r *model.QueryResult) (bool, string) { return r.Success, r.Message })
	return result, err
}

// AnalyzeRisk asks the backend model to classify text.
func (c *Client) AnalyzeRisk(ctx context.Context, req model.RiskAnalysisRequest) (model.RiskAnalysis, error) {
	const op = "analyze risk"
	var result model.RiskAnalysis
	if strings.TrimSpace(req.Text) == "" {
		return result, errs.Validation("text", "text to analyze is required")
	}
	resp, err := c.do(ctx, op, http.MethodPost, c.sqlBaseURL, "/api/analyze-risk", req)
	if err != nil {
		return result, err
	}
	err = decodeSQL(op, resp, &result, func(r *model.RiskAnalysis) (bool, string) { return r.Success, r.Explanation })
	return result, err
}

// SQLStatus is the SQL API's root status document
type SQLStatus struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (c *Client) SQLStatus(ctx context.Context) (SQLStatus, error) {
	var status SQLStatus
	resp, err := c.do(ctx, "sql status", http.MethodGet, c.sqlBaseURL, "/", nil)
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal(resp.body, &status); err != nil {
		return status, fmt.Errorf("failed to decode sql status: %w", err)
	}
	return status, nil
}
