package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

func (c *Client) ListConnections(ctx context.Context) ([]model.DatabaseConnection, error) {
	resp, err := c.do(ctx, "list connections", http.MethodGet, c.baseURL, "/connections", nil)
	if err != nil {
		return nil, err
	}
	return decodeData[[]model.DatabaseConnection]("list connections", resp)
}

// CreateConnection posts conn and returns the stored record with its id.
func (c *Client) CreateConnection(ctx context.Context, conn model.DatabaseConnection) (model.DatabaseConnection, error) {
	resp, err := c.do(ctx, "add connection", http.MethodPost, c.baseURL, "/connections", conn)
	if err != nil {
		return model.DatabaseConnection{}, err
	}
	return decodeData[model.DatabaseConnection]("add connection", resp)
}

func (c *Client) DeleteConnection(ctx context.Context, id int64) error {
	resp, err := c.do(ctx, "delete connection", http.MethodDelete, c.baseURL, fmt.Sprintf("/connections/%d", id), nil)
	if err != nil {
		return err
	}
	_, err = decodeData[map[string]any]("delete connection", resp)
	return err
}

func (c *Client) ListEntities(ctx context.Context) ([]model.MonitoredEntity, error) {
	resp, err := c.do(ctx, "list entities", http.MethodGet, c.baseURL, "/entities", nil)
	if err != nil {
		return nil, err
	}
	return decodeData[[]model.MonitoredEntity]("list entities", resp)
}

// CreateEntity posts entity and returns the stored record with its id.
func (c *Client) CreateEntity(ctx context.Context, entity model.MonitoredEntity) (model.MonitoredEntity, error) {
	resp, err := c.do(ctx, "add entity", http.MethodPost, c.baseURL, "/entities", entity)
	if err != nil {
		return model.MonitoredEntity{}, err
	}
	return decodeData[model.MonitoredEntity]("add entity", resp)
}

func (c *Client) DeleteEntity(ctx context.Context, id int64) error {
	resp, err := c.do(ctx, "delete entity", http.MethodDelete, c.baseURL, fmt.Sprintf("/entities/%d", id), nil)
	if err != nil {
		return err
	}
	_, err = decodeData[map[string]any]("delete entity", resp)
	return err
}

func (c *Client) ListFindings(ctx context.Context) ([]model.Finding, error) {
	resp, err := c.do(ctx, "list findings", http.MethodGet, c.baseURL, "/findings", nil)
	if err != nil {
		return nil, err
	}
	return decodeData[[]model.Finding]("list findings", resp)
}

func (c *Client) ListJobs(ctx context.Context) ([]model.ExecutionJob, error) {
	resp, err := c.do(ctx, "list jobs", http.MethodGet, c.baseURL, "/jobs", nil)
	if err != nil {
		return nil, err
	}
	return decodeData[[]model.ExecutionJob]("list jobs", resp)
}

// SubmitAnalysis starts an analysis run and returns the job the backend
// created for it.
func (c *Client) SubmitAnalysis(ctx context.Context, payload model.AnalysisPayload) (model.ExecutionJob, error) {
	resp, err := c.do(ctx, "submit analysis", http.MethodPost, c.baseURL, "/jobs", payload)
	if err != nil {
		return model.ExecutionJob{}, err
	}
	return decodeData[model.ExecutionJob]("submit analysis", resp)
}

// Health checks the data API is up.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, "health", http.MethodGet, c.baseURL, "/health", nil)
	return err
}
