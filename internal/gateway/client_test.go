package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, SQLBaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewValidatesURLs(t *testing.T) {
	_, err := New(Config{BaseURL: "localhost:8000"}, nil)
	assert.Error(t, err)

	c, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultSQLBaseURL, c.SQLBaseURL())
}

func TestListEntitiesBareArray(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/entities", r.URL.Path)
		_, err := uuid.Parse(r.Header.Get(RequestIDHeader))
		assert.NoError(t, err, "request id should be a uuid")

		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "name": "ACME", "entity_type": "empresa"},
			{"id": 2, "name": "Fulano", "entity_type": "pessoa"},
		})
	}))

	entities, err := c.ListEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "ACME", entities[0].Name)
	assert.Equal(t, int64(2), entities[1].Key())
	assert.Equal(t, model.EntityPerson, entities[1].EntityType)
}

func TestListEntitiesNaiveTimestamps(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "name": "ACME", "entity_type": "empresa", "created_at": "2024-05-01T10:00:00.123456"},
			{"id": 2, "name": "Beta", "entity_type": "empresa", "created_at": "2024-05-02 08:30:00"},
			{"id": 3, "name": "Gama", "entity_type": "fund", "created_at": nil},
		})
	}))

	entities, err := c.ListEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 3)
	require.NotNil(t, entities[0].CreatedAt)
	assert.True(t, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC).Equal(*entities[0].CreatedAt))
	require.NotNil(t, entities[1].CreatedAt)
	assert.True(t, time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC).Equal(*entities[1].CreatedAt))
	assert.Nil(t, entities[2].CreatedAt)
	assert.Equal(t, model.EntityFund, entities[2].EntityType)
}

func TestListJobsNaiveTimestamps(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs", r.URL.Path)
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "status": "completed", "tipo_gatilho": "manual",
				"iniciado_em": "2024-05-01 10:00:00", "finalizado_em": "2024-05-01T10:02:30.5"},
			{"id": 2, "status": "running", "tipo_gatilho": "manual", "iniciado_em": "2024-05-01T11:00:00+00:00"},
			{"id": 3, "status": "pending", "tipo_gatilho": "manual"},
		})
	}))

	jobs, err := c.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	require.NotNil(t, jobs[0].IniciadoEm)
	require.NotNil(t, jobs[0].FinalizadoEm)
	d, ok := jobs[0].Duration(time.Now())
	assert.True(t, ok)
	assert.Equal(t, 150500*time.Millisecond, d)
	assert.Equal(t, model.JobCompleted, jobs[0].Status)

	require.NotNil(t, jobs[1].IniciadoEm)
	assert.True(t, time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC).Equal(*jobs[1].IniciadoEm))
	assert.Nil(t, jobs[1].FinalizadoEm)

	assert.Nil(t, jobs[2].IniciadoEm)
	assert.Nil(t, jobs[2].FinalizadoEm)
}

func TestListJobsBadTimestamp(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "status": "running", "iniciado_em": "ontem"},
		})
	}))

	_, err := c.ListJobs(context.Background())
	assert.ErrorContains(t, err, `unrecognized timestamp "ontem"`)
}

func TestListFindingsEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": []map[string]any{
				{"id": 10, "entity_name": "ACME", "risk_level": "ALTO", "data_coleta": "2024-01-01", "risk_score": 0.91},
			},
		})
	}))

	findings, err := c.ListFindings(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, model.RiskHigh, findings[0].RiskLevel)
	assert.InDelta(t, 0.91, findings[0].RiskScore, 1e-9)
}

func TestEnvelopeFailureIsBackendError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "banco indisponível"})
	}))

	_, err := c.ListJobs(context.Background())
	require.Error(t, err)
	var be *errs.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "banco indisponível", be.Message)
}

func TestCreateAndDeleteEntity(t *testing.T) {
	var deleted atomic.Value
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var in model.MonitoredEntity
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			writeJSON(w, http.StatusCreated, map[string]any{"id": 42, "name": in.Name, "entity_type": in.EntityType, "created_at": "2024-05-01T10:00:00Z"})
		case http.MethodDelete:
			deleted.Store(r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	created, err := c.CreateEntity(context.Background(), model.MonitoredEntity{Name: "Gama FIA", EntityType: model.EntityFund})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.Key())
	require.NotNil(t, created.CreatedAt)

	require.NoError(t, c.DeleteEntity(context.Background(), 42))
	assert.Equal(t, "/entities/42", deleted.Load())
}

func TestBackendDetailMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Erro na conexão: Login failed for user 'sa'."})
	}))

	_, err := c.TestConnection(context.Background(), model.ConnectionDetails{Server: "db", Database: "dd", Port: 1433})
	require.Error(t, err)
	var be *errs.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadRequest, be.Status)
	assert.Equal(t, "Erro na conexão: Login failed for user 'sa'.", errs.UserMessage(err))
}

func TestBackendDetailList(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]any{{"msg": "field required"}}})
	}))

	_, err := c.ListTables(context.Background(), model.ConnectionDetails{})
	var be *errs.BackendError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Message, "field required")
}

func TestSuccessFalseWithOK(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.ConnectionResult{Success: false, Message: "timeout"})
	}))

	result, err := c.TestConnection(context.Background(), model.ConnectionDetails{})
	assert.True(t, errs.IsBackend(err))
	assert.False(t, result.Success)
	assert.Equal(t, "timeout", errs.UserMessage(err))
}

func TestTestConnectionSuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/test-connection", r.URL.Path)
		var d model.ConnectionDetails
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&d))
		assert.True(t, d.UseWindowsAuth)
		writeJSON(w, http.StatusOK, model.ConnectionResult{Success: true, Message: "Conexão estabelecida com sucesso!", ServerVersion: "Microsoft SQL Server 2019", Database: d.Database})
	}))

	result, err := c.TestConnection(context.Background(), model.ConnectionDetails{Server: `HOST\SQLEXPRESS`, Database: "Projeto_Dev", Port: 1433, UseWindowsAuth: true})
	require.NoError(t, err)
	assert.Equal(t, "Projeto_Dev", result.Database)
	assert.Equal(t, "Microsoft SQL Server 2019", result.ServerVersion)
}

func TestExecuteQuery(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.QueryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "SELECT TOP 2 * FROM dbo.Clientes", req.Query)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"columns":   []string{"id", "nome"},
			"data":      []map[string]any{{"id": 1, "nome": "A"}, {"id": 2, "nome": "B"}},
			"row_count": 2,
		})
	}))

	result, err := c.ExecuteQuery(context.Background(), model.ConnectionDetails{Server: "db"}, "SELECT TOP 2 * FROM dbo.Clientes")
	require.NoError(t, err)
	assert.True(t, result.HasRows())
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, "B", result.Data[1]["nome"])
}

func TestExecuteQueryBlankIssuesNoRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := c.ExecuteQuery(context.Background(), model.ConnectionDetails{}, "   \n")
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, int32(0), calls.Load())
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, SQLBaseURL: url, Timeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = c.ListConnections(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsNetwork(err))
	assert.Equal(t, int64(1), c.Metrics().Failures)
}

func TestSubmitAnalysis(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/jobs", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var p model.AnalysisPayload
		assert.NoError(t, json.Unmarshal(body, &p))
		assert.Equal(t, []string{"ACME"}, p.Entities)
		assert.Equal(t, int64(3), p.ConnectionID)
		writeJSON(w, http.StatusCreated, map[string]any{"id": 99, "status": "pending", "tipo_gatilho": "manual"})
	}))

	job, err := c.SubmitAnalysis(context.Background(), model.AnalysisPayload{
		Entities: []string{"ACME"}, Keywords: []string{}, StartDate: "2024-01-01", EndDate: "2024-02-01", ConnectionID: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99), job.ID)
	assert.Equal(t, model.JobPending, job.Status)
}

func TestAnalyzeRisk(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze-risk", r.URL.Path)
		writeJSON(w, http.StatusOK, model.RiskAnalysis{Success: true, RiskLevel: "ALTO", ConfidenceScore: 0.87, RiskFactors: []string{"lavagem"}})
	}))

	out, err := c.AnalyzeRisk(context.Background(), model.RiskAnalysisRequest{Text: "suspeita de lavagem", IncludeExplanation: true})
	require.NoError(t, err)
	assert.Equal(t, "ALTO", out.RiskLevel)

	_, err = c.AnalyzeRisk(context.Background(), model.RiskAnalysisRequest{})
	assert.True(t, errs.IsValidation(err))
}

func TestSQLStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, SQLStatus{Message: "DD-AI SQL Server API", Status: "running", Version: "3.0.0"})
	}))

	st, err := c.SQLStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "running", st.Status)
	assert.Equal(t, int64(1), c.Metrics().Requests)
}
