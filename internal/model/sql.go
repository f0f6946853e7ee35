package model

// ConnectionDetails is the connection body sent to the SQL endpoints
type ConnectionDetails struct {
	Server         string `json:"server"`
	Database       string `json:"database"`
	Port           int    `json:"port"`
	UseWindowsAuth bool   `json:"use_windows_auth"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
}

// ConnectionResult is the answer to a connection test
type ConnectionResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	ServerVersion string `json:"server_version,omitempty"`
	Database      string `json:"database,omitempty"`
}

type TablesResult struct {
	Success bool     `json:"success"`
	Tables  []string `json:"tables,omitempty"`
	Message string   `json:"message,omitempty"`
}

type QueryRequest struct {
	Connection ConnectionDetails `json:"connection"`
	Query      string            `json:"query"`
}

// QueryResult holds either a result set or, for statements without one,
// only a message such as "Query executada com sucesso. 3 linhas afetadas."
type QueryResult struct {
	Success  bool             `json:"success"`
	Columns  []string         `json:"columns,omitempty"`
	Data     []map[string]any `json:"data,omitempty"`
	RowCount int              `json:"row_count,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// HasRows reports whether the query produced a result set.
func (q QueryResult) HasRows() bool {
	return len(q.Columns) > 0
}

type RiskAnalysisRequest struct {
	Text               string `json:"text"`
	IncludeExplanation bool   `json:"include_explanation"`
}

// RiskAnalysis is the backend's model verdict for a piece of text
type RiskAnalysis struct {
	Success         bool     `json:"success"`
	RiskLevel       string   `json:"risk_level"`
	ConfidenceScore float64  `json:"confidence_score"`
	RiskFactors     []string `json:"risk_factors"`
	ComplianceFlags []string `json:"compliance_flags"`
	Explanation     string   `json:"explanation"`
}
