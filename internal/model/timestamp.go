package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamp is a time.Time that decodes from any layout ParseTimestamp
// accepts, including the zone-less ISO-8601 the backend writes. Zone-less
// values are taken as UTC. Encoding is time.Time's RFC 3339.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string, got %s", b)
	}
	if strings.TrimSpace(s) == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Ptr returns the time, or nil when t is nil or zero.
func (t *Timestamp) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// UnmarshalJSON decodes created_at through Timestamp.
func (e *MonitoredEntity) UnmarshalJSON(b []byte) error {
	type plain MonitoredEntity
	aux := struct {
		*plain
		CreatedAt *Timestamp `json:"created_at,omitempty"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.CreatedAt = aux.CreatedAt.Ptr()
	return nil
}

// UnmarshalJSON decodes iniciado_em and finalizado_em through Timestamp.
func (j *ExecutionJob) UnmarshalJSON(b []byte) error {
	type plain ExecutionJob
	aux := struct {
		*plain
		IniciadoEm   *Timestamp `json:"iniciado_em,omitempty"`
		FinalizadoEm *Timestamp `json:"finalizado_em,omitempty"`
	}{plain: (*plain)(j)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	j.IniciadoEm = aux.IniciadoEm.Ptr()
	j.FinalizadoEm = aux.FinalizadoEm.Ptr()
	return nil
}
