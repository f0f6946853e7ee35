package bus

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// AnalysisMessage is published once per submitted analysis run
type AnalysisMessage struct {
	MessageID string                `json:"message_id"`
	JobID     int64                 `json:"job_id"`
	Payload   model.AnalysisPayload `json:"payload"`
	Timestamp int64                 `json:"timestamp"`
}

// JobUpdateMessage carries a job status change
type JobUpdateMessage struct {
	MessageID string          `json:"message_id"`
	JobID     int64           `json:"job_id"`
	Status    model.JobStatus `json:"status"`
	Timestamp int64           `json:"timestamp"`
}

func NewAnalysisMessage(job model.ExecutionJob, payload model.AnalysisPayload) AnalysisMessage {
	return AnalysisMessage{
		MessageID: uuid.NewString(),
		JobID:     job.ID,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	}
}

func NewJobUpdateMessage(job model.ExecutionJob) JobUpdateMessage {
	return JobUpdateMessage{
		MessageID: uuid.NewString(),
		JobID:     job.ID,
		Status:    job.Status,
		Timestamp: time.Now().Unix(),
	}
}

// Fields flattens the message into stream entry values.
func (m AnalysisMessage) Fields() (map[string]interface{}, error) {
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis payload: %w", err)
	}
	return map[string]interface{}{
		"message_id": m.MessageID,
		"job_id":     m.JobID,
		"payload":    string(payload),
		"timestamp":  m.Timestamp,
	}, nil
}

func (m JobUpdateMessage) Fields() map[string]interface{} {
	return map[string]interface{}{
		"message_id": m.MessageID,
		"job_id":     m.JobID,
		"status":     string(m.Status),
		"timestamp":  m.Timestamp,
	}
}

// ParseJobUpdate rebuilds a job update from stream entry fields.
func ParseJobUpdate(fields map[string]string) (JobUpdateMessage, error) {
	id, err := strconv.ParseInt(fields["job_id"], 10, 64)
	if err != nil {
		return JobUpdateMessage{}, fmt.Errorf("invalid job_id %q: %w", fields["job_id"], err)
	}
	msg := JobUpdateMessage{
		MessageID: fields["message_id"],
		JobID:     id,
		Status:    model.JobStatus(fields["status"]),
	}
	if ts, err := parseTimestamp(fields["timestamp"]); err == nil {
		msg.Timestamp = ts
	}
	return msg, nil
}

// ParseAnalysis rebuilds an analysis message from stream entry fields.
func ParseAnalysis(fields map[string]string) (AnalysisMessage, error) {
	id, err := strconv.ParseInt(fields["job_id"], 10, 64)
	if err != nil {
		return AnalysisMessage{}, fmt.Errorf("invalid job_id %q: %w", fields["job_id"], err)
	}
	msg := AnalysisMessage{MessageID: fields["message_id"], JobID: id}
	if raw := fields["payload"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &msg.Payload); err != nil {
			return AnalysisMessage{}, fmt.Errorf("failed to unmarshal analysis payload: %w", err)
		}
	}
	if ts, err := parseTimestamp(fields["timestamp"]); err == nil {
		msg.Timestamp = ts
	}
	return msg, nil
}

// parseTimestamp parses a timestamp string to unix seconds
func parseTimestamp(timestamp string) (int64, error) {
	if timestamp == "" {
		return time.Now().Unix(), nil
	}

	// Try numeric epoch (seconds or milliseconds)
	if n, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		if n > 1_000_000_000_000 {
			return n / 1000, nil
		}
		return n, nil
	}

	if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		return ts.Unix(), nil
	}

	return time.Now().Unix(), fmt.Errorf("unable to parse timestamp: %s", timestamp)
}
