package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"vectorproxy/internal/pipeline"
)

var ErrInvalidEnvelope = errors.New("invalid ingest envelope")

// IngestMessage is the NSQ envelope for one batch. Message holds the batch
// either as a JSON string or as inline JSON.
type IngestMessage struct {
	ID            string          `json:"id,omitempty"`
	DatasourceID  string          `json:"datasource_id"`
	TableName     string          `json:"table_name,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Message       json.RawMessage `json:"message"`
}

// NewIngestMessage wraps body as a string-encoded batch.
func NewIngestMessage(datasourceID, tableName string, body []byte) (IngestMessage, error) {
	raw, err := json.Marshal(string(body))
	if err != nil {
		return IngestMessage{}, err
	}
	return IngestMessage{DatasourceID: datasourceID, TableName: tableName, Message: raw}, nil
}

// DecodeIngestMessage parses an envelope and returns the pipeline message it
// carries.
func DecodeIngestMessage(data []byte) (pipeline.Message, error) {
	var env IngestMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return pipeline.Message{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.DatasourceID == "" {
		return pipeline.Message{}, fmt.Errorf("%w: missing datasource_id", ErrInvalidEnvelope)
	}

	body := bytes.TrimSpace(env.Message)
	if len(body) > 0 && body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return pipeline.Message{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
		}
		body = []byte(s)
	}

	return pipeline.Message{
		ID:            env.ID,
		DatasourceID:  env.DatasourceID,
		TableName:     env.TableName,
		CorrelationID: env.CorrelationID,
		Body:          body,
	}, nil
}
