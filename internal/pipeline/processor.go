package pipeline

import (
	"context"
	"errors"

	"vectorproxy/internal/embedding"
	"vectorproxy/internal/ingest"
	"vectorproxy/internal/middleware"
	"vectorproxy/internal/observe"
	"vectorproxy/internal/tenant"
	"vectorproxy/internal/vector"
)

type TenantResolver interface {
	Resolve(ctx context.Context, datasourceID string) (tenant.Context, error)
}

// Handles are the shared store handles a batch runs against. They are
// owned by the application and lent to each dispatch.
type Handles struct {
	Vectors vector.Store
	Tenants TenantResolver
}

// Message is one inbound batch for a datasource.
type Message struct {
	ID            string
	DatasourceID  string
	TableName     string
	CorrelationID string
	Body          []byte
}

// Outcome summarizes a processed batch.
type Outcome struct {
	Records int
	Points  int
	TeamID  string
}

// Processor runs normalize, tenant resolution and embed/upsert for one
// message.
type Processor struct {
	coordinator *Coordinator
}

func NewProcessor(c *Coordinator) *Processor {
	return &Processor{coordinator: c}
}

// Process returns a *Error on failure. An empty batch succeeds with a zero
// Outcome and no embedding call.
func (p *Processor) Process(ctx context.Context, h Handles, msg Message) (_ Outcome, err error) {
	ctx = middleware.WithDatasourceID(ctx, msg.DatasourceID)
	if msg.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, msg.CorrelationID)
	}

	ctx, span := observe.StartSpan(ctx, "pipeline.process")
	defer func() { observe.EndSpan(span, err) }()

	records, err := ingest.Normalize(ctx, msg.Body)
	if errors.Is(err, ingest.ErrNoRecords) {
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, &Error{Kind: NormalizeFailure, DatasourceID: msg.DatasourceID, Err: err}
	}

	tc, err := h.Tenants.Resolve(ctx, msg.DatasourceID)
	if err != nil {
		return Outcome{Records: len(records)}, &Error{Kind: TenantFailure, DatasourceID: msg.DatasourceID, Err: err}
	}
	ctx = middleware.WithTeamID(ctx, tc.TeamID)

	ds := embedding.Datasource{ID: msg.DatasourceID, TableName: msg.TableName}
	n, err := p.coordinator.EmbedInsert(ctx, vector.Scoped(h.Vectors, tc.TeamID), records, ds)
	return Outcome{Records: len(records), Points: n, TeamID: tc.TeamID}, err
}
