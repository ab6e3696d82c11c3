package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"vectorproxy/internal/vector"
)

// maxBatch caps the objects sent in one batch request.
const maxBatch = 100

// Store upserts points into a multi-tenant Weaviate class. Each team is a
// Weaviate tenant, created on first write.
type Store struct {
	client  *weaviate.Client
	tenants vector.TenantClient
	class   string

	mu    sync.Mutex
	known map[string]bool
}

func NewStore(client *weaviate.Client, class string) *Store {
	return &Store{
		client:  client,
		tenants: vector.NewWeaviateSchema(client),
		class:   class,
		known:   make(map[string]bool),
	}
}

func (s *Store) Upsert(ctx context.Context, tenant string, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := vector.ValidateTenant(tenant); err != nil {
		return err
	}
	if err := s.ensureTenant(ctx, tenant); err != nil {
		return fmt.Errorf("ensure tenant %s: %w", tenant, err)
	}

	objects := make([]*models.Object, len(points))
	for i, p := range points {
		obj, err := s.toObject(tenant, p)
		if err != nil {
			return err
		}
		objects[i] = obj
	}

	for start := 0; start < len(objects); start += maxBatch {
		end := min(start+maxBatch, len(objects))
		res, err := s.client.Batch().ObjectsBatcher().WithObjects(objects[start:end]...).Do(ctx)
		if err != nil {
			return fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		if err := batchErrors(res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) toObject(tenant string, p vector.Point) (*models.Object, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload of %s: %w", p.ID, err)
	}

	props := map[string]interface{}{
		"payload": string(payload),
	}
	if v, ok := p.Payload[vector.PayloadContent].(string); ok {
		props["content"] = v
	}
	if v, ok := p.Payload[vector.PayloadDatasourceID].(string); ok {
		props["datasourceId"] = v
	}
	if v, ok := p.Payload[vector.PayloadTableName].(string); ok {
		props["tableName"] = v
	}
	if v, ok := p.Payload[vector.PayloadRecordIndex].(int); ok {
		props["recordIndex"] = v
	}

	return &models.Object{
		Class:      s.class,
		ID:         strfmt.UUID(p.ID),
		Tenant:     tenant,
		Vector:     models.C11yVector(p.Vector),
		Properties: props,
	}, nil
}

func (s *Store) ensureTenant(ctx context.Context, tenant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.known[tenant] {
		return nil
	}

	existing, err := s.tenants.ListTenants(ctx, s.class)
	if err != nil {
		return err
	}
	for _, name := range existing {
		s.known[name] = true
	}
	if s.known[tenant] {
		return nil
	}

	if err := s.tenants.CreateTenants(ctx, s.class, tenant); err != nil {
		return err
	}
	s.known[tenant] = true
	return nil
}

func batchErrors(res []models.ObjectsGetResponse) error {
	var msgs []string
	for _, r := range res {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			msgs = append(msgs, fmt.Sprintf("%s: %s", r.ID, e.Message))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("batch upsert failed for %d objects: %s", len(msgs), strings.Join(msgs, "; "))
}
