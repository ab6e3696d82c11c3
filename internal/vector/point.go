package vector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Payload keys written by the embedder alongside each point. They live under
// the reserved ac_ prefix so they never shadow a record's own fields.
const (
	PayloadContent      = "ac_content"
	PayloadDatasourceID = "ac_datasource_id"
	PayloadTableName    = "ac_table_name"
	PayloadRecordIndex  = "ac_record_index"
)

// ReservedPrefix marks payload keys owned by the pipeline.
const ReservedPrefix = "ac_"

// Point is one embedding ready for storage.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Store bulk-upserts points into the partition owned by tenant.
// Implementations must be safe for concurrent use.
type Store interface {
	Upsert(ctx context.Context, tenant string, points []Point) error
}

var ErrInvalidTenant = errors.New("invalid tenant name")

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateTenant rejects names that cannot address a vector-store partition.
func ValidateTenant(tenant string) error {
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("%w: %q", ErrInvalidTenant, tenant)
	}
	return nil
}

// TenantStore is a Store handle bound to a single tenant.
type TenantStore struct {
	store  Store
	tenant string
}

// Scoped binds s to tenant. The tenant is validated on every upsert.
func Scoped(s Store, tenant string) *TenantStore {
	return &TenantStore{store: s, tenant: tenant}
}

func (t *TenantStore) Tenant() string { return t.tenant }

func (t *TenantStore) Upsert(ctx context.Context, points []Point) error {
	if err := ValidateTenant(t.tenant); err != nil {
		return err
	}
	return t.store.Upsert(ctx, t.tenant, points)
}
