package vector

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateSchema implements SchemaClient and TenantClient on a Weaviate client.
type WeaviateSchema struct {
	Client *weaviate.Client
}

func NewWeaviateSchema(client *weaviate.Client) *WeaviateSchema {
	return &WeaviateSchema{Client: client}
}

func (a *WeaviateSchema) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.Client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *WeaviateSchema) CreateClass(ctx context.Context, class *models.Class) error {
	return a.Client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *WeaviateSchema) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return a.Client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *WeaviateSchema) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return a.Client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}

// TenantClient manages the per-team partitions of a multi-tenant class.
type TenantClient interface {
	ListTenants(ctx context.Context, className string) ([]string, error)
	CreateTenants(ctx context.Context, className string, tenants ...string) error
}

func (a *WeaviateSchema) ListTenants(ctx context.Context, className string) ([]string, error) {
	tenants, err := a.Client.Schema().TenantsGetter().WithClassName(className).Do(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tenants))
	for _, t := range tenants {
		names = append(names, t.Name)
	}
	return names, nil
}

func (a *WeaviateSchema) CreateTenants(ctx context.Context, className string, tenants ...string) error {
	ts := make([]models.Tenant, len(tenants))
	for i, name := range tenants {
		ts[i] = models.Tenant{Name: name}
	}
	return a.Client.Schema().TenantsCreator().WithClassName(className).WithTenants(ts...).Do(ctx)
}
