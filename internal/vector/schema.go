package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

var ErrTenancyDisabled = errors.New("class exists without multi-tenancy")

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// Properties are the fixed fields of a stored chunk. The free-form record
// payload is kept as JSON text because record keys are not valid GraphQL names.
func Properties() []*models.Property {
	return []*models.Property{
		{Name: "content", DataType: []string{"text"}},
		{Name: "datasourceId", DataType: []string{"text"}, Tokenization: "field"},
		{Name: "tableName", DataType: []string{"text"}, Tokenization: "field"},
		{Name: "recordIndex", DataType: []string{"int"}},
		{Name: "payload", DataType: []string{"text"}, IndexSearchable: boolPtr(false)},
	}
}

// EnsureSchema creates className as a multi-tenant class, or adds missing
// properties when it already exists.
func EnsureSchema(ctx context.Context, client SchemaClient, className string) error {
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	properties := Properties()

	if !exists {
		class := &models.Class{
			Class:              className,
			Description:        "An embedded document chunk scoped to a team",
			Vectorizer:         "none",
			Properties:         properties,
			MultiTenancyConfig: &models.MultiTenancyConfig{Enabled: true},
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}
	if class.MultiTenancyConfig == nil || !class.MultiTenancyConfig.Enabled {
		return fmt.Errorf("%w: %s", ErrTenancyDisabled, className)
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}

	return nil
}

func boolPtr(b bool) *bool { return &b }
