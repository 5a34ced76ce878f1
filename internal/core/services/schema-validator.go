package services

import (
	"fmt"

	"churn-insight-service/internal/core/domain"
)

// SchemaValidator checks candidate tables against the template schema. It has no side effects.
type SchemaValidator struct {
	schema *domain.TemplateSchema
}

func NewSchemaValidator(schema *domain.TemplateSchema) *SchemaValidator {
	return &SchemaValidator{schema: schema}
}

func (v *SchemaValidator) Schema() *domain.TemplateSchema {
	return v.schema
}

// Validate returns nil when candidate has the template's column names, order and kinds.
func (v *SchemaValidator) Validate(candidate *domain.Table) error {
	if candidate == nil || candidate.NumRows() == 0 {
		return domain.ErrEmptyDataset
	}

	expected := v.schema.Columns()
	actual := candidate.Columns

	if err := compareNames(expected, candidate.ColumnNames()); err != nil {
		return err
	}

	for i, col := range expected {
		if col.Type.Kind() != actual[i].Type.Kind() {
			return fmt.Errorf("%w: column %q has type %s, expected %s",
				domain.ErrSchemaMismatch, col.Name, actual[i].Type.Kind(), col.Type.Kind())
		}
	}
	return nil
}

func compareNames(expected []domain.SchemaColumn, actual []string) error {
	want := make(map[string]bool, len(expected))
	for _, c := range expected {
		want[c.Name] = true
	}
	got := make(map[string]bool, len(actual))
	for _, name := range actual {
		got[name] = true
	}

	for _, c := range expected {
		if !got[c.Name] {
			return fmt.Errorf("%w: missing column %q", domain.ErrSchemaMismatch, c.Name)
		}
	}
	for _, name := range actual {
		if !want[name] {
			return fmt.Errorf("%w: unexpected column %q", domain.ErrSchemaMismatch, name)
		}
	}
	if len(actual) != len(expected) {
		return fmt.Errorf("%w: expected %d columns, got %d", domain.ErrSchemaMismatch, len(expected), len(actual))
	}
	for i, c := range expected {
		if actual[i] != c.Name {
			return fmt.Errorf("%w: column %d is %q, expected %q (column order must match the template)",
				domain.ErrSchemaMismatch, i+1, actual[i], c.Name)
		}
	}
	return nil
}
