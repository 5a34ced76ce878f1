package domain

import (
	"fmt"
	"strings"
)

// DefaultIdentifierColumn is the record identifier of the telecom customer dataset.
const DefaultIdentifierColumn = "customerID"

// DefaultColumnDescriptions documents the template columns shown on the data page.
var DefaultColumnDescriptions = map[string]string{
	"gender":                            "Whether the customer is male or female",
	"SeniorCitizen":                     "Whether a customer is a senior citizen (Yes or No)",
	"Partner":                           "Customer has a partner (Yes, No)",
	"Dependents":                        "Customer has dependents (Yes, No)",
	"tenure":                            "Months the customer has stayed with the company",
	"PhoneService":                      "Customer has phone service (Yes, No)",
	"MultipleLines":                     "Customer has multiple lines (Yes, No phone service, No)",
	"InternetService":                   "Internet service provider (DSL, Fiber Optic, No)",
	"OnlineSecurity":                    "Customer has online security (Yes, No, No internet service)",
	"OnlineBackup":                      "Customer has online backup (Yes, No, No internet service)",
	"DeviceProtection":                  "Customer has device protection (Yes, No, No internet service)",
	"TechSupport":                       "Customer has tech support (Yes, No, No internet service)",
	"StreamingTV":                       "Customer has streaming TV (Yes, No, No internet service)",
	"StreamingMovies":                   "Customer has streaming movies (Yes, No, No internet service)",
	"Contract":                          "Contract term (Month-to-month, One year, Two year)",
	"PaperlessBilling":                  "Customer has paperless billing (Yes, No)",
	"PaymentMethod":                     "Payment method (Bank transfer (automatic), Credit card (automatic), Electronic check, Mailed check)",
	"MonthlyCharges":                    "Monthly charge to the customer",
	"TotalCharges":                      "Total charge to the customer",
	"Churn":                             "Whether the customer churned (Yes, No)",
	"AvgMonthlyCharges":                 "The average amount charged to the customer per month over their tenure",
	"MonthlyChargesToTotalChargesRatio": "The ratio of the monthly charges to the total charges",
}

type SchemaColumn struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Description string     `json:"description,omitempty"`
}

// TemplateSchema is the canonical column layout every upload must match. Immutable once built.
type TemplateSchema struct {
	columns    []SchemaColumn
	identifier string
}

// NewTemplateSchema derives the schema from the reference dataset.
func NewTemplateSchema(reference *Table, identifier string, descriptions map[string]string) (*TemplateSchema, error) {
	if _, ok := reference.Column(identifier); !ok {
		return nil, fmt.Errorf("template dataset has no identifier column %q", identifier)
	}
	cols := make([]SchemaColumn, len(reference.Columns))
	for i, c := range reference.Columns {
		typ := c.Type
		if c.Name == identifier {
			typ = ColumnIdentifier
		}
		cols[i] = SchemaColumn{Name: c.Name, Type: typ, Description: lookupDescription(descriptions, c.Name)}
	}
	return &TemplateSchema{columns: cols, identifier: identifier}, nil
}

func lookupDescription(descriptions map[string]string, name string) string {
	if d, ok := descriptions[name]; ok {
		return d
	}
	for k, d := range descriptions {
		if strings.EqualFold(k, name) {
			return d
		}
	}
	return ""
}

// Columns returns a copy of the ordered schema columns.
func (s *TemplateSchema) Columns() []SchemaColumn {
	out := make([]SchemaColumn, len(s.columns))
	copy(out, s.columns)
	return out
}

func (s *TemplateSchema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

func (s *TemplateSchema) Identifier() string {
	return s.identifier
}

// Describe renders the expected layout for user-facing error messages.
func (s *TemplateSchema) Describe() string {
	parts := make([]string, len(s.columns))
	for i, c := range s.columns {
		parts[i] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
	}
	return strings.Join(parts, ", ")
}
