package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"churn-insight-service/internal/core/domain"
)

// ChurnHeader is the column layout of the customer churn template.
var ChurnHeader = []string{
	"customerID", "gender", "SeniorCitizen", "Partner", "Dependents", "tenure",
	"PhoneService", "MultipleLines", "InternetService", "OnlineSecurity", "OnlineBackup",
	"DeviceProtection", "TechSupport", "StreamingTV", "StreamingMovies", "Contract",
	"PaperlessBilling", "PaymentMethod", "MonthlyCharges", "TotalCharges", "Churn",
}

// ChurnRows are three template records. 5575-GNVDE has a blank TotalCharges.
var ChurnRows = [][]string{
	{"7590-VHVEG", "Female", "No", "Yes", "No", "1", "No", "No phone service", "DSL", "No", "Yes", "No", "No", "No", "No", "Month-to-month", "Yes", "Electronic check", "29.85", "29.85", "No"},
	{"5575-GNVDE", "Male", "No", "No", "No", "34", "Yes", "No", "DSL", "Yes", "No", "Yes", "No", "No", "No", "One year", "No", "Mailed check", "56.95", "", "No"},
	{"3668-QPYBK", "Male", "No", "No", "No", "2", "Yes", "No", "DSL", "Yes", "Yes", "No", "No", "No", "No", "Month-to-month", "Yes", "Mailed check", "53.85", "108.15", "Yes"},
}

// NewTable builds a table from raw rows and fails the test on error.
func NewTable(t *testing.T, header []string, rows [][]string) *domain.Table {
	t.Helper()
	table, err := domain.NewTable(header, rows)
	require.NoError(t, err)
	return table
}

func ChurnTable(t *testing.T) *domain.Table {
	return NewTable(t, ChurnHeader, ChurnRows)
}

func ChurnSchema(t *testing.T) *domain.TemplateSchema {
	t.Helper()
	schema, err := domain.NewTemplateSchema(ChurnTable(t), domain.DefaultIdentifierColumn, domain.DefaultColumnDescriptions)
	require.NoError(t, err)
	return schema
}

// ChurnCSV renders header and rows as comma separated text.
func ChurnCSV(header []string, rows [][]string) []byte {
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(strings.Join(r, ","))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// ChurnRecord is one interactive prediction input.
func ChurnRecord() map[string]interface{} {
	return map[string]interface{}{
		"gender":           "Female",
		"SeniorCitizen":    "No",
		"Partner":          "Yes",
		"Dependents":       "No",
		"tenure":           12.0,
		"PhoneService":     "Yes",
		"MultipleLines":    "No",
		"InternetService":  "Fiber optic",
		"OnlineSecurity":   "No",
		"OnlineBackup":     "No",
		"DeviceProtection": "No",
		"TechSupport":      "No",
		"StreamingTV":      "Yes",
		"StreamingMovies":  "No",
		"Contract":         "Month-to-month",
		"PaperlessBilling": "Yes",
		"PaymentMethod":    "Electronic check",
		"MonthlyCharges":   70.35,
		"TotalCharges":     844.2,
	}
}
