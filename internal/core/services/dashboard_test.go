package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/testutil"
)

func TestExplorerService_KPIs(t *testing.T) {
	svc, repo, _, _ := newExplorer(t)
	repo.On("Latest", mock.Anything, "user1").Return(nil, domain.ErrSnapshotNotFound)

	resolved, d, err := svc.KPIs(context.Background(), user1, FilterCriteria{Column: "Contract", Value: "Month-to-month"})
	require.NoError(t, err)
	assert.Equal(t, domain.OriginTemplate, resolved.Origin)
	assert.Equal(t, 2, resolved.Table.NumRows())
	assert.Equal(t, 2, d.Rows)

	assert.Equal(t, 2.0, d.TotalCustomers.Value)
	assert.Equal(t, 3.0, d.TotalCustomers.Overall)
	require.NotNil(t, d.TotalCustomers.DeltaPct)
	assert.InDelta(t, -33.3333, *d.TotalCustomers.DeltaPct, 1e-3)

	assert.Equal(t, 1.0, d.CustomersRetained.Value)
	assert.Equal(t, 2.0, d.CustomersRetained.Overall)

	assert.InDelta(t, 1.5, d.AvgTenure.Value, 1e-9)
	assert.InDelta(t, 12.3333, d.AvgTenure.Overall, 1e-3)
	assert.InDelta(t, 41.85, d.AvgMonthlyCharges.Value, 1e-9)

	// The blank TotalCharges is imputed with the median before summing.
	assert.InDelta(t, 138.0, d.TotalRevenue.Value, 1e-9)
	assert.InDelta(t, 207.0, d.TotalRevenue.Overall, 1e-9)

	assert.InDelta(t, 50.0, d.ChurnRate.Value, 1e-9)
	assert.InDelta(t, 33.3333, d.ChurnRate.Overall, 1e-3)
	assert.InDelta(t, 50.0, *d.ChurnRate.DeltaPct, 1e-9)

	assert.Equal(t, []GroupStat{{Group: "Month-to-month", Customers: 2, Value: 100}}, d.ContractMix)
	assert.Equal(t, []GroupStat{
		{Group: "Electronic check", Customers: 1, Value: 50},
		{Group: "Mailed check", Customers: 1, Value: 50},
	}, d.PaymentMethodMix)
	assert.Equal(t, []GroupStat{
		{Group: "Female", Customers: 1, Value: 0},
		{Group: "Male", Customers: 1, Value: 100},
	}, d.ChurnByGender)
	assert.Equal(t, []GroupStat{
		{Group: "1", Customers: 1, Value: 0},
		{Group: "2", Customers: 1, Value: 100},
	}, d.ChurnByTenure)
	require.Len(t, d.MonthlyChargesByContract, 1)
	assert.InDelta(t, 41.85, d.MonthlyChargesByContract[0].Value, 1e-9)
}

func TestExplorerService_KPIs_InvalidFilter(t *testing.T) {
	svc, repo, _, _ := newExplorer(t)
	repo.On("Latest", mock.Anything, "user1").Return(nil, domain.ErrSnapshotNotFound)

	_, _, err := svc.KPIs(context.Background(), user1, FilterCriteria{Column: "Region", Value: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestBuildDashboard_EmptySelection(t *testing.T) {
	all := testutil.ChurnTable(t)
	none := all.Filter(func(int) bool { return false })

	d, err := BuildDashboard(all, none)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Rows)
	assert.Equal(t, 0.0, d.ChurnRate.Value)
	require.NotNil(t, d.ChurnRate.DeltaPct)
	assert.InDelta(t, -100.0, *d.ChurnRate.DeltaPct, 1e-9)
	assert.Empty(t, d.ContractMix)
	assert.Empty(t, d.ChurnByTenure)
}

func TestBuildDashboard_NumericChurnAndZeroBaseline(t *testing.T) {
	tbl := testutil.NewTable(t, []string{"customerID", "tenure", "churn"}, [][]string{
		{"a", "1", "0"},
		{"b", "3", "0"},
		{"c", "3", ""},
	})

	d, err := BuildDashboard(tbl, tbl)
	require.NoError(t, err)
	assert.Equal(t, 2.0, d.CustomersRetained.Value)
	assert.Equal(t, 0.0, d.ChurnRate.Overall)
	assert.Nil(t, d.ChurnRate.DeltaPct, "no delta against a zero baseline")
	assert.Equal(t, []GroupStat{
		{Group: "1", Customers: 1, Value: 0},
		{Group: "3", Customers: 2, Value: 0},
	}, d.ChurnByTenure)
	assert.Empty(t, d.MonthlyChargesByContract)
}

func TestBuildDashboard_NeedsChurnColumn(t *testing.T) {
	tbl := testutil.NewTable(t, []string{"customerID", "tenure"}, [][]string{{"a", "1"}})

	_, err := BuildDashboard(tbl, tbl)
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
}
