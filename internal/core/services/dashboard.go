package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"churn-insight-service/internal/core/domain"
)

// Columns the dashboard reads. Lookups ignore case.
const (
	churnColumn          = "Churn"
	tenureColumn         = "tenure"
	genderColumn         = "gender"
	contractColumn       = "Contract"
	paymentMethodColumn  = "PaymentMethod"
	monthlyChargesColumn = "MonthlyCharges"
	totalChargesColumn   = "TotalCharges"
)

// KPI is a metric over the filtered rows next to the same metric over the whole dataset.
// DeltaPct is nil when the overall value is zero.
type KPI struct {
	Value    float64  `json:"value"`
	Overall  float64  `json:"overall"`
	DeltaPct *float64 `json:"delta_pct"`
}

func newKPI(value, overall float64) KPI {
	k := KPI{Value: value, Overall: overall}
	if overall != 0 {
		d := (value - overall) / overall * 100
		k.DeltaPct = &d
	}
	return k
}

// GroupStat is one bar of a breakdown. Value is a percentage for shares and churn rates
// and a plain mean otherwise.
type GroupStat struct {
	Group     string  `json:"group"`
	Customers int     `json:"customers"`
	Value     float64 `json:"value"`
}

// Dashboard holds the headline KPIs and breakdowns of a filtered dataset.
type Dashboard struct {
	Rows int `json:"rows"`

	TotalCustomers    KPI `json:"total_customers"`
	CustomersRetained KPI `json:"customers_retained"`
	AvgTenure         KPI `json:"avg_tenure"`
	AvgMonthlyCharges KPI `json:"avg_monthly_charges"`
	TotalRevenue      KPI `json:"total_revenue"`
	ChurnRate         KPI `json:"churn_rate"`

	ContractMix              []GroupStat `json:"contract_mix"`
	PaymentMethodMix         []GroupStat `json:"payment_method_mix"`
	ChurnByGender            []GroupStat `json:"churn_by_gender"`
	ChurnByContract          []GroupStat `json:"churn_by_contract"`
	ChurnByTenure            []GroupStat `json:"churn_by_tenure"`
	MonthlyChargesByContract []GroupStat `json:"monthly_charges_by_contract"`
}

// KPIs resolves the session user's dataset and builds the dashboard for the rows matching
// criteria. Deltas compare against the unfiltered dataset.
func (s *ExplorerService) KPIs(ctx context.Context, sess *domain.Session, criteria FilterCriteria) (*domain.ResolvedDataset, *Dashboard, error) {
	resolved, err := s.resolver.Resolve(ctx, sess)
	if err != nil {
		return nil, nil, err
	}
	filtered, err := Filter(resolved.Table, criteria)
	if err != nil {
		return nil, nil, err
	}
	d, err := BuildDashboard(resolved.Table, filtered)
	if err != nil {
		return nil, nil, err
	}
	resolved.Table = filtered
	return resolved, d, nil
}

type headline struct {
	rows       int
	retained   int
	avgTenure  float64
	avgMonthly float64
	revenue    float64
	churnRate  float64
}

// BuildDashboard computes the dashboard of filtered against overall. Both tables need a
// churn column holding Yes/No or 1/0.
func BuildDashboard(overall, filtered *domain.Table) (*Dashboard, error) {
	all, err := headlineOf(overall)
	if err != nil {
		return nil, err
	}
	sub, err := headlineOf(filtered)
	if err != nil {
		return nil, err
	}
	flags, _ := churnFlags(filtered)

	return &Dashboard{
		Rows:              sub.rows,
		TotalCustomers:    newKPI(float64(sub.rows), float64(all.rows)),
		CustomersRetained: newKPI(float64(sub.retained), float64(all.retained)),
		AvgTenure:         newKPI(sub.avgTenure, all.avgTenure),
		AvgMonthlyCharges: newKPI(sub.avgMonthly, all.avgMonthly),
		TotalRevenue:      newKPI(sub.revenue, all.revenue),
		ChurnRate:         newKPI(sub.churnRate, all.churnRate),

		ContractMix:              shareBy(filtered, contractColumn),
		PaymentMethodMix:         shareBy(filtered, paymentMethodColumn),
		ChurnByGender:            churnRateBy(filtered, flags, genderColumn),
		ChurnByContract:          churnRateBy(filtered, flags, contractColumn),
		ChurnByTenure:            churnRateBy(filtered, flags, tenureColumn),
		MonthlyChargesByContract: meanBy(filtered, contractColumn, monthlyChargesColumn),
	}, nil
}

func headlineOf(t *domain.Table) (headline, error) {
	flags, err := churnFlags(t)
	if err != nil {
		return headline{}, err
	}

	h := headline{rows: t.NumRows()}
	churned, known := 0, 0
	for _, f := range flags {
		switch f {
		case 1:
			churned++
			known++
		case 0:
			h.retained++
			known++
		}
	}
	if known > 0 {
		h.churnRate = float64(churned) / float64(known) * 100
	}
	h.avgTenure = columnMean(t, tenureColumn)
	h.avgMonthly = columnMean(t, monthlyChargesColumn)
	if col, ok := numericColumn(t, totalChargesColumn); ok {
		h.revenue = floats.Sum(col.Numbers())
	}
	return h, nil
}

// churnFlags maps every row to 1 (churned), 0 (retained) or -1 (unknown).
func churnFlags(t *domain.Table) ([]int, error) {
	col, ok := t.ColumnFold(churnColumn)
	if !ok {
		return nil, fmt.Errorf("%w: dashboard needs a %q column", domain.ErrSchemaMismatch, churnColumn)
	}
	flags := make([]int, len(col.Cells))
	for i, cell := range col.Cells {
		flags[i] = -1
		if !cell.Valid {
			continue
		}
		if col.IsNumeric() {
			switch cell.Num {
			case 1:
				flags[i] = 1
			case 0:
				flags[i] = 0
			}
			continue
		}
		switch strings.ToLower(strings.TrimSpace(cell.Text)) {
		case "yes", "true", "1":
			flags[i] = 1
		case "no", "false", "0":
			flags[i] = 0
		}
	}
	return flags, nil
}

func numericColumn(t *domain.Table, name string) (*domain.Column, bool) {
	col, ok := t.ColumnFold(name)
	if !ok || !col.IsNumeric() {
		return nil, false
	}
	return col, true
}

func columnMean(t *domain.Table, name string) float64 {
	col, ok := numericColumn(t, name)
	if !ok {
		return 0
	}
	values := col.Numbers()
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// groupRows buckets row indexes by the rendered value of column name. Keys come back in
// numeric order for numeric columns and lexical order otherwise. Missing cells are skipped.
func groupRows(t *domain.Table, name string) ([]string, map[string][]int) {
	col, ok := t.ColumnFold(name)
	if !ok {
		return nil, nil
	}
	rows := make(map[string][]int)
	num := make(map[string]float64)
	var keys []string
	for i, cell := range col.Cells {
		if !cell.Valid {
			continue
		}
		k := col.Render(i)
		if _, seen := rows[k]; !seen {
			keys = append(keys, k)
			num[k] = cell.Num
		}
		rows[k] = append(rows[k], i)
	}
	if col.IsNumeric() {
		sort.Slice(keys, func(a, b int) bool { return num[keys[a]] < num[keys[b]] })
	} else {
		sort.Strings(keys)
	}
	return keys, rows
}

// shareBy is the value distribution of name, largest group first.
func shareBy(t *domain.Table, name string) []GroupStat {
	keys, rows := groupRows(t, name)
	total := 0
	for _, r := range rows {
		total += len(r)
	}
	out := make([]GroupStat, 0, len(keys))
	for _, k := range keys {
		out = append(out, GroupStat{
			Group:     k,
			Customers: len(rows[k]),
			Value:     float64(len(rows[k])) / float64(total) * 100,
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Customers > out[b].Customers })
	return out
}

// churnRateBy is the churn percentage per value of name. Rows with an unknown churn flag
// count as customers but not toward the rate.
func churnRateBy(t *domain.Table, flags []int, name string) []GroupStat {
	keys, rows := groupRows(t, name)
	out := make([]GroupStat, 0, len(keys))
	for _, k := range keys {
		churned, known := 0, 0
		for _, r := range rows[k] {
			if flags[r] >= 0 {
				known++
				churned += flags[r]
			}
		}
		g := GroupStat{Group: k, Customers: len(rows[k])}
		if known > 0 {
			g.Value = float64(churned) / float64(known) * 100
		}
		out = append(out, g)
	}
	return out
}

func meanBy(t *domain.Table, groupName, valueName string) []GroupStat {
	values, ok := numericColumn(t, valueName)
	if !ok {
		return []GroupStat{}
	}
	keys, rows := groupRows(t, groupName)
	out := make([]GroupStat, 0, len(keys))
	for _, k := range keys {
		var xs []float64
		for _, r := range rows[k] {
			if values.Cells[r].Valid {
				xs = append(xs, values.Cells[r].Num)
			}
		}
		g := GroupStat{Group: k, Customers: len(rows[k])}
		if len(xs) > 0 {
			g.Value = stat.Mean(xs, nil)
		}
		out = append(out, g)
	}
	return out
}
