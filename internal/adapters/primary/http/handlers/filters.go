package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/core/services"
)

// parseFilter reads column, value, customer_id and repeated range=col:min:max query parameters.
func parseFilter(c *gin.Context) (services.FilterCriteria, error) {
	criteria := services.FilterCriteria{
		Column:     strings.TrimSpace(c.Query("column")),
		Value:      c.Query("value"),
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
	}
	if criteria.Column == "" && c.Query("value") != "" {
		return criteria, fmt.Errorf("%w: value given without column", domain.ErrInvalidFilter)
	}

	for _, raw := range c.QueryArray("range") {
		rf, err := parseRange(raw)
		if err != nil {
			return criteria, err
		}
		criteria.Ranges = append(criteria.Ranges, rf)
	}
	return criteria, nil
}

func parseRange(raw string) (services.RangeFilter, error) {
	// Column names never contain ':', so the bounds are the last two fields.
	i := strings.LastIndex(raw, ":")
	if i <= 0 {
		return services.RangeFilter{}, fmt.Errorf("%w: range %q must be column:min:max", domain.ErrInvalidFilter, raw)
	}
	j := strings.LastIndex(raw[:i], ":")
	if j <= 0 {
		return services.RangeFilter{}, fmt.Errorf("%w: range %q must be column:min:max", domain.ErrInvalidFilter, raw)
	}

	lo, err := strconv.ParseFloat(raw[j+1:i], 64)
	if err != nil {
		return services.RangeFilter{}, fmt.Errorf("%w: range %q has a non-numeric minimum", domain.ErrInvalidFilter, raw)
	}
	hi, err := strconv.ParseFloat(raw[i+1:], 64)
	if err != nil {
		return services.RangeFilter{}, fmt.Errorf("%w: range %q has a non-numeric maximum", domain.ErrInvalidFilter, raw)
	}
	return services.RangeFilter{Column: raw[:j], Min: lo, Max: hi}, nil
}
