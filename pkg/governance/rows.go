package governance

import (
	"strconv"
	"strings"
)

// Tab names understood by FilterRows besides status substrings.
const (
	TabAll              = "all"
	TabCriticalFindings = "critical findings"
)

// overdueFindingDays is the age past which a finding counts as overdue.
const overdueFindingDays = 30

// RowFilter selects rows for display. Zero value matches everything.
type RowFilter struct {
	// Query is matched case-insensitively against model name, owner and
	// application type.
	Query string
	// Tab is "all", "critical findings", or a status substring.
	Tab string
}

// FilterRows returns the rows matching f, preserving order.
func FilterRows(rows []TableRow, f RowFilter) []TableRow {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	tab := strings.ToLower(strings.TrimSpace(f.Tab))

	out := make([]TableRow, 0, len(rows))
	for _, r := range rows {
		if !matchesTab(r, tab) || !matchesQuery(r, query) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesTab(r TableRow, tab string) bool {
	switch tab {
	case "", TabAll:
		return true
	case TabCriticalFindings:
		return HasCriticalFindings(r.Findings)
	default:
		return strings.Contains(strings.ToLower(r.Status), tab)
	}
}

func matchesQuery(r TableRow, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.ModelName), query) ||
		strings.Contains(strings.ToLower(r.Owner), query) ||
		strings.Contains(strings.ToLower(r.ApplicationType), query)
}

// HasCriticalFindings reports whether any finding is critical or overdue.
func HasCriticalFindings(findings []Finding) bool {
	for _, f := range findings {
		if strings.EqualFold(f.Severity, "critical") || f.AgeDays > overdueFindingDays {
			return true
		}
	}
	return false
}

var riskDescriptions = map[string]string{
	"P0": "Critical Priority - Regulatory/Business Critical",
	"P1": "High Priority - Material Risk Impact",
	"P2": "Medium Priority - Moderate Risk Impact",
	"P3": "Low Priority - Low Risk Impact",
	"P4": "Minimal Priority - Monitoring/Research",
}

// RiskDescription explains a risk class. Unknown classes describe P3.
func RiskDescription(class string) string {
	if d, ok := riskDescriptions[class]; ok {
		return d
	}
	return riskDescriptions[DefaultRiskClass]
}

// HealthBand is the display band of a health percentage.
type HealthBand string

const (
	HealthPositive HealthBand = "positive"
	HealthNeutral  HealthBand = "neutral"
	HealthNegative HealthBand = "negative"
)

// ClassifyHealth maps a health percentage string onto a band. Unparseable
// values are negative.
func ClassifyHealth(health string) HealthBand {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(health), "%"), 64)
	switch {
	case err != nil:
		return HealthNegative
	case v >= 95:
		return HealthPositive
	case v >= 85:
		return HealthNeutral
	default:
		return HealthNegative
	}
}

// Initials returns the upper-cased first letter of each word in name.
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			b.WriteString(strings.ToUpper(string(r)))
			break
		}
	}
	return b.String()
}
