package domain

import dErrors "firegate/pkg/domain-errors"

// LogCategory names one of the three session log extracts pulled from a
// target system after a firefighter session ends. The review gate needs
// all three (or an explicit no-data result) before sign-off.
type LogCategory string

const (
	LogTransactions LogCategory = "transaction_usage"
	LogAudit        LogCategory = "audit_log"
	LogChanges      LogCategory = "change_documents"
)

// AllLogCategories returns the categories in pull order.
func AllLogCategories() []LogCategory {
	return []LogCategory{LogTransactions, LogAudit, LogChanges}
}

// ParseLogCategory constructs a LogCategory from external input.
func ParseLogCategory(s string) (LogCategory, error) {
	c := LogCategory(s)
	switch c {
	case LogTransactions, LogAudit, LogChanges:
		return c, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown log category %q", s)
}

func (c LogCategory) String() string { return string(c) }
