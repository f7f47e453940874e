package sessionlog

import (
	"fmt"
	"sort"
	"strings"

	"firegate/internal/domain"
	"firegate/internal/request/models"
)

// Scorer produces the automated assessment attached to a review bundle.
type Scorer interface {
	Score(req *models.AccessRequest, logs map[domain.LogCategory]*CategoryLog) Assessment
}

// HeuristicScorer compares pulled activity against the request's window
// and justification. It is intentionally coarse; anything it flags still
// goes to a human reviewer.
type HeuristicScorer struct{}

const (
	weightOutsideWindow   = 40
	weightUnexpectedActor = 30
	weightUndeclaredTxn   = 10
	maxRiskScore          = 100
)

func (HeuristicScorer) Score(req *models.AccessRequest, logs map[domain.LogCategory]*CategoryLog) Assessment {
	var (
		score              int
		txnTotal, txnKnown int
		flags              = make(map[string]bool)
	)

	declared := strings.ToUpper(req.Justification.TransactionsRequested)

	for _, log := range logs {
		for _, rec := range log.Records {
			if !req.Window.Contains(rec.Timestamp) {
				if !flags["activity_outside_window"] {
					score += weightOutsideWindow
				}
				flags["activity_outside_window"] = true
			}
			if rec.Actor != "" && req.FirefighterID != "" && rec.Actor != req.FirefighterID {
				if !flags["unexpected_actor"] {
					score += weightUnexpectedActor
				}
				flags["unexpected_actor"] = true
			}
			if log.Category == domain.LogTransactions {
				code := rec.Fields["transaction"]
				if code == "" {
					continue
				}
				txnTotal++
				if strings.Contains(declared, strings.ToUpper(code)) {
					txnKnown++
					continue
				}
				flag := fmt.Sprintf("undeclared_transaction:%s", code)
				if !flags[flag] {
					score += weightUndeclaredTxn
				}
				flags[flag] = true
			}
		}
	}

	if score > maxRiskScore {
		score = maxRiskScore
	}

	out := make([]string, 0, len(flags))
	for f := range flags {
		out = append(out, f)
	}
	sort.Strings(out)

	// With no transaction activity there is nothing to misalign.
	alignment := maxRiskScore
	if txnTotal > 0 {
		alignment = txnKnown * maxRiskScore / txnTotal
	}
	return Assessment{RiskScore: score, AlignmentScore: alignment, Flags: out}
}
