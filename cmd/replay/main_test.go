package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"token-ledger/internal/verification"
)

func TestPrintSummary(t *testing.T) {
	r := &Result{
		Replay: &verification.ReplaySummary{
			Name:        "GeneralHQ",
			Symbol:      "GHQ",
			TotalSupply: "1000000000000000000000000",
			LastSeq:     4,
			Holders:     3,
			Conserved:   true,
			Digest:      "abc",
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, r)
	assert.Contains(t, buf.String(), "Token:             GeneralHQ (GHQ)")
	assert.NotContains(t, buf.String(), "Mirror Verification")

	r.Mirror = &verification.VerificationReport{
		TotalEvents:     4,
		MatchedEvents:   3,
		DivergentEvents: 1,
		Results: []verification.VerificationResult{{
			Seq:         2,
			Divergences: []verification.FieldDivergence{{Field: "Value", Expected: "10", Actual: "11"}},
		}},
	}

	buf.Reset()
	printSummary(&buf, r)
	assert.Contains(t, buf.String(), "Matched:           3/4")
	assert.Contains(t, buf.String(), "seq=2 Value: expected=10 actual=11")
}
