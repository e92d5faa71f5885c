package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/reviewloop/reviewloop/model"
)

func TestRenderLedgerTable(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	out := renderLedgerTable([]model.LedgerEntry{
		{EntryID: "e1", Kind: model.LedgerEarned, Amount: 1, Description: "review approved", Reference: "asg_1", CreatedAt: at},
		{EntryID: "e2", Kind: model.LedgerSpent, Amount: -1, Description: "queue submission", CreatedAt: at},
	})

	assert.Contains(t, out, "Kind")
	assert.Contains(t, out, "+1")
	assert.Contains(t, out, "-1")
	assert.Contains(t, out, "asg_1")
	assert.Contains(t, out, "2024-05-01T09:00:00Z")
	assert.True(t, strings.Index(out, "review approved") < strings.Index(out, "queue submission"))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "+3", formatAmount(3))
	assert.Equal(t, "-2", formatAmount(-2))
	assert.Equal(t, "0", formatAmount(0))
}
