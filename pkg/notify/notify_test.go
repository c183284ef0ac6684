package notify

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := NewLogNotifier(logger)
	ctx := context.Background()

	loan := models.Loan{
		ID:         uuid.New(),
		Reference:  "MF-2025-0007",
		BorrowerID: uuid.New(),
		Principal:  decimal.NewFromInt(15000),
		TermMonths: 9,
	}
	require.NoError(t, n.LoanCreated(ctx, loan))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "loan_created", entry.Data["event"])
	assert.Equal(t, "MF-2025-0007", entry.Data["reference"])
	assert.Equal(t, "15000.00", entry.Data["principal"])

	payment := models.Payment{
		ID:              uuid.New(),
		Amount:          decimal.RequireFromString("1200.5"),
		PenaltyEstimate: decimal.Zero,
	}
	require.NoError(t, n.PaymentSubmitted(ctx, loan, payment))
	entry = hook.LastEntry()
	assert.Equal(t, "payment_submitted", entry.Data["event"])
	assert.Equal(t, "1200.50", entry.Data["amount"])
	assert.Equal(t, "0.00", entry.Data["penalty_estimate"])
	assert.Len(t, hook.AllEntries(), 2)
}
