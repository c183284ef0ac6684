package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", ValidationError("amount", "must be positive"), Validation},
		{"wrapped conflict", fmt.Errorf("create loan: %w", ConflictError("borrower has an active loan")), Conflict},
		{"not found", NotFoundError("loan not found"), NotFound},
		{"plain error", errors.New("connection refused"), Infrastructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "term_months: must be between 1 and 18", ValidationError("term_months", "must be between %d and %d", 1, 18).Error())
	assert.Equal(t, "installment already fully paid", ConflictError("installment already fully paid").Error())
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", ConflictError("pending payment exists"))
	assert.True(t, errors.Is(err, &Error{Kind: Conflict}))
	assert.False(t, errors.Is(err, &Error{Kind: NotFound}))
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(nil))
}
