package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	errInvalid := New(KindValidation, "invalid_amount")

	assert.Equal(t, KindValidation, KindOf(errInvalid))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("add line: %w", errInvalid)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestCodeAndIs(t *testing.T) {
	errConflict := New(KindConflict, "reservation_conflict")
	wrapped := fmt.Errorf("create: %w", errConflict)

	assert.Equal(t, "reservation_conflict", CodeOf(wrapped))
	assert.True(t, Is(wrapped, KindConflict))
	assert.False(t, Is(wrapped, KindNotFound))
	assert.True(t, errors.Is(wrapped, errConflict))
	assert.Equal(t, "internal_error", CodeOf(errors.New("boom")))
}
