package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsCode(t *testing.T) {
	err := Clone(ErrPreconditionFailed, "no active academic period")
	assert.Equal(t, "no active academic period", err.Message)
	assert.Equal(t, ErrPreconditionFailed.Code, err.Code)
	assert.Equal(t, "precondition failed", ErrPreconditionFailed.Message)
	assert.True(t, errors.Is(fmt.Errorf("run: %w", err), ErrPreconditionFailed))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	base := Clone(ErrConstraintViolation, "room already booked")
	withRoom := WithDetails(base, map[string]any{"room_id": "r1"})
	withBoth := WithDetails(withRoom, map[string]any{"meeting_ids": []string{"m1"}})

	assert.Nil(t, base.Details)
	assert.Len(t, withRoom.Details, 1)
	assert.Equal(t, "r1", withBoth.Details["room_id"])
	assert.Equal(t, []string{"m1"}, withBoth.Details["meeting_ids"])
}
