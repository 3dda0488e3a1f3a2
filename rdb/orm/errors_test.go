package orm

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPersistFailed(t *testing.T) {
	cause := errors.Wrap(ErrInvalidState, "update an unpersisted entity of table [fruit]")
	err := persistFailed(cause, "forced update of attribute [%s]", "name")
	assert.True(t, errors.Is(err, ErrPersistFailed))
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "forced update of attribute [name]: persist failed: update an unpersisted entity of table [fruit]: invalid state", err.Error())

	again := persistFailed(err, "forced update of table [%s]", "fruit")
	assert.True(t, errors.Is(again, ErrPersistFailed))
	assert.True(t, errors.Is(again, ErrInvalidState))
	assert.Equal(t, "forced update of table [fruit]: "+err.Error(), again.Error())
}
