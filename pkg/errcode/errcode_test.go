package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	wrapped := ErrSendFailed.Wrap(errors.New("deadlock"))

	assert.Equal(t, ErrSendFailed.Code, wrapped.Code)
	assert.Equal(t, "message send failed: deadlock", wrapped.Msg)
	assert.ErrorIs(t, wrapped, ErrSendFailed)
	assert.NotErrorIs(t, wrapped, ErrPullFailed)
	assert.Same(t, ErrSendFailed, ErrSendFailed.Wrap(nil))
}

func TestCode(t *testing.T) {
	assert.Equal(t, 3003, Code(ErrNotChannelMember))
	assert.Equal(t, 3003, Code(fmt.Errorf("join: %w", ErrNotChannelMember)))
	assert.Equal(t, ErrInternalServer.Code, Code(errors.New("boom")))
}

func TestIsPermissionDenied(t *testing.T) {
	assert.True(t, IsPermissionDenied(ErrNoPermission))
	assert.True(t, IsPermissionDenied(fmt.Errorf("mark read: %w", ErrNotChannelMember)))
	assert.True(t, IsPermissionDenied(ErrConvNotFound.Wrap(errors.New("gone"))))
	assert.False(t, IsPermissionDenied(ErrInternalServer))
	assert.False(t, IsPermissionDenied(nil))
}
