package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlayerStatus(t *testing.T) {
	p := &Player{Activated: time.Now().Unix()}
	assert.True(t, p.IsActive())
	assert.False(t, p.IsBanned())

	p.Activated = -1
	assert.False(t, p.IsActive())
	assert.True(t, p.IsBanned())

	p.Activated = 0
	assert.False(t, p.IsActive())
	assert.False(t, p.IsBanned())
}

func TestPlayerCanEdit(t *testing.T) {
	assert.True(t, (&Player{}).CanEdit())
	assert.False(t, (&Player{Permissions: PermReadOnly}).CanEdit())
	assert.True(t, (&Player{Permissions: PermReadOnly | PermAdmin}).CanEdit())
}

func TestPlayerTouch(t *testing.T) {
	p := &Player{}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.Touch(now)
	assert.Equal(t, now, p.LastSeen)
}
