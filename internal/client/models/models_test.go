package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLocalID_UniqueAndAttributed(t *testing.T) {
	const device = "dev-123"

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewLocalID(device)
		assert.True(t, strings.HasPrefix(id, device+"-"))
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate local id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewDeviceID_Prefix(t *testing.T) {
	id := NewDeviceID()
	assert.True(t, strings.HasPrefix(id, "dev-"))
	assert.NotEqual(t, id, NewDeviceID())
}
