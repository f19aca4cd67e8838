package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type accountID string

func (a accountID) String() string { return string(a) }

func TestExtractString(t *testing.T) {
	kv := []any{"membership_id", "M1", "requester_id", accountID("I1"), "attempt", 3, "dangling"}

	assert.Equal(t, "M1", ExtractString(kv, "membership_id"))
	assert.Equal(t, "I1", ExtractString(kv, "requester_id"))
	assert.Empty(t, ExtractString(kv, "attempt"))
	assert.Empty(t, ExtractString(kv, "dangling"))
	assert.Empty(t, ExtractString(kv, "missing"))
}

func TestToMap(t *testing.T) {
	kv := []any{"membership_id", "M1", "role", "member", "identity_account_id", "", 42, "x", "step", accountID("create")}

	assert.Equal(t, map[string]string{"role": "member", "step": "create"}, ToMap(kv, "membership_id"))
	assert.Nil(t, ToMap([]any{"membership_id", "M1"}, "membership_id"))
}
