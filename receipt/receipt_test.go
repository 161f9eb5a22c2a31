// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilvote/veilvote/models"
	"github.com/veilvote/veilvote/testutil"
)

func sampleReceipt() models.Receipt {
	return models.Receipt{
		LeafHash:  "ab12cd34",
		PollID:    "poll-1",
		Nullifier: "deadbeef",
		Timestamp: 1756700000,
	}
}

func TestSignAndVerify(t *testing.T) {
	signer, err := NewSigner(testutil.TestReceiptKeyHex)
	require.NoError(t, err)

	r := sampleReceipt()
	require.NoError(t, signer.Sign(&r))
	assert.NotEmpty(t, r.Signature)

	assert.True(t, Verify(r, signer.PublicKeyHex()))
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer, err := NewSigner(testutil.TestReceiptKeyHex)
	require.NoError(t, err)

	base := sampleReceipt()
	require.NoError(t, signer.Sign(&base))
	pub := signer.PublicKeyHex()

	tests := []struct {
		name   string
		mutate func(r *models.Receipt)
	}{
		{"leaf hash changed", func(r *models.Receipt) { r.LeafHash = "ab12cd35" }},
		{"poll changed", func(r *models.Receipt) { r.PollID = "poll-2" }},
		{"nullifier changed", func(r *models.Receipt) { r.Nullifier = "deadbeee" }},
		{"timestamp changed", func(r *models.Receipt) { r.Timestamp++ }},
		{"signature garbage", func(r *models.Receipt) { r.Signature = "zzzz" }},
		{"signature truncated", func(r *models.Receipt) { r.Signature = r.Signature[:8] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			assert.False(t, Verify(r, pub))
		})
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	signer, err := NewSigner(testutil.TestReceiptKeyHex)
	require.NoError(t, err)

	other, err := NewSigner("2222222222222222222222222222222222222222222222222222222222222222")
	require.NoError(t, err)

	r := sampleReceipt()
	require.NoError(t, signer.Sign(&r))

	assert.False(t, Verify(r, other.PublicKeyHex()))
	assert.False(t, Verify(r, "not-hex"))
}

func TestNewSignerRejectsBadKeys(t *testing.T) {
	for _, key := range []string{"", "abcd", "zz", testutil.TestReceiptKeyHex + "11"} {
		_, err := NewSigner(key)
		assert.ErrorIs(t, err, ErrBadKey, "key %q", key)
	}
}
