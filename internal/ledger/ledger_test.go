package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactionMessageCoversAllFields(t *testing.T) {
	tx := &Transaction{
		Source: Address{1},
		Anchor: Anchor{2},
		Transfers: []Transfer{
			{To: Address{3}, Lamports: 100},
			{To: Address{4}, Lamports: 100},
		},
	}
	msg := tx.Message()
	require.Len(t, msg, AddressSize+AnchorSize+2*(AddressSize+8))

	// any field change must change the message
	tx.Anchor = Anchor{9}
	require.NotEqual(t, msg, tx.Message())
	tx.Anchor = Anchor{2}
	tx.Transfers[1].Lamports = 101
	require.NotEqual(t, msg, tx.Message())
}

func TestTransactionClone(t *testing.T) {
	tx := &Transaction{
		Source:    Address{1},
		Transfers: []Transfer{{To: Address{2}, Lamports: 50}},
	}
	cp := tx.Clone()
	require.Equal(t, tx, cp)

	cp.Transfers[0].Lamports = 99
	require.Equal(t, uint64(50), tx.Transfers[0].Lamports, "clone must not alias the original's transfers")
}

func TestRetryable(t *testing.T) {
	require.Nil(t, Retryable(nil))

	base := errors.New("timeout")
	err := Retryable(base)
	require.True(t, IsRetryable(err))
	require.ErrorIs(t, err, base)

	wrapped := fmt.Errorf("get balance: %w", err)
	require.True(t, IsRetryable(wrapped), "retryable must survive wrapping")

	require.False(t, IsRetryable(base))
	require.False(t, IsRetryable(nil))
}
