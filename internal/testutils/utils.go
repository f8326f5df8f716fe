package testutils

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/spray/internal/keys"
	"github.com/eigerco/spray/internal/ledger"
)

func RandomAddress(t *testing.T) ledger.Address {
	var addr ledger.Address
	_, err := rand.Read(addr[:])
	require.NoError(t, err)
	return addr
}

func RandomAnchor(t *testing.T) ledger.Anchor {
	var anchor ledger.Anchor
	_, err := rand.Read(anchor[:])
	require.NoError(t, err)
	return anchor
}

func RandomSignature(t *testing.T) ledger.Signature {
	var sig ledger.Signature
	_, err := rand.Read(sig[:])
	require.NoError(t, err)
	return sig
}

func RandomSeed(t *testing.T) keys.Seed {
	var seed keys.Seed
	_, err := rand.Read(seed[:])
	require.NoError(t, err)
	return seed
}
