package rpc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/eigerco/spray/internal/ledger"
)

// Request kinds, sent as the first byte of every stream.
const (
	kindAnchor  byte = 1
	kindSubmit  byte = 2
	kindBalance byte = 3
)

// Response status, the first byte of every reply. Non-ok replies carry a
// length-prefixed error message.
const (
	statusOK        byte = 0
	statusRetryable byte = 1
	statusFatal     byte = 2
)

// appendTransaction encodes a signed transaction as fixed-width fields:
// source, anchor, signature, transfer count, then each transfer.
func appendTransaction(buf []byte, tx *ledger.Transaction) []byte {
	buf = append(buf, tx.Source[:]...)
	buf = append(buf, tx.Anchor[:]...)
	buf = append(buf, tx.Signature[:]...)
	buf = append(buf, byte(len(tx.Transfers)))
	for _, tr := range tx.Transfers {
		buf = append(buf, tr.To[:]...)
		buf = binary.LittleEndian.AppendUint64(buf, tr.Lamports)
	}
	return buf
}

const txFixedLen = ledger.AddressSize + ledger.AnchorSize + ledger.SignatureSize + 1
const transferLen = ledger.AddressSize + 8

// decodeTransaction decodes one transaction from buf and returns the rest.
func decodeTransaction(buf []byte) (*ledger.Transaction, []byte, error) {
	if len(buf) < txFixedLen {
		return nil, nil, fmt.Errorf("transaction truncated: %d bytes", len(buf))
	}
	tx := &ledger.Transaction{}
	copy(tx.Source[:], buf[:ledger.AddressSize])
	buf = buf[ledger.AddressSize:]
	copy(tx.Anchor[:], buf[:ledger.AnchorSize])
	buf = buf[ledger.AnchorSize:]
	copy(tx.Signature[:], buf[:ledger.SignatureSize])
	buf = buf[ledger.SignatureSize:]

	n := int(buf[0])
	buf = buf[1:]
	if n > ledger.MaxTransfersPerTx {
		return nil, nil, fmt.Errorf("transaction carries %d transfers, protocol allows %d", n, ledger.MaxTransfersPerTx)
	}
	if len(buf) < n*transferLen {
		return nil, nil, fmt.Errorf("transfers truncated: %d bytes for %d transfers", len(buf), n)
	}
	if n == 0 {
		return tx, buf, nil
	}
	tx.Transfers = make([]ledger.Transfer, n)
	for i := 0; i < n; i++ {
		copy(tx.Transfers[i].To[:], buf[:ledger.AddressSize])
		tx.Transfers[i].Lamports = binary.LittleEndian.Uint64(buf[ledger.AddressSize:transferLen])
		buf = buf[transferLen:]
	}
	return tx, buf, nil
}

// encodeSubmit frames a batch submission request.
func encodeSubmit(txs []*ledger.Transaction) []byte {
	buf := []byte{kindSubmit}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(txs)))
	for _, tx := range txs {
		buf = appendTransaction(buf, tx)
	}
	return buf
}

// decodeSubmit parses a batch submission request body (everything after the
// kind byte). Exposed for ledger-side handlers.
func decodeSubmit(buf []byte) ([]*ledger.Transaction, error) {
	if len(buf) < 4 {
		return nil, errors.New("submit request truncated")
	}
	count := binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	txs := make([]*ledger.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		tx, rest, err := decodeTransaction(buf)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
		buf = rest
	}
	if len(buf) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after submit request", len(buf))
	}
	return txs, nil
}

// decodeResponse splits a reply into its payload, mapping non-ok statuses
// onto the error taxonomy: retryable replies come back wrapped in
// ledger.RetryableError, fatal replies as plain errors.
func decodeResponse(resp []byte) ([]byte, error) {
	if len(resp) == 0 {
		return nil, errors.New("empty response")
	}
	status, payload := resp[0], resp[1:]
	switch status {
	case statusOK:
		return payload, nil
	case statusRetryable:
		return nil, ledger.Retryable(errors.New(decodeErrMsg(payload)))
	case statusFatal:
		return nil, errors.New(decodeErrMsg(payload))
	default:
		return nil, fmt.Errorf("unknown response status %d", status)
	}
}

func decodeErrMsg(payload []byte) string {
	if len(payload) < 2 {
		return "unspecified"
	}
	n := int(binary.LittleEndian.Uint16(payload))
	payload = payload[2:]
	if n > len(payload) {
		n = len(payload)
	}
	return string(payload[:n])
}
