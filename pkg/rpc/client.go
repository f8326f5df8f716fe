// Package rpc implements the QUIC ledger client the funding pipeline
// drives. Every request travels on its own bidirectional stream: a kind
// byte, a fixed-width little-endian body, then a status-prefixed reply.
package rpc

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"github.com/eigerco/spray/internal/ledger"
)

// alpnProtocol identifies the spray ledger RPC protocol during the TLS
// handshake.
const alpnProtocol = "spray/0"

// MaxIdleTimeout defines the maximum duration a connection can be idle
// before timing out.
const MaxIdleTimeout = 30 * time.Minute

// Config contains the parameters needed to dial a ledger RPC endpoint.
type Config struct {
	// Addr is the host:port of the ledger RPC endpoint.
	Addr string
	// TLS optionally overrides the TLS client configuration. The ALPN
	// protocol is always forced to the spray protocol.
	TLS *tls.Config
	// Log receives request logging. The zero logger is silent.
	Log zerolog.Logger
}

// Client is a ledger.Client over a single QUIC connection.
type Client struct {
	conn quic.Connection
	log  zerolog.Logger
}

// Dial connects to the ledger RPC endpoint.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	tlsConf := cfg.TLS
	if tlsConf == nil {
		// benchmark deployments run against throwaway test clusters with
		// self-signed certificates
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	tlsConf = tlsConf.Clone()
	tlsConf.NextProtos = []string{alpnProtocol}

	conn, err := quic.DialAddr(ctx, cfg.Addr, tlsConf, &quic.Config{
		MaxIdleTimeout: MaxIdleTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}
	return &Client{conn: conn, log: cfg.Log}, nil
}

// LatestAnchor fetches the most recent confirmation anchor. Transport
// failures are transient: the caller's anchor loop retries them.
func (c *Client) LatestAnchor(ctx context.Context, level ledger.ConfirmationLevel) (ledger.Anchor, error) {
	payload, err := c.roundTrip(ctx, []byte{kindAnchor, byte(level)})
	if err != nil {
		return ledger.Anchor{}, err
	}
	if len(payload) != ledger.AnchorSize {
		return ledger.Anchor{}, ledger.Retryable(fmt.Errorf("anchor response is %d bytes", len(payload)))
	}
	var anchor ledger.Anchor
	copy(anchor[:], payload)
	return anchor, nil
}

// SubmitBatch submits signed transactions. Errors here are fatal by the
// taxonomy: a rejected submission means the batch is structurally wrong,
// not that confirmation is slow.
func (c *Client) SubmitBatch(ctx context.Context, txs []*ledger.Transaction) error {
	start := time.Now()
	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	payload, err := c.exchange(ctx, stream, encodeSubmit(txs))
	if err != nil {
		return err
	}
	if len(payload) != 0 {
		return fmt.Errorf("unexpected %d byte submit response", len(payload))
	}
	c.log.Debug().Int("txs", len(txs)).Dur("took", time.Since(start)).Msg("batch submitted")
	return nil
}

// Balance reports an account's lamports at the given confirmation level.
// Transport failures are transient and fold into the verify retry round.
func (c *Client) Balance(ctx context.Context, addr ledger.Address, level ledger.ConfirmationLevel) (uint64, error) {
	req := make([]byte, 0, 2+ledger.AddressSize)
	req = append(req, kindBalance, byte(level))
	req = append(req, addr[:]...)

	payload, err := c.roundTrip(ctx, req)
	if err != nil {
		return 0, err
	}
	if len(payload) != 8 {
		return 0, ledger.Retryable(fmt.Errorf("balance response is %d bytes", len(payload)))
	}
	return binary.LittleEndian.Uint64(payload), nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.CloseWithError(0, "")
}

// roundTrip runs a lookup request, marking transport failures transient.
func (c *Client) roundTrip(ctx context.Context, req []byte) ([]byte, error) {
	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, ledger.Retryable(fmt.Errorf("open stream: %w", err))
	}
	payload, err := c.exchange(ctx, stream, req)
	if err != nil && !ledger.IsRetryable(err) {
		return nil, ledger.Retryable(err)
	}
	return payload, err
}

// exchange writes one request, half-closes the stream and reads the status
// prefixed reply.
func (c *Client) exchange(ctx context.Context, stream quic.Stream, req []byte) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := stream.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}
	if _, err := stream.Write(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("close write side: %w", err)
	}
	resp, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return decodeResponse(resp)
}
