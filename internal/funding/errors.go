package funding

import "errors"

var (
	// ErrInsufficientFunds means a source balance cannot cover even one
	// destination's reserve plus the transaction fee. This is a
	// configuration problem, never retried.
	ErrInsufficientFunds = errors.New("funding: source balance insufficient to fund a destination")

	// ErrRetriesExhausted is returned when Config.MaxRounds is set and the
	// engine still has unverified entries after that many rounds.
	ErrRetriesExhausted = errors.New("funding: retry rounds exhausted")
)
