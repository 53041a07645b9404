package telegram

import "errors"

// Telegram errors.
var (
	ErrCouldNotParseAddress = errors.New("telegram: could not parse address")
	ErrInvalidTPCI          = errors.New("telegram: invalid TPCI")
	ErrInvalidAPDU          = errors.New("telegram: invalid APDU")
)
