package wire

import "errors"

var (
	errShortBuffer    = errors.New("wire: buffer too short to decode message")
	errUnknownCommand = errors.New("wire: unknown message command")
	errFrameTooLarge  = errors.New("wire: frame exceeds MaxFramePayload")
)
