package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingURL reports a cipher payload without its inner url field.
	ErrMissingURL = errors.New("cipher payload has no url")
	// ErrNoURL reports a descriptor with neither a url nor a cipher payload.
	ErrNoURL = errors.New("format has no url")
	// ErrNoDecipher reports a ciphered format met without a signature program.
	ErrNoDecipher = errors.New("no signature program available")
)

// MalformedCipherPayloadError is returned when a cipher blob cannot be used.
// It is fatal for the affected format only.
type MalformedCipherPayloadError struct {
	Itag    int
	Payload string
	Err     error
}

func (e *MalformedCipherPayloadError) Error() string {
	return fmt.Sprintf("malformed cipher payload (itag=%d): %v", e.Itag, e.Err)
}

func (e *MalformedCipherPayloadError) Unwrap() error {
	return e.Err
}

// SignatureError is returned when a required signature could not be
// deciphered.
type SignatureError struct {
	Itag int
	Err  error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature decipher failed (itag=%d): %v", e.Itag, e.Err)
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}
