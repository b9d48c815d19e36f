package common

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials means a signed call was attempted without API secrets.
	ErrMissingCredentials = errors.New("exchange: API key/secret/passphrase not configured")
	// ErrTransport wraps network failures and undecodable responses.
	ErrTransport = errors.New("exchange: transport error")
	// ErrSymbolNotFound means the venue does not list the symbol.
	ErrSymbolNotFound = errors.New("exchange: symbol not found")
)

// APIError is a well-formed exchange response carrying a non-success code.
// Message is kept verbatim so callers can surface it unchanged.
type APIError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange rejected (code %s): %s", e.Code, e.Message)
}

// TransportError wraps err so that errors.Is(err, ErrTransport) holds.
func TransportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
