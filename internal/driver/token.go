package driver

import "github.com/google/uuid"

// TokenGenerator produces run tokens correlating every step of one
// program instance. Implemented by UUIDv7Generator in production and
// testutil.FixedTokenGenerator in tests.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run tokens. The
// embedded timestamp makes tokens sortable by creation time, which
// helps when reading dispatch journals.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
