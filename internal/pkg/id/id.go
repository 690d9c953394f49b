package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. Issued access tokens carry one as their
// jti so individual tokens can be told apart in logs.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
