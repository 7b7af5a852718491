// Package approval authenticates chat action callbacks and applies the
// reviewer's decision to a pending follow-up.
package approval

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ReplayWindow is the maximum allowed distance between the callback
// timestamp and the local clock.
const ReplayWindow = 300 * time.Second

const signatureVersion = "v0"

var (
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrStaleTimestamp     = errors.New("timestamp outside replay window")
	ErrBadSignature       = errors.New("signature mismatch")
)

// Verifier checks the v0 HMAC-SHA256 signature scheme used by chat platform
// callbacks.
type Verifier struct {
	secret []byte
	window time.Duration
	now    func() time.Time
}

// NewVerifier creates a verifier for secret with the default replay window.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		window: ReplayWindow,
		now:    time.Now,
	}
}

// WithClock returns a copy of v that reads the time from now.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	cp := *v
	cp.now = now
	return &cp
}

// Verify reports whether signature authenticates rawBody at timestamp.
func (v *Verifier) Verify(rawBody []byte, timestamp, signature string) bool {
	return v.Check(rawBody, timestamp, signature) == nil
}

// Check is Verify with a reason. The MAC is computed and compared on every
// path so a stale or malformed timestamp costs the same as a bad signature.
// The reason is for server-side logs only.
func (v *Verifier) Check(rawBody []byte, timestamp, signature string) error {
	expected := Sign(v.secret, timestamp, rawBody)
	macOK := hmac.Equal([]byte(expected), []byte(signature))

	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return ErrMalformedTimestamp
	}
	// Compared in whole seconds; a duration would overflow for far-off timestamps.
	nowS := v.now().Unix()
	window := int64(v.window / time.Second)
	if ts < nowS-window || ts > nowS+window {
		return ErrStaleTimestamp
	}
	if !macOK {
		return ErrBadSignature
	}
	return nil
}

// Sign returns the "v0=<hex>" signature for body at timestamp.
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
