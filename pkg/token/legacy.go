package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// LegacySigner implements the older HMAC-signed token flow retained for
// one legacy endpoint family (§1, §4.13), modeled on the two requests
// original_source/src/api.cpp signs directly instead of routing through
// the OAuth bearer token.
type LegacySigner struct {
	secret    string
	sessionID string
}

// NewLegacySigner builds a signer from a shared secret and session id.
// If sessionID is empty, one is minted with google/uuid here, at
// construction; SessionID returns it for persisting onto the Token.
func NewLegacySigner(secret, sessionID string) *LegacySigner {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &LegacySigner{secret: secret, sessionID: sessionID}
}

// SessionID returns the session id this signer is using.
func (l *LegacySigner) SessionID() string { return l.sessionID }

// SignHeader computes the Authorization header value for method+path at
// the given timestamp: "signed <session_id>:<timestamp>:<hex-hmac>"
// where hmac = HMAC-SHA256(secret, method + "\n" + path + "\n" + timestamp).
func (l *LegacySigner) SignHeader(method, path string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(l.secret))
	mac.Write([]byte(method + "\n" + path + "\n" + ts))
	sig := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("signed %s:%s:%s", l.sessionID, ts, sig)
}
