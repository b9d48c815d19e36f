package kucoin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sign returns the base64 HMAC-SHA256 of timestamp+METHOD+path+body under secret.
func Sign(secret, timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignPassphrase re-hashes the API passphrase under secret, as required by
// key version 2 and later.
func SignPassphrase(secret, passphrase string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(passphrase))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Signer produces single-use signed requests for one API key.
type Signer struct {
	Key        string
	Secret     string
	Passphrase string
	KeyVersion int
	// Clock returns the current time in unix milliseconds. Defaults to the local clock.
	Clock func() int64
}

// Ready reports whether all credentials needed for signing are present.
func (s Signer) Ready() bool {
	return s.Key != "" && s.Secret != "" && s.Passphrase != ""
}

// Sign stamps the request with the current time and signs it. Call it
// immediately before transmission: the exchange rejects stale timestamps.
func (s Signer) Sign(method, path, body string) SignedRequest {
	now := time.Now().UnixMilli()
	if s.Clock != nil {
		now = s.Clock()
	}
	ts := strconv.FormatInt(now, 10)
	method = strings.ToUpper(method)

	passphrase := s.Passphrase
	if s.KeyVersion >= 2 {
		passphrase = SignPassphrase(s.Secret, s.Passphrase)
	}
	version := s.KeyVersion
	if version <= 0 {
		version = 1
	}

	return SignedRequest{
		Method:           method,
		Path:             path,
		Body:             body,
		Timestamp:        ts,
		Signature:        Sign(s.Secret, ts, method, path, body),
		PassphraseDigest: passphrase,
		apiKey:           s.Key,
		keyVersion:       strconv.Itoa(version),
	}
}

// SignedRequest is the authenticated form of one outbound call. It never
// holds the API secret; any change to Method, Path or Body invalidates it.
type SignedRequest struct {
	Method           string
	Path             string
	Body             string
	Timestamp        string
	Signature        string
	PassphraseDigest string

	apiKey     string
	keyVersion string
}

// Apply sets the KC-API-* authentication headers on req.
func (r SignedRequest) Apply(req *http.Request) {
	req.Header.Set("KC-API-KEY", r.apiKey)
	req.Header.Set("KC-API-SIGN", r.Signature)
	req.Header.Set("KC-API-TIMESTAMP", r.Timestamp)
	req.Header.Set("KC-API-PASSPHRASE", r.PassphraseDigest)
	req.Header.Set("KC-API-KEY-VERSION", r.keyVersion)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
}

// MarshalZerologObject logs the request without signature or passphrase.
func (r SignedRequest) MarshalZerologObject(e *zerolog.Event) {
	e.Str("method", r.Method).
		Str("path", r.Path).
		Str("timestamp", r.Timestamp).
		Int("body_len", len(r.Body))
}

// String is safe for fmt-style logging.
func (r SignedRequest) String() string {
	return r.Method + " " + r.Path + " @" + r.Timestamp
}
