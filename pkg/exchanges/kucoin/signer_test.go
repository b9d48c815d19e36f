package kucoin

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignDeterministic(t *testing.T) {
	a := Sign("secret", "1700000000000", "POST", "/api/v1/orders", `{"size":"1"}`)
	b := Sign("secret", "1700000000000", "POST", "/api/v1/orders", `{"size":"1"}`)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestSignMethodIsUppercased(t *testing.T) {
	assert.Equal(t,
		Sign("secret", "1", "POST", "/p", ""),
		Sign("secret", "1", "post", "/p", ""))
}

func TestSignChangesWithEveryInput(t *testing.T) {
	base := []string{"secret", "1700000000000", "GET", "/api/v1/accounts", ""}
	ref := Sign(base[0], base[1], base[2], base[3], base[4])

	mutations := map[string][]string{
		"secret":    {"other", base[1], base[2], base[3], base[4]},
		"timestamp": {base[0], "1700000000001", base[2], base[3], base[4]},
		"method":    {base[0], base[1], "DELETE", base[3], base[4]},
		"path":      {base[0], base[1], base[2], "/api/v1/orders", base[4]},
		"body":      {base[0], base[1], base[2], base[3], "{}"},
	}
	seen := map[string]string{ref: "base"}
	for name, in := range mutations {
		got := Sign(in[0], in[1], in[2], in[3], in[4])
		assert.NotEqual(t, ref, got, name)
		_, dup := seen[got]
		assert.False(t, dup, "collision for %s", name)
		seen[got] = name
	}
}

func TestSignerPassphraseByKeyVersion(t *testing.T) {
	clock := func() int64 { return 1700000000000 }

	v2 := Signer{Key: "k", Secret: "s", Passphrase: "pass", KeyVersion: 2, Clock: clock}.Sign("GET", "/api/v1/accounts", "")
	assert.Equal(t, SignPassphrase("s", "pass"), v2.PassphraseDigest)
	assert.NotEqual(t, "pass", v2.PassphraseDigest)

	v1 := Signer{Key: "k", Secret: "s", Passphrase: "pass", KeyVersion: 1, Clock: clock}.Sign("GET", "/api/v1/accounts", "")
	assert.Equal(t, "pass", v1.PassphraseDigest)
	assert.Equal(t, "1700000000000", v1.Timestamp)
	assert.Equal(t, Sign("s", "1700000000000", "GET", "/api/v1/accounts", ""), v1.Signature)
}

func TestSignedRequestApply(t *testing.T) {
	s := Signer{Key: "key", Secret: "s", Passphrase: "p", KeyVersion: 2, Clock: func() int64 { return 42 }}
	signed := s.Sign("post", "/api/v1/orders", `{"a":1}`)

	req, err := http.NewRequest(http.MethodPost, "http://example.invalid/api/v1/orders", nil)
	require.NoError(t, err)
	signed.Apply(req)

	assert.Equal(t, "key", req.Header.Get("KC-API-KEY"))
	assert.Equal(t, signed.Signature, req.Header.Get("KC-API-SIGN"))
	assert.Equal(t, "42", req.Header.Get("KC-API-TIMESTAMP"))
	assert.Equal(t, signed.PassphraseDigest, req.Header.Get("KC-API-PASSPHRASE"))
	assert.Equal(t, "2", req.Header.Get("KC-API-KEY-VERSION"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestSignedRequestLogOmitsSecrets(t *testing.T) {
	s := Signer{Key: "key", Secret: "topsecret", Passphrase: "phrase", KeyVersion: 1}
	signed := s.Sign("GET", "/api/v1/accounts", "")

	var buf bytes.Buffer
	log := zerolog.New(&buf)
	log.Info().Object("request", signed).Msg("sent")
	log.Info().Stringer("request", signed).Msg("sent")

	out := buf.String()
	assert.Contains(t, out, "/api/v1/accounts")
	assert.NotContains(t, out, signed.Signature)
	assert.NotContains(t, out, "topsecret")
	assert.NotContains(t, out, "phrase")
}

func TestSignerReady(t *testing.T) {
	assert.False(t, Signer{Key: "k", Secret: "s"}.Ready())
	assert.True(t, Signer{Key: "k", Secret: "s", Passphrase: "p"}.Ready())
}
