// Package auth signs users in: delegated OAuth2 sign-in against an identity
// provider, emailed magic links as a fallback, and bearer tokens for API use.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrBadToken   = errors.New("bad token")
	ErrBadSig     = errors.New("invalid signature")
	ErrExpired    = errors.New("expired")
	ErrBadPayload = errors.New("bad payload")
)

// signer produces "payload.signature" tokens over "field|field|expiry".
type signer struct {
	secret []byte
	now    func() time.Time
}

func (s signer) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s signer) sign(fields []string, exp time.Time) string {
	msg := strings.Join(append(fields, strconv.FormatInt(exp.Unix(), 10)), "|")
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(msg))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	payload := base64.RawURLEncoding.EncodeToString([]byte(msg))
	return payload + "." + sig
}

// decodeURLB64 tries raw (no padding) then padded
func decodeURLB64(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// verify checks the signature and expiry and returns the n signed fields.
func (s signer) verify(token string, n int) ([]string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, ErrBadToken
	}

	raw, err := decodeURLB64(parts[0])
	if err != nil {
		return nil, ErrBadToken
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(raw)
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.TrimRight(parts[1], "="))) {
		return nil, ErrBadSig
	}

	// expiry is always the last field
	cut := strings.LastIndex(string(raw), "|")
	if cut < 0 {
		return nil, ErrBadPayload
	}
	ts, err := strconv.ParseInt(string(raw[cut+1:]), 10, 64)
	if err != nil {
		return nil, ErrBadPayload
	}
	fields := strings.SplitN(string(raw[:cut]), "|", n)
	if len(fields) != n {
		return nil, ErrBadPayload
	}
	if s.clock().After(time.Unix(ts, 0)) {
		return nil, ErrExpired
	}
	return fields, nil
}

// MagicLink issues and checks emailed sign-in links.
type MagicLink struct {
	Secret  []byte
	BaseURL string
	now     func() time.Time
}

func (m MagicLink) signer() signer { return signer{secret: m.Secret, now: m.now} }

// Sign returns a token for email valid until exp.
func (m MagicLink) Sign(email string, exp time.Time) string {
	return m.signer().sign([]string{strings.TrimSpace(email)}, exp)
}

// Verify returns the email a valid token was issued for.
func (m MagicLink) Verify(token string) (string, error) {
	fields, err := m.signer().verify(token, 1)
	if err != nil {
		return "", err
	}
	email := strings.TrimSpace(fields[0])
	if email == "" {
		return "", ErrBadPayload
	}
	return email, nil
}

// URL builds the link that lands on /auth/verify.
func (m MagicLink) URL(email string, ttl time.Duration) string {
	exp := m.signer().clock().Add(ttl)
	tok := m.Sign(email, exp)
	u, _ := url.Parse(m.BaseURL)
	u.Path = "/auth/verify"
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String()
}

// State signs the OAuth2 state parameter so the callback can trust the
// post-login redirect it carries.
type State struct {
	Secret []byte
	now    func() time.Time
}

func (s State) signer() signer { return signer{secret: s.Secret, now: s.now} }

// Sign returns a state value carrying returnTo, valid until exp.
func (s State) Sign(returnTo string, exp time.Time) string {
	return s.signer().sign([]string{returnTo}, exp)
}

// Verify returns the redirect target carried by a valid state.
func (s State) Verify(state string) (string, error) {
	fields, err := s.signer().verify(state, 1)
	if err != nil {
		return "", err
	}
	return fields[0], nil
}
