package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"
)

const (
	flashCookie = "flash"
	// keeps the encoded cookie well under the 4 KB browsers accept
	maxFlashBytes = 1024
)

// Flasher stores one-shot messages in an HMAC-signed cookie.
type Flasher struct {
	key []byte
}

// NewFlasher derives the signing key from secret with HKDF-SHA256.
func NewFlasher(secret string) (*Flasher, error) {
	if secret == "" {
		return nil, fmt.Errorf("flash: empty secret")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("marginalia flash cookie"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("flash: derive key: %w", err)
	}
	return &Flasher{key: key}, nil
}

// Set replaces any pending message with msg, shortened to maxFlashBytes.
func (f *Flasher) Set(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    f.encode(truncate(msg, maxFlashBytes)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop returns the pending message, if any and if its signature holds,
// and clears the cookie.
func (f *Flasher) Pop(w http.ResponseWriter, r *http.Request) (string, bool) {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return "", false
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	return f.decode(c.Value)
}

// truncate cuts s to at most limit bytes on a rune boundary, marking the cut
// with "...".
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const mark = "..."
	cut := limit - len(mark)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + mark
}

func (f *Flasher) encode(msg string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(msg))
	return payload + "." + base64.RawURLEncoding.EncodeToString(f.sign(payload))
}

func (f *Flasher) decode(v string) (string, bool) {
	payload, sig, ok := strings.Cut(v, ".")
	if !ok {
		return "", false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, f.sign(payload)) {
		return "", false
	}
	msg, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", false
	}
	return string(msg), true
}

func (f *Flasher) sign(payload string) []byte {
	mac := hmac.New(sha256.New, f.key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
