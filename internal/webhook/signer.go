// Package webhook implements PayPal-style webhook transmission headers.
//
// PayPal signs with a certificate; the twin signs with a shared secret
// instead so receivers can verify locally:
//
//	PAYPAL-TRANSMISSION-SIG = base64(HMAC-SHA256(secret, "{id}|{time}|{webhook_id}|{crc32(body)}"))
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"hash/crc32"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Header names set on every delivery.
const (
	HeaderTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	HeaderTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
	HeaderTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	HeaderAuthAlgo         = "PAYPAL-AUTH-ALGO"
	HeaderCertURL          = "PAYPAL-CERT-URL"
)

// AuthAlgo is the PAYPAL-AUTH-ALGO value for twin signatures.
const AuthAlgo = "HMACSHA256"

// DefaultCertURL is advertised in PAYPAL-CERT-URL.
const DefaultCertURL = "https://api.sandbox.paypal.com/v1/notifications/certs/CERT-360caa42-fca2a594-twin"

// ErrInvalidSignature is returned by Verify when the headers do not match the body.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// PayPalSigner produces PayPal transmission headers for a webhook ID.
type PayPalSigner struct {
	webhookID string
	certURL   string
	now       func() time.Time
}

// NewPayPalSigner creates a signer for the given webhook ID.
func NewPayPalSigner(webhookID string) *PayPalSigner {
	return &PayPalSigner{webhookID: webhookID, certURL: DefaultCertURL, now: time.Now}
}

// WithClock makes transmission times follow now.
func (s *PayPalSigner) WithClock(now func() time.Time) *PayPalSigner {
	s.now = now
	return s
}

// Sign implements pkg/webhook.Signer.
func (s *PayPalSigner) Sign(payload []byte, secret string) map[string]string {
	return s.SignWithTransmission(payload, secret, uuid.NewString(), s.now())
}

// SignWithTransmission signs with a specific transmission ID and time.
func (s *PayPalSigner) SignWithTransmission(payload []byte, secret, transmissionID string, at time.Time) map[string]string {
	ts := at.UTC().Format(time.RFC3339)
	return map[string]string{
		HeaderTransmissionID:   transmissionID,
		HeaderTransmissionTime: ts,
		HeaderTransmissionSig:  ComputeSignature(transmissionID, ts, s.webhookID, payload, secret),
		HeaderAuthAlgo:         AuthAlgo,
		HeaderCertURL:          s.certURL,
	}
}

// ComputeSignature returns the base64 HMAC over PayPal's expected message
// "{transmission_id}|{transmission_time}|{webhook_id}|{crc32}".
func ComputeSignature(transmissionID, transmissionTime, webhookID string, payload []byte, secret string) string {
	msg := transmissionID + "|" + transmissionTime + "|" + webhookID + "|" + strconv.FormatUint(uint64(crc32.ChecksumIEEE(payload)), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks the transmission headers of a delivery against body.
func Verify(h http.Header, body []byte, webhookID, secret string) error {
	id := h.Get(HeaderTransmissionID)
	ts := h.Get(HeaderTransmissionTime)
	sig := h.Get(HeaderTransmissionSig)
	if id == "" || ts == "" || sig == "" {
		return fmt.Errorf("%w: missing transmission headers", ErrInvalidSignature)
	}
	if algo := h.Get(HeaderAuthAlgo); algo != AuthAlgo {
		return fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidSignature, algo)
	}
	want := ComputeSignature(id, ts, webhookID, body, secret)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return ErrInvalidSignature
	}
	return nil
}
