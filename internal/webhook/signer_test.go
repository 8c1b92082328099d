package webhook

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sentAt = time.Date(2020, time.December, 17, 3, 44, 39, 0, time.UTC)

func headerOf(m map[string]string) http.Header {
	h := make(http.Header)
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

func TestSignWithTransmission(t *testing.T) {
	s := NewPayPalSigner("WH-TWIN-PAYPAL")
	payload := []byte(`{"id":"WH-1","event_type":"BILLING.PLAN.CREATED"}`)

	headers := s.SignWithTransmission(payload, "secret", "tx-1", sentAt)

	assert.Equal(t, "tx-1", headers[HeaderTransmissionID])
	assert.Equal(t, "2020-12-17T03:44:39Z", headers[HeaderTransmissionTime])
	assert.Equal(t, AuthAlgo, headers[HeaderAuthAlgo])
	assert.Equal(t, DefaultCertURL, headers[HeaderCertURL])
	assert.Equal(t, ComputeSignature("tx-1", "2020-12-17T03:44:39Z", "WH-TWIN-PAYPAL", payload, "secret"), headers[HeaderTransmissionSig])
}

func TestComputeSignatureDependsOnEveryPart(t *testing.T) {
	base := ComputeSignature("tx", "t", "wh", []byte("body"), "secret")

	assert.Equal(t, base, ComputeSignature("tx", "t", "wh", []byte("body"), "secret"))
	assert.NotEqual(t, base, ComputeSignature("tx2", "t", "wh", []byte("body"), "secret"))
	assert.NotEqual(t, base, ComputeSignature("tx", "t2", "wh", []byte("body"), "secret"))
	assert.NotEqual(t, base, ComputeSignature("tx", "t", "wh2", []byte("body"), "secret"))
	assert.NotEqual(t, base, ComputeSignature("tx", "t", "wh", []byte("body2"), "secret"))
	assert.NotEqual(t, base, ComputeSignature("tx", "t", "wh", []byte("body"), "other"))
}

func TestSignUsesClock(t *testing.T) {
	s := NewPayPalSigner("WH-1").WithClock(func() time.Time { return sentAt })

	a := s.Sign([]byte("{}"), "secret")
	b := s.Sign([]byte("{}"), "secret")

	assert.Equal(t, "2020-12-17T03:44:39Z", a[HeaderTransmissionTime])
	assert.NotEqual(t, a[HeaderTransmissionID], b[HeaderTransmissionID])
}

func TestVerify(t *testing.T) {
	s := NewPayPalSigner("WH-1")
	body := []byte(`{"id":"WH-1"}`)
	h := headerOf(s.Sign(body, "secret"))

	require.NoError(t, Verify(h, body, "WH-1", "secret"))

	assert.ErrorIs(t, Verify(h, []byte(`{"id":"WH-2"}`), "WH-1", "secret"), ErrInvalidSignature)
	assert.ErrorIs(t, Verify(h, body, "WH-other", "secret"), ErrInvalidSignature)
	assert.ErrorIs(t, Verify(h, body, "WH-1", "wrong"), ErrInvalidSignature)

	h.Set(HeaderAuthAlgo, "SHA256withRSA")
	assert.ErrorIs(t, Verify(h, body, "WH-1", "secret"), ErrInvalidSignature)

	err := Verify(http.Header{}, body, "WH-1", "secret")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}
