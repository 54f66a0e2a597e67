package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStableAcrossKeyOrder(t *testing.T) {
	a := Fingerprint(1, "POST /companies/1/invoices", []byte(`{"a":1,"b":2}`))
	b := Fingerprint(1, "POST /companies/1/invoices", []byte(`{"b":2,"a":1}`))
	assert.Equal(t, a, b)
}

func TestFingerprintIgnoresWhitespace(t *testing.T) {
	a := Fingerprint(1, "POST /x", []byte(`{"a": 1}`))
	b := Fingerprint(1, "POST /x", []byte(`{"a":1}`))
	assert.Equal(t, a, b)
}

func TestFingerprintVariesByInputs(t *testing.T) {
	base := Fingerprint(1, "POST /x", []byte(`{"a":1}`))

	assert.NotEqual(t, base, Fingerprint(2, "POST /x", []byte(`{"a":1}`)), "tenant changes the fingerprint")
	assert.NotEqual(t, base, Fingerprint(1, "POST /y", []byte(`{"a":1}`)), "route changes the fingerprint")
	assert.NotEqual(t, base, Fingerprint(1, "POST /x", []byte(`{"a":2}`)), "body changes the fingerprint")
}

func TestFingerprintInvalidJSONHashedAsIs(t *testing.T) {
	a := Fingerprint(1, "POST /x", []byte(`not-json`))
	b := Fingerprint(1, "POST /x", []byte(`not-json`))
	c := Fingerprint(1, "POST /x", []byte(`not-json-2`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFingerprintEmptyBody(t *testing.T) {
	a := Fingerprint(1, "POST /x/post", nil)
	b := Fingerprint(1, "POST /x/post", []byte{})
	assert.Equal(t, a, b)
}
