// Package testutil provides common test utilities for the storefront gateway.
package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Envelope mirrors the gateway's JSON response envelope.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *EnvelopeError  `json:"error"`
}

// EnvelopeError is the error half of the envelope.
type EnvelopeError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// DecodeEnvelope parses the recorded response body as the gateway envelope.
func DecodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()

	var envelope Envelope
	err := json.Unmarshal(rec.Body.Bytes(), &envelope)
	require.NoError(t, err, "Failed to parse response envelope: %s", rec.Body.String())
	return envelope
}

// DecodeData asserts the response succeeded and decodes its data into T.
func DecodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	envelope := DecodeEnvelope(t, rec)
	require.True(t, envelope.Success, "Expected a success envelope, got: %s", rec.Body.String())
	require.Nil(t, envelope.Error, "Expected no error in envelope")

	var data T
	require.NoError(t, json.Unmarshal(envelope.Data, &data), "Failed to decode envelope data")
	return data
}

// AssertErrorCode asserts the response status and envelope error code.
func AssertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()

	assert.Equal(t, wantStatus, rec.Code, "Unexpected status code: %s", rec.Body.String())

	envelope := DecodeEnvelope(t, rec)
	assert.False(t, envelope.Success, "Expected a failed envelope")
	require.NotNil(t, envelope.Error, "Expected an error in envelope")
	assert.Equal(t, wantCode, envelope.Error.Code, "error code mismatch")
}
