package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
		SetRedactIDs(true)
	})
	return &buf
}

func TestLog_StructuredFields(t *testing.T) {
	buf := capture(t)

	Info("snapshot loaded", "customers", 42, "version", "abc")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "snapshot loaded", entry["msg"])
	assert.Equal(t, "42", entry["customers"])
	assert.Equal(t, "abc", entry["version"])
	assert.NotEmpty(t, entry["time"])
}

func TestLog_LevelFilter(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	Info("dropped")
	Debug("dropped")
	assert.Zero(t, buf.Len())

	Error("kept")
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}

func TestLog_RedactsCustomerIDs(t *testing.T) {
	buf := capture(t)

	Info("lookup", "customer_id", "CUST-12345", "note", "contact jane.doe@example.com")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "CU***45", entry["customer_id"])
	assert.Equal(t, "contact ja***@example.com", entry["note"])
}

func TestLog_RedactionDisabled(t *testing.T) {
	buf := capture(t)
	SetRedactIDs(false)

	Info("lookup", "customer_id", "CUST-12345")
	assert.Contains(t, buf.String(), "CUST-12345")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" WARN "))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestRedactID(t *testing.T) {
	assert.Equal(t, "CU***45", RedactID("CUST-12345"))
	assert.Equal(t, "***", RedactID("A12"))
	assert.Equal(t, "jo***@example.com", RedactID("john@example.com"))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}
