package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/mail-dispatcher/pkg/endpoint"
	"github.com/telekom/mail-dispatcher/pkg/worker"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "table": FormatTable, "json": FormatJSON, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteObject(t *testing.T) {
	obj := map[string]int{"count": 3}

	var buf bytes.Buffer
	require.NoError(t, WriteObject(&buf, FormatJSON, obj))
	assert.Equal(t, "{\n  \"count\": 3\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteObject(&buf, FormatYAML, obj))
	assert.Equal(t, "count: 3\n", buf.String())

	assert.Error(t, WriteObject(&buf, FormatTable, obj))
	assert.Error(t, WriteObject(&buf, Format("xml"), obj))
	assert.Error(t, WriteObject(&buf, FormatJSON, func() {}))
}

func TestWriteEndpointTable(t *testing.T) {
	var buf bytes.Buffer
	WriteEndpointTable(&buf, []endpoint.Config{
		{ID: 17, Host: "smtp.example.com", Port: 587, Security: endpoint.SecurityStartTLS, User: "mailer", Database: "db1"},
	})
	out := buf.String()
	assert.Contains(t, out, "HOST")
	assert.Contains(t, out, "smtp.example.com")
	assert.Contains(t, out, "starttls")
	assert.Contains(t, out, "17")
}

func TestWriteWorkerTable(t *testing.T) {
	var buf bytes.Buffer
	WriteWorkerTable(&buf, []worker.Info{
		{ID: 1, Name: "mail dispatch worker", State: "Running", StartedAt: time.Now()},
	})
	out := buf.String()
	assert.Contains(t, out, "mail dispatch worker")
	assert.Contains(t, out, "Running")
	assert.Contains(t, out, "-", "an unset cancellation time renders as a dash")
}
