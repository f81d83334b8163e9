package klyptik

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetVerbose(t *testing.T) {
	t.Cleanup(func() { SetVerbose(false) })

	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	SetVerbose(false)
	require.False(t, Verbose())
	logger.Debug("hidden")
	require.Empty(t, buf.String())

	SetVerbose(true)
	require.True(t, Verbose())
	logger.Debug("shown", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "shown", entry["msg"])
	require.Equal(t, "value", entry["key"])
}
