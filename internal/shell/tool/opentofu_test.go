package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Output Parsing Tests
// =============================================================================

func TestParseOutputs_StringValues(t *testing.T) {
	data := []byte(`{
		"instance_address": {"sensitive": false, "type": "string", "value": "10.140.190.14"},
		"instance_name":    {"sensitive": false, "type": "string", "value": "torrust-tracker-dev"}
	}`)

	outputs, err := parseOutputs(data)
	require.NoError(t, err)

	assert.Equal(t, "10.140.190.14", outputs["instance_address"])
	assert.Equal(t, "torrust-tracker-dev", outputs["instance_name"])
}

func TestParseOutputs_SkipsNonStringValues(t *testing.T) {
	data := []byte(`{
		"instance_address": {"value": "10.0.0.5"},
		"port_list":        {"value": [6868, 6969]}
	}`)

	outputs, err := parseOutputs(data)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", outputs["instance_address"])
	_, ok := outputs["port_list"]
	assert.False(t, ok)
}

func TestParseOutputs_EmptyDocument(t *testing.T) {
	outputs, err := parseOutputs([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, outputs)
}

func TestParseOutputs_InvalidJSON(t *testing.T) {
	_, err := parseOutputs([]byte(`{not json`))
	assert.Error(t, err)
}
