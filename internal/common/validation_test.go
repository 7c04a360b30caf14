package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	good := map[string]struct {
		in   any
		want float64
	}{
		"float":         {95.0, 95},
		"json number":   {json.Number("5.4"), 5.4},
		"string":        {" 110 ", 110},
		"decimal comma": {"5,4", 5.4},
	}
	for name, tc := range good {
		t.Run(name, func(t *testing.T) {
			got, err := ParseNumeric(tc.in)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}

	for _, bad := range []any{"abc", "", nil, true, "NaN", "1,000.5"} {
		_, err := ParseNumeric(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestValidator_CollectsErrors(t *testing.T) {
	v := NewValidator().
		Field("test_name", "  ", Required).
		Field("value", "high", Numeric).
		Field("unit", "mg/dL", MaxLength(3))

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 3)

	err := ValidateAndReturnError(v)
	assert.Equal(t, CodeInvalidInput, ErrorCode(err))
}
