package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMapValue(t *testing.T) {
	var nilMap JSONMap
	v, err := nilMap.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)

	v, err = JSONMap{"tag": "comfort-shoes", "count": float64(3)}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":"comfort-shoes","count":3}`, string(v.([]byte)))
}

func TestJSONMapScan(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"brand":"Hoka"}`)))
	assert.Equal(t, "Hoka", m["brand"])

	require.NoError(t, m.Scan(`{"brand":"Nike"}`))
	assert.Equal(t, "Nike", m["brand"])

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)
	assert.NotNil(t, m)

	require.NoError(t, m.Scan([]byte{}))
	assert.Empty(t, m)

	assert.Error(t, m.Scan(42))
}

func TestJSONMapRoundTrip(t *testing.T) {
	in := JSONMap{"severity": "HIGH", "delta_pct": 8.5}
	v, err := in.Value()
	require.NoError(t, err)

	var out JSONMap
	require.NoError(t, out.Scan(v))
	assert.Equal(t, "HIGH", out["severity"])
	assert.Equal(t, 8.5, out["delta_pct"])
}
