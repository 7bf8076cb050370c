package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransformer(t *testing.T) {
	t.Run("identity for equal codes", func(t *testing.T) {
		tr, err := NewTransformer(4326, 4326)
		require.NoError(t, err)

		points, err := tr.Transform([]Point{{X: 32.85, Y: 39.93}})
		require.NoError(t, err)
		assert.Equal(t, 32.85, points[0].X)
		assert.Equal(t, 39.93, points[0].Y)
	})

	t.Run("unsupported source CRS", func(t *testing.T) {
		_, err := NewTransformer(99999, 2320)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EPSG:99999")
	})

	t.Run("unsupported target CRS", func(t *testing.T) {
		_, err := NewTransformer(4326, 99999)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EPSG:99999")
	})
}

func TestTransform(t *testing.T) {
	tr, err := NewTransformer(4326, 2320)
	require.NoError(t, err)

	t.Run("reprojects to Gauss-Kruger zone", func(t *testing.T) {
		// On the central meridian the easting sits at the 500km false origin.
		points, err := tr.Transform([]Point{{X: 36.0, Y: 39.0}})
		require.NoError(t, err)
		assert.InDelta(t, 500000, points[0].X, 10000)
		assert.Greater(t, points[0].Y, 4_200_000.0)
		assert.Less(t, points[0].Y, 4_500_000.0)
	})

	t.Run("longitude outside domain fails", func(t *testing.T) {
		_, err := tr.Transform([]Point{{X: 181.0, Y: 39.0}})
		var transformErr *TransformError
		require.ErrorAs(t, err, &transformErr)
		assert.Equal(t, 181.0, transformErr.X)
	})

	t.Run("latitude outside domain fails", func(t *testing.T) {
		_, err := tr.Transform([]Point{{X: 36.0, Y: 90.5}})
		var transformErr *TransformError
		require.ErrorAs(t, err, &transformErr)
	})

	t.Run("one bad point fails the whole call", func(t *testing.T) {
		_, err := tr.Transform([]Point{{X: 36.0, Y: 39.0}, {X: 200.0, Y: 39.0}})
		require.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		points, err := tr.Transform(nil)
		require.NoError(t, err)
		assert.Empty(t, points)
	})
}
