package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tkgm-sync-service/pkg/gml"
	"tkgm-sync-service/pkg/projection"
)

func TestGeometryGormValue(t *testing.T) {
	t.Run("renders ST_GeomFromText with SRID", func(t *testing.T) {
		g := Geometry{WKT: "POLYGON((0 0,1 0,1 1,0 0))", SRID: 2320}
		expr := g.GormValue(context.Background(), nil)
		assert.Equal(t, "ST_GeomFromText(?, ?)", expr.SQL)
		require.Len(t, expr.Vars, 2)
		assert.Equal(t, g.WKT, expr.Vars[0])
		assert.Equal(t, 2320, expr.Vars[1])
	})

	t.Run("empty WKT renders NULL", func(t *testing.T) {
		g := Geometry{SRID: 2320}
		expr := g.GormValue(context.Background(), nil)
		assert.Equal(t, "NULL", expr.SQL)
		assert.Empty(t, expr.Vars)
	})
}

func TestGeometryScan(t *testing.T) {
	var g Geometry
	require.NoError(t, g.Scan([]byte("0101000020")))
	assert.Equal(t, "0101000020", g.WKT)

	require.NoError(t, g.Scan(nil))
	require.NoError(t, g.Scan("abc"))
	assert.Error(t, g.Scan(42))
}

func TestClassifyError(t *testing.T) {
	_, numErr := strconv.ParseInt("abc", 10, 64)

	tests := []struct {
		name  string
		cause error
		want  string
	}{
		{"transform", &projection.TransformError{X: 200, Reason: "outside source CRS domain"}, "TransformError"},
		{"geometry", &gml.GeometryError{Kind: "Polygon", Reason: "no ring"}, "GeometryError"},
		{"decode", numErr, "DecodeError"},
		{"wrapped decode", errors.Join(errors.New("attribute parselno"), numErr), "DecodeError"},
		{"persist", errors.New("duplicate key value"), "PersistError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.cause))
		})
	}
}
