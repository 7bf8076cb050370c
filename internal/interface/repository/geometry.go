package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Geometry wraps a WKT string so writes go through ST_GeomFromText with the
// target SRID. PostGIS returns EWKB hex on reads, which is kept as-is; the
// service never needs to read geometries back.
type Geometry struct {
	WKT  string
	SRID int
}

// GormValue renders the geometry as a PostGIS expression
func (g Geometry) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	if g.WKT == "" {
		return clause.Expr{SQL: "NULL"}
	}
	return clause.Expr{
		SQL:  "ST_GeomFromText(?, ?)",
		Vars: []interface{}{g.WKT, g.SRID},
	}
}

// Scan implements sql.Scanner for reads
func (g *Geometry) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
	case []byte:
		g.WKT = string(v)
	case string:
		g.WKT = v
	default:
		return fmt.Errorf("unsupported geometry scan type %T", value)
	}
	return nil
}
