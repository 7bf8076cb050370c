package entity

// District represents one ilceler feature from the TKGM WFS service.
// The natural key for upserts is tapukimlikno.
type District struct {
	FID          int64
	TapuKimlikNo *int64
	IlRef        *int64
	Ad           *string
	Durum        *int64

	GeometryWKT string
}
