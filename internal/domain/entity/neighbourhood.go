package entity

import "time"

// Neighbourhood represents one mahalleler feature from the TKGM WFS service.
// The natural key for upserts is tapukimlikno.
type Neighbourhood struct {
	FID               int64
	TapuKimlikNo      *int64
	IlceRef           *int64
	Durum             *int64
	Tip               *int64
	TapuMahalleAd     *string
	KadastroMahalleAd *string
	SistemKayitTarihi *time.Time

	GeometryWKT string
}
