package entity

import "time"

// Parcel represents one parseller feature fetched from the TKGM WFS service.
// Every attribute except FID is optional; absent elements decode to nil.
// The natural key for upserts is (tapukimlikno, tapuzeminref).
type Parcel struct {
	FID                    int64
	ParselNo               *int64
	AdaNo                  *int64
	TapuKimlikNo           *int64
	TapuCinsAciklama       *string
	TapuZeminRef           *int64
	TapuMahalleRef         *int64
	TapuAlan               *float64
	KadastroAlan           *float64
	Tip                    *string
	BelirtmeTip            *string
	Durum                  *string
	SistemKayitTarihi      *time.Time
	SistemGuncellemeTarihi *time.Time
	OnayDurum              *int64
	TapuCinsID             *int64
	KmDurum                *string
	HazineParselDurum      *string
	TerkSebep              *string
	ParselTescilDurum      *string

	// GeometryWKT is the reprojected geometry in the target CRS.
	GeometryWKT string
}
