package gml

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collectionTemplate = `<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs" xmlns:gml="http://www.opengis.net/gml" xmlns:TKGM="https://cbsservis.tkgm.gov.tr">%s</wfs:FeatureCollection>`

const parcelGeometry = `<TKGM:geometri><gml:MultiPolygon><gml:Polygon><gml:LinearRing><gml:coordinates>30.1,39.2 30.2,39.2 30.2,39.3</gml:coordinates></gml:LinearRing></gml:Polygon></gml:MultiPolygon></TKGM:geometri>`

func parcelMember(fid, attrs string) string {
	return fmt.Sprintf(`<gml:featureMember><TKGM:parseller fid=%q>%s%s</TKGM:parseller></gml:featureMember>`,
		fid, attrs, parcelGeometry)
}

func TestDecodeParcels(t *testing.T) {
	p := newTestProcessor(t)

	t.Run("full feature", func(t *testing.T) {
		body := fmt.Sprintf(collectionTemplate, parcelMember("parseller.12345", `
			<TKGM:parselno>7</TKGM:parselno>
			<TKGM:adano>102</TKGM:adano>
			<TKGM:tapukimlikno>998877</TKGM:tapukimlikno>
			<TKGM:tapuzeminref>5544</TKGM:tapuzeminref>
			<TKGM:tapualan>1250.75</TKGM:tapualan>
			<TKGM:durum>3</TKGM:durum>
			<TKGM:onaydurum>1</TKGM:onaydurum>
			<TKGM:sistemkayittarihi>2024-03-15T10:30:00</TKGM:sistemkayittarihi>`))

		batch, err := p.DecodeParcels([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, 1, batch.Found)
		assert.Equal(t, 0, batch.Skipped)
		assert.Empty(t, batch.Failures)
		require.Len(t, batch.Parcels, 1)

		parcel := batch.Parcels[0]
		assert.Equal(t, int64(12345), parcel.FID)
		require.NotNil(t, parcel.ParselNo)
		assert.Equal(t, int64(7), *parcel.ParselNo)
		require.NotNil(t, parcel.TapuKimlikNo)
		assert.Equal(t, int64(998877), *parcel.TapuKimlikNo)
		require.NotNil(t, parcel.TapuAlan)
		assert.Equal(t, 1250.75, *parcel.TapuAlan)
		require.NotNil(t, parcel.SistemKayitTarihi)
		assert.Equal(t, 2024, parcel.SistemKayitTarihi.Year())
		assert.NotEmpty(t, parcel.GeometryWKT)
		// Absent attributes stay nil.
		assert.Nil(t, parcel.KadastroAlan)
		assert.Nil(t, parcel.TerkSebep)
	})

	t.Run("fid without numeric suffix is skipped", func(t *testing.T) {
		body := fmt.Sprintf(collectionTemplate, parcelMember("parseller", `<TKGM:parselno>1</TKGM:parselno>`))

		batch, err := p.DecodeParcels([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, 1, batch.Found)
		assert.Equal(t, 1, batch.Skipped)
		assert.Empty(t, batch.Parcels)
		assert.Empty(t, batch.Failures)
	})

	t.Run("feature without geometry is skipped", func(t *testing.T) {
		body := fmt.Sprintf(collectionTemplate,
			`<gml:featureMember><TKGM:parseller fid="parseller.77"><TKGM:parselno>1</TKGM:parselno></TKGM:parseller></gml:featureMember>`)

		batch, err := p.DecodeParcels([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, 1, batch.Found)
		assert.Equal(t, 1, batch.Skipped)
		assert.Empty(t, batch.Failures)
	})

	t.Run("malformed attribute routes to failures", func(t *testing.T) {
		body := fmt.Sprintf(collectionTemplate, parcelMember("parseller.88", `<TKGM:parselno>notanumber</TKGM:parselno>`))

		batch, err := p.DecodeParcels([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, 1, batch.Found)
		assert.Empty(t, batch.Parcels)
		require.Len(t, batch.Failures, 1)
		assert.Equal(t, "88", batch.Failures[0].EntityID)
		assert.Equal(t, "notanumber", batch.Failures[0].Raw["parselno"])
	})

	t.Run("mixed page resolves every feature exactly once", func(t *testing.T) {
		body := fmt.Sprintf(collectionTemplate,
			parcelMember("parseller.1", `<TKGM:parselno>1</TKGM:parselno>`)+
				parcelMember("parseller.2", `<TKGM:parselno>bad</TKGM:parselno>`)+
				parcelMember("noid", ``)+
				parcelMember("parseller.3", `<TKGM:parselno>3</TKGM:parselno>`))

		batch, err := p.DecodeParcels([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, 4, batch.Found)
		assert.Len(t, batch.Parcels, 2)
		assert.Equal(t, 1, batch.Skipped)
		assert.Len(t, batch.Failures, 1)
		assert.Equal(t, batch.Found, len(batch.Parcels)+batch.Skipped+len(batch.Failures))
	})

	t.Run("empty collection", func(t *testing.T) {
		body := fmt.Sprintf(collectionTemplate, "")

		batch, err := p.DecodeParcels([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, 0, batch.Found)
	})

	t.Run("unparseable body", func(t *testing.T) {
		_, err := p.DecodeParcels([]byte("<broken"))
		require.Error(t, err)
	})
}

func TestDecodeDistricts(t *testing.T) {
	p := newTestProcessor(t)

	body := fmt.Sprintf(collectionTemplate, `<gml:featureMember><TKGM:ilceler fid="ilceler.501">
		<TKGM:tapukimlikno>501</TKGM:tapukimlikno>
		<TKGM:ilref>6</TKGM:ilref>
		<TKGM:ad>Cankaya</TKGM:ad>
		<TKGM:durum>1</TKGM:durum>
		<TKGM:geometri><gml:MultiPolygon><gml:Polygon><gml:LinearRing><gml:coordinates>32.7,39.8 32.9,39.8 32.9,39.95</gml:coordinates></gml:LinearRing></gml:Polygon></gml:MultiPolygon></TKGM:geometri>
	</TKGM:ilceler></gml:featureMember>`)

	batch, err := p.DecodeDistricts([]byte(body))
	require.NoError(t, err)
	require.Len(t, batch.Districts, 1)

	district := batch.Districts[0]
	assert.Equal(t, int64(501), district.FID)
	require.NotNil(t, district.Ad)
	assert.Equal(t, "Cankaya", *district.Ad)
	require.NotNil(t, district.IlRef)
	assert.Equal(t, int64(6), *district.IlRef)
	assert.NotEmpty(t, district.GeometryWKT)
}

func TestDecodeNeighbourhoods(t *testing.T) {
	p := newTestProcessor(t)

	body := fmt.Sprintf(collectionTemplate, `<gml:featureMember><TKGM:mahalleler fid="mahalleler.9001">
		<TKGM:tapukimlikno>9001</TKGM:tapukimlikno>
		<TKGM:ilceref>501</TKGM:ilceref>
		<TKGM:tip>1</TKGM:tip>
		<TKGM:tapumahallead>Kavaklidere</TKGM:tapumahallead>
		<TKGM:sistemkayittarihi>2019-06-01</TKGM:sistemkayittarihi>
		<TKGM:geometri><gml:MultiPolygon><gml:Polygon><gml:LinearRing><gml:coordinates>32.85,39.9 32.87,39.9 32.87,39.92</gml:coordinates></gml:LinearRing></gml:Polygon></gml:MultiPolygon></TKGM:geometri>
	</TKGM:mahalleler></gml:featureMember>`)

	batch, err := p.DecodeNeighbourhoods([]byte(body))
	require.NoError(t, err)
	require.Len(t, batch.Neighbourhoods, 1)

	neighbourhood := batch.Neighbourhoods[0]
	assert.Equal(t, int64(9001), neighbourhood.FID)
	require.NotNil(t, neighbourhood.TapuMahalleAd)
	assert.Equal(t, "Kavaklidere", *neighbourhood.TapuMahalleAd)
	require.NotNil(t, neighbourhood.SistemKayitTarihi)
	assert.Equal(t, "2019-06-01", neighbourhood.SistemKayitTarihi.Format("2006-01-02"))
}

func TestFeatureID(t *testing.T) {
	tests := []struct {
		fid  string
		want int64
		ok   bool
	}{
		{"parseller.12345", 12345, true},
		{"TKGM.parseller.7", 7, true},
		{"parseller.", 0, false},
		{"parseller", 0, false},
		{"parseller.abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.fid, func(t *testing.T) {
			el := parseElement(t, fmt.Sprintf(`<TKGM:parseller fid=%q/>`, tt.fid))
			got, ok := featureID(el)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
