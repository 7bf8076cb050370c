package gml

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/pkg/logger"
	"tkgm-sync-service/pkg/projection"
)

// Processor decodes WFS feature collections into typed entities, reprojecting
// geometries through the given transformer.
type Processor struct {
	transformer *projection.Transformer
	logger      logger.Logger
}

// NewProcessor creates a new processor
func NewProcessor(transformer *projection.Transformer, logger logger.Logger) *Processor {
	return &Processor{
		transformer: transformer,
		logger:      logger,
	}
}

// Failure is a feature that could not be decoded, transformed or typed. It
// carries the raw attribute map for the dead-letter store.
type Failure struct {
	EntityType string
	EntityID   string
	Raw        map[string]string
	Err        error
}

// ParcelBatch is the outcome of decoding one page of parseller features.
// Every found feature resolves to exactly one of: decoded, skipped or failed.
type ParcelBatch struct {
	Parcels  []*entity.Parcel
	Found    int
	Skipped  int
	Failures []Failure
}

// DistrictBatch is the outcome of decoding one page of ilceler features.
type DistrictBatch struct {
	Districts []*entity.District
	Found     int
	Skipped   int
	Failures  []Failure
}

// NeighbourhoodBatch is the outcome of decoding one page of mahalleler features.
type NeighbourhoodBatch struct {
	Neighbourhoods []*entity.Neighbourhood
	Found          int
	Skipped        int
	Failures       []Failure
}

// featureMembers parses the response body and returns all gml:featureMember
// elements.
func featureMembers(body []byte) ([]*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("failed to parse WFS XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("failed to parse WFS XML: empty document")
	}
	return findDescendants(root, "featureMember"), nil
}

// layerElements returns the children of a feature member whose tag contains
// the layer keyword, e.g. "parseller".
func layerElements(member *etree.Element, keyword string) []*etree.Element {
	var out []*etree.Element
	for _, child := range member.ChildElements() {
		if strings.Contains(child.Tag, keyword) {
			out = append(out, child)
		}
	}
	return out
}

// rawAttributes copies every scalar child element's text into a tag->value
// map. Unknown tags end up here too; they are simply never looked at.
func rawAttributes(el *etree.Element) map[string]string {
	raw := make(map[string]string)
	for _, child := range el.ChildElements() {
		if len(child.ChildElements()) > 0 {
			continue
		}
		raw[child.Tag] = strings.TrimSpace(child.Text())
	}
	return raw
}

// featureID extracts the numeric suffix after the last '.' of the fid
// attribute. A missing or malformed fid means the feature has no identity and
// is skipped.
func featureID(el *etree.Element) (int64, bool) {
	fid := el.SelectAttrValue("fid", "")
	idx := strings.LastIndex(fid, ".")
	if idx < 0 || idx == len(fid)-1 {
		return 0, false
	}
	id, err := strconv.ParseInt(fid[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (p *Processor) skippable(err error) bool {
	var geomErr *GeometryError
	return errors.Is(err, ErrNoGeometry) || errors.As(err, &geomErr)
}

// DecodeParcels decodes a parseller feature collection page.
func (p *Processor) DecodeParcels(body []byte) (*ParcelBatch, error) {
	members, err := featureMembers(body)
	if err != nil {
		return nil, err
	}

	batch := &ParcelBatch{}
	for _, member := range members {
		for _, el := range layerElements(member, "parseller") {
			batch.Found++
			raw := rawAttributes(el)

			fid, ok := featureID(el)
			if !ok {
				p.logger.Debug("Parcel without fid, skipping")
				batch.Skipped++
				continue
			}

			geometry, err := p.extractWKT(el)
			if err != nil {
				if p.skippable(err) {
					p.logger.Warn("Parcel without usable geometry, skipping", "fid", fid, "error", err)
					batch.Skipped++
				} else {
					batch.Failures = append(batch.Failures, Failure{
						EntityType: entity.EntityTypeParcel,
						EntityID:   strconv.FormatInt(fid, 10),
						Raw:        raw,
						Err:        err,
					})
				}
				continue
			}

			parcel := &entity.Parcel{FID: fid, GeometryWKT: geometry}
			if err := decodeParcelAttributes(parcel, raw); err != nil {
				batch.Failures = append(batch.Failures, Failure{
					EntityType: entity.EntityTypeParcel,
					EntityID:   strconv.FormatInt(fid, 10),
					Raw:        raw,
					Err:        err,
				})
				continue
			}
			batch.Parcels = append(batch.Parcels, parcel)
		}
	}
	return batch, nil
}

// DecodeDistricts decodes an ilceler feature collection page.
func (p *Processor) DecodeDistricts(body []byte) (*DistrictBatch, error) {
	members, err := featureMembers(body)
	if err != nil {
		return nil, err
	}

	batch := &DistrictBatch{}
	for _, member := range members {
		for _, el := range layerElements(member, "ilceler") {
			batch.Found++
			raw := rawAttributes(el)

			fid, ok := featureID(el)
			if !ok {
				batch.Skipped++
				continue
			}

			geometry, err := p.extractWKT(el)
			if err != nil {
				if p.skippable(err) {
					p.logger.Warn("District without usable geometry, skipping", "fid", fid, "error", err)
					batch.Skipped++
				} else {
					batch.Failures = append(batch.Failures, Failure{
						EntityType: entity.EntityTypeDistrict,
						EntityID:   strconv.FormatInt(fid, 10),
						Raw:        raw,
						Err:        err,
					})
				}
				continue
			}

			district := &entity.District{FID: fid, GeometryWKT: geometry}
			if err := decodeDistrictAttributes(district, raw); err != nil {
				batch.Failures = append(batch.Failures, Failure{
					EntityType: entity.EntityTypeDistrict,
					EntityID:   strconv.FormatInt(fid, 10),
					Raw:        raw,
					Err:        err,
				})
				continue
			}
			batch.Districts = append(batch.Districts, district)
		}
	}
	return batch, nil
}

// DecodeNeighbourhoods decodes a mahalleler feature collection page.
func (p *Processor) DecodeNeighbourhoods(body []byte) (*NeighbourhoodBatch, error) {
	members, err := featureMembers(body)
	if err != nil {
		return nil, err
	}

	batch := &NeighbourhoodBatch{}
	for _, member := range members {
		for _, el := range layerElements(member, "mahalleler") {
			batch.Found++
			raw := rawAttributes(el)

			fid, ok := featureID(el)
			if !ok {
				batch.Skipped++
				continue
			}

			geometry, err := p.extractWKT(el)
			if err != nil {
				if p.skippable(err) {
					p.logger.Warn("Neighbourhood without usable geometry, skipping", "fid", fid, "error", err)
					batch.Skipped++
				} else {
					batch.Failures = append(batch.Failures, Failure{
						EntityType: entity.EntityTypeNeighbourhood,
						EntityID:   strconv.FormatInt(fid, 10),
						Raw:        raw,
						Err:        err,
					})
				}
				continue
			}

			neighbourhood := &entity.Neighbourhood{FID: fid, GeometryWKT: geometry}
			if err := decodeNeighbourhoodAttributes(neighbourhood, raw); err != nil {
				batch.Failures = append(batch.Failures, Failure{
					EntityType: entity.EntityTypeNeighbourhood,
					EntityID:   strconv.FormatInt(fid, 10),
					Raw:        raw,
					Err:        err,
				})
				continue
			}
			batch.Neighbourhoods = append(batch.Neighbourhoods, neighbourhood)
		}
	}
	return batch, nil
}

func decodeParcelAttributes(parcel *entity.Parcel, raw map[string]string) error {
	fields := []error{
		setInt(&parcel.ParselNo, raw, "parselno"),
		setInt(&parcel.AdaNo, raw, "adano"),
		setInt(&parcel.TapuKimlikNo, raw, "tapukimlikno"),
		setString(&parcel.TapuCinsAciklama, raw, "tapucinsaciklama"),
		setInt(&parcel.TapuZeminRef, raw, "tapuzeminref"),
		setInt(&parcel.TapuMahalleRef, raw, "tapumahalleref"),
		setFloat(&parcel.TapuAlan, raw, "tapualan"),
		setFloat(&parcel.KadastroAlan, raw, "kadastroalan"),
		setString(&parcel.Tip, raw, "tip"),
		setString(&parcel.BelirtmeTip, raw, "belirtmetip"),
		setString(&parcel.Durum, raw, "durum"),
		setTime(&parcel.SistemKayitTarihi, raw, "sistemkayittarihi"),
		setTime(&parcel.SistemGuncellemeTarihi, raw, "sistemguncellemetarihi"),
		setInt(&parcel.OnayDurum, raw, "onaydurum"),
		setInt(&parcel.TapuCinsID, raw, "tapucinsid"),
		setString(&parcel.KmDurum, raw, "kmdurum"),
		setString(&parcel.HazineParselDurum, raw, "hazineparseldurum"),
		setString(&parcel.TerkSebep, raw, "terksebep"),
		setString(&parcel.ParselTescilDurum, raw, "parseltescildurum"),
	}
	return errors.Join(fields...)
}

func decodeDistrictAttributes(district *entity.District, raw map[string]string) error {
	return errors.Join(
		setInt(&district.TapuKimlikNo, raw, "tapukimlikno"),
		setInt(&district.IlRef, raw, "ilref"),
		setString(&district.Ad, raw, "ad"),
		setInt(&district.Durum, raw, "durum"),
	)
}

func decodeNeighbourhoodAttributes(neighbourhood *entity.Neighbourhood, raw map[string]string) error {
	return errors.Join(
		setInt(&neighbourhood.TapuKimlikNo, raw, "tapukimlikno"),
		setInt(&neighbourhood.IlceRef, raw, "ilceref"),
		setInt(&neighbourhood.Durum, raw, "durum"),
		setInt(&neighbourhood.Tip, raw, "tip"),
		setString(&neighbourhood.TapuMahalleAd, raw, "tapumahallead"),
		setString(&neighbourhood.KadastroMahalleAd, raw, "kadastromahallead"),
		setTime(&neighbourhood.SistemKayitTarihi, raw, "sistemkayittarihi"),
	)
}

// Known tag absent or empty -> field stays nil; present but malformed -> error.

func setString(dst **string, raw map[string]string, key string) error {
	v, ok := raw[key]
	if !ok || v == "" {
		return nil
	}
	*dst = &v
	return nil
}

func setInt(dst **int64, raw map[string]string, key string) error {
	v, ok := raw[key]
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", key, err)
	}
	*dst = &n
	return nil
}

func setFloat(dst **float64, raw map[string]string, key string) error {
	v, ok := raw[key]
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", key, err)
	}
	*dst = &f
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func setTime(dst **time.Time, raw map[string]string, key string) error {
	v, ok := raw[key]
	if !ok || v == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*dst = &t
			return nil
		}
	}
	return fmt.Errorf("attribute %s: unrecognized timestamp %q", key, v)
}
