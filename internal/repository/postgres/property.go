package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hostops/concierge/internal/autoreply"
	"github.com/hostops/concierge/internal/domain"
)

// PropertyRepo implements autoreply.ProfileStore against PostgreSQL.
type PropertyRepo struct{ db *sql.DB }

// NewPropertyRepo creates a Postgres-backed property repository.
func NewPropertyRepo(db *sql.DB) *PropertyRepo { return &PropertyRepo{db: db} }

func (r *PropertyRepo) GetProfile(ctx context.Context, propertyCode string) (*domain.PropertyProfile, error) {
	p := &domain.PropertyProfile{}
	var amenities, metadata []byte
	var rules pq.StringArray

	err := r.db.QueryRowContext(ctx, `
		SELECT id, property_code, group_code, name, locale,
		       COALESCE(checkin_from,''), COALESCE(checkin_until,''), COALESCE(checkout_by,''),
		       COALESCE(address,''), COALESCE(access_guide,''), COALESCE(location_guide,''),
		       COALESCE(space_overview,''), COALESCE(parking_policy,''), COALESCE(pet_policy,''),
		       COALESCE(smoking_policy,''), COALESCE(noise_policy,''),
		       COALESCE(amenities,'{}'), house_rules, COALESCE(metadata,'{}'),
		       active, created_at, updated_at
		FROM property_profiles
		WHERE property_code = $1 AND active = TRUE
	`, propertyCode).Scan(
		&p.ID, &p.PropertyCode, &p.GroupCode, &p.Name, &p.Locale,
		&p.CheckinFrom, &p.CheckinUntil, &p.CheckoutBy,
		&p.Address, &p.AccessGuide, &p.LocationGuide,
		&p.SpaceOverview, &p.ParkingPolicy, &p.PetPolicy,
		&p.SmokingPolicy, &p.NoisePolicy,
		&amenities, &rules, &metadata,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, autoreply.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get property profile: %w", err)
	}

	p.HouseRules = []string(rules)
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &p.Amenities); err != nil {
			return nil, fmt.Errorf("parse amenities: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}
	return p, nil
}

// ResolveListing maps an (OTA, listing id) pair to a property code, using
// the listing mapping table.
func (r *PropertyRepo) ResolveListing(ctx context.Context, ota domain.OTA, listingID string) (*domain.ListingMapping, error) {
	m := &domain.ListingMapping{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, ota, listing_id, property_code, group_code, created_at
		FROM ota_listing_mappings
		WHERE ota = $1 AND listing_id = $2
	`, ota, listingID).Scan(&m.ID, &m.OTA, &m.ListingID, &m.PropertyCode, &m.GroupCode, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, autoreply.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve listing: %w", err)
	}
	return m, nil
}

var _ autoreply.ProfileStore = (*PropertyRepo)(nil)
