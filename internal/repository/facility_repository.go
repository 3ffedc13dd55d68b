package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dockwise/dockwise-api/internal/models"
)

// FacilityRepository reads facility and appointment-type records.
type FacilityRepository struct {
	db *sqlx.DB
}

// NewFacilityRepository constructs a FacilityRepository.
func NewFacilityRepository(db *sqlx.DB) *FacilityRepository {
	return &FacilityRepository{db: db}
}

// FindByID fetches an active facility by ID.
func (r *FacilityRepository) FindByID(ctx context.Context, id string) (*models.Facility, error) {
	const query = `SELECT id, name, timezone, active, created_at, updated_at
FROM facilities WHERE id = $1 AND active = true`
	var facility models.Facility
	if err := r.db.GetContext(ctx, &facility, query, id); err != nil {
		return nil, err
	}
	return &facility, nil
}

// FindAppointmentType fetches an active appointment type belonging to the
// facility.
func (r *FacilityRepository) FindAppointmentType(ctx context.Context, facilityID, typeID string) (*models.AppointmentType, error) {
	const query = `SELECT id, facility_id, name, duration_minutes, allow_spanning_break, active, created_at, updated_at
FROM appointment_types WHERE id = $1 AND facility_id = $2 AND active = true`
	var appointmentType models.AppointmentType
	if err := r.db.GetContext(ctx, &appointmentType, query, typeID, facilityID); err != nil {
		return nil, err
	}
	return &appointmentType, nil
}

// ListAppointmentTypes returns the facility's active appointment types.
func (r *FacilityRepository) ListAppointmentTypes(ctx context.Context, facilityID string) ([]models.AppointmentType, error) {
	const query = `SELECT id, facility_id, name, duration_minutes, allow_spanning_break, active, created_at, updated_at
FROM appointment_types WHERE facility_id = $1 AND active = true ORDER BY name ASC`
	var types []models.AppointmentType
	if err := r.db.SelectContext(ctx, &types, query, facilityID); err != nil {
		return nil, fmt.Errorf("list appointment types: %w", err)
	}
	return types, nil
}
