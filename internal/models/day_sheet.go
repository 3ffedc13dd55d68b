package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DaySheetFormat enumerates supported export formats.
type DaySheetFormat string

const (
	DaySheetFormatCSV DaySheetFormat = "csv"
	DaySheetFormatPDF DaySheetFormat = "pdf"
)

// DaySheetStatus captures background job lifecycle states.
type DaySheetStatus string

const (
	DaySheetStatusQueued     DaySheetStatus = "QUEUED"
	DaySheetStatusProcessing DaySheetStatus = "PROCESSING"
	DaySheetStatusFinished   DaySheetStatus = "FINISHED"
	DaySheetStatusFailed     DaySheetStatus = "FAILED"
)

// DaySheetJob is a persisted background export job. A day sheet is the
// printable roster of a facility's appointments for one calendar day.
type DaySheetJob struct {
	ID           string         `db:"id" json:"id"`
	FacilityID   string         `db:"facility_id" json:"facility_id"`
	Params       DaySheetParams `db:"params" json:"params"`
	Status       DaySheetStatus `db:"status" json:"status"`
	Progress     int            `db:"progress" json:"progress"`
	ResultURL    *string        `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
}

// DaySheetParams stores request-scoped options persisted as JSONB.
type DaySheetParams struct {
	Date              string         `json:"date"`
	AppointmentTypeID *string        `json:"appointmentTypeId,omitempty"`
	Timezone          string         `json:"timezone,omitempty"`
	Format            DaySheetFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p DaySheetParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal day sheet params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *DaySheetParams) Scan(value interface{}) error {
	if value == nil {
		*p = DaySheetParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for DaySheetParams", value)
	}
	if len(data) == 0 {
		*p = DaySheetParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal day sheet params: %w", err)
	}
	return nil
}
