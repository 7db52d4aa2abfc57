package datastore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gardenlab/pestnet-go/internal/pestnet"
)

// Detection is one successful prediction kept in the history.
type Detection struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UUID             string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	OriginalFilename string    `gorm:"type:varchar(255)" json:"original_filename"`
	PestName         string    `gorm:"type:varchar(64);index;not null" json:"pest_name"`
	Confidence       float64   `json:"confidence"`
	SeverityLevel    string    `gorm:"type:varchar(32)" json:"severity_level"`
	TopPredictions   string    `gorm:"type:text" json:"-"`
	ModelSource      string    `gorm:"type:varchar(255)" json:"model_source"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (d *Detection) BeforeCreate(*gorm.DB) error {
	if d.UUID == "" {
		d.UUID = uuid.NewString()
	}
	return nil
}

// SetTopPredictions stores the ranked labels as JSON.
func (d *Detection) SetTopPredictions(top []pestnet.RankedLabel) error {
	body, err := json.Marshal(top)
	if err != nil {
		return err
	}
	d.TopPredictions = string(body)
	return nil
}

// Predictions decodes the stored ranked labels.
func (d *Detection) Predictions() ([]pestnet.RankedLabel, error) {
	if d.TopPredictions == "" {
		return nil, nil
	}
	var top []pestnet.RankedLabel
	if err := json.Unmarshal([]byte(d.TopPredictions), &top); err != nil {
		return nil, err
	}
	return top, nil
}

// PestCount aggregates detections of one pest.
type PestCount struct {
	PestName          string  `json:"pest_name"`
	Count             int64   `json:"count"`
	AverageConfidence float64 `json:"average_confidence"`
}

// Stats summarises the whole history.
type Stats struct {
	Total       int64       `json:"total"`
	Pests       []PestCount `json:"pests"`
	GeneratedAt time.Time   `json:"generated_at"`
}
