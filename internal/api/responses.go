package api

import (
	"time"

	"github.com/gardenlab/pestnet-go/internal/datastore"
	"github.com/gardenlab/pestnet-go/internal/knowledge"
	"github.com/gardenlab/pestnet-go/internal/pestnet"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelSource string `json:"model_source,omitempty"`
	Uptime      string `json:"uptime"`
}

// Prediction is the classifier part of a successful /predict response.
type Prediction struct {
	PestName       string                `json:"pest_name"`
	Confidence     float64               `json:"confidence"`
	SeverityLevel  string                `json:"severity_level"`
	AllPredictions []pestnet.RankedLabel `json:"all_predictions"`
}

// PredictResponse is the body of a successful POST /predict.
type PredictResponse struct {
	Success         bool                `json:"success"`
	Prediction      Prediction          `json:"prediction"`
	PestInfo        knowledge.PestInfo  `json:"pest_info"`
	Recommendations knowledge.Treatment `json:"recommendations"`
	DetectionID     uint                `json:"detection_id,omitempty"`
}

// FailureResponse is returned when preprocessing or inference fails.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ErrorResponse is returned for client errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DetectionResponse is one history entry.
type DetectionResponse struct {
	ID               uint                  `json:"id"`
	UUID             string                `json:"uuid"`
	OriginalFilename string                `json:"original_filename"`
	PestName         string                `json:"pest_name"`
	Confidence       float64               `json:"confidence"`
	SeverityLevel    string                `json:"severity_level"`
	TopPredictions   []pestnet.RankedLabel `json:"top_predictions"`
	ModelSource      string                `json:"model_source,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

// DetectionListResponse is one page of history.
type DetectionListResponse struct {
	Detections []DetectionResponse `json:"detections"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
}

func newDetectionResponse(d *datastore.Detection) DetectionResponse {
	top, err := d.Predictions()
	if err != nil {
		GetLogger().Warn("stored predictions are unreadable")
	}
	if top == nil {
		top = []pestnet.RankedLabel{}
	}
	return DetectionResponse{
		ID:               d.ID,
		UUID:             d.UUID,
		OriginalFilename: d.OriginalFilename,
		PestName:         d.PestName,
		Confidence:       d.Confidence,
		SeverityLevel:    d.SeverityLevel,
		TopPredictions:   top,
		ModelSource:      d.ModelSource,
		CreatedAt:        d.CreatedAt,
	}
}
