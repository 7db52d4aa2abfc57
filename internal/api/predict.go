package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gardenlab/pestnet-go/internal/datastore"
	"github.com/gardenlab/pestnet-go/internal/imageprep"
	"github.com/gardenlab/pestnet-go/internal/logger"
	"github.com/gardenlab/pestnet-go/internal/pestnet"
)

const (
	healthMessage = "Pest Classification Service is running"
	imageField    = "image"
)

func (s *Server) healthCheck(c echo.Context) error {
	resp := HealthResponse{
		Status:      "healthy",
		Message:     healthMessage,
		ModelLoaded: s.handle.Loaded(),
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
	}
	if cl := s.handle.Get(); cl != nil {
		resp.ModelSource = cl.Source()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) predict(c echo.Context) error {
	ctx := c.Request().Context()
	log := s.log.WithContext(ctx)

	fh, err := c.FormFile(imageField)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		// A part with an empty filename is parsed as a plain form value.
		if form := c.Request().MultipartForm; form != nil {
			if _, ok := form.Value[imageField]; ok {
				return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No image selected"})
			}
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No image file provided"})
	}
	if fh.Filename == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No image selected"})
	}

	data, err := s.readUpload(c)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.HTTP.RecordUpload(int64(len(data)))
	}

	input, err := imageprep.Preprocess(data)
	if err != nil {
		log.Warn("image preprocessing failed", logger.String("filename", fh.Filename), logger.Error(err))
		return c.JSON(http.StatusInternalServerError, FailureResponse{Error: err.Error()})
	}

	result, err := s.engine.Predict(ctx, input)
	if err != nil {
		log.Warn("prediction failed", logger.Error(err))
		return c.JSON(http.StatusInternalServerError, FailureResponse{Error: err.Error()})
	}

	resp := PredictResponse{
		Success: true,
		Prediction: Prediction{
			PestName:       result.Label,
			Confidence:     result.Confidence,
			SeverityLevel:  result.Severity,
			AllPredictions: result.Top,
		},
		PestInfo:        s.knowledge.PestInfo(result.Label),
		Recommendations: s.knowledge.Recommendations(result.Label),
	}
	resp.DetectionID = s.recordDetection(c, fh.Filename, result)
	return c.JSON(http.StatusOK, resp)
}

// readUpload reads the image part, refusing anything over the upload limit.
func (s *Server) readUpload(c echo.Context) ([]byte, error) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Cannot read uploaded file")
	}
	defer f.Close()

	limit := s.config.maxUploadBytes()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Cannot read uploaded file")
	}
	if int64(len(data)) > limit {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Image exceeds upload limit")
	}
	return data, nil
}

// recordDetection stores a successful prediction. History is best effort: a
// failure is logged and the prediction is still returned.
func (s *Server) recordDetection(c echo.Context, filename string, result *pestnet.PredictionResult) uint {
	if s.dataStore == nil {
		return 0
	}
	d := &datastore.Detection{
		OriginalFilename: filename,
		PestName:         result.Label,
		Confidence:       result.Confidence,
		SeverityLevel:    result.Severity,
	}
	if cl := s.handle.Get(); cl != nil {
		d.ModelSource = cl.Source()
	}
	if err := d.SetTopPredictions(result.Top); err != nil {
		s.log.Warn("cannot encode predictions", logger.Error(err))
		return 0
	}
	d.UUID = detectionUUID(c)
	if err := s.dataStore.Save(c.Request().Context(), d); err != nil {
		s.log.WithContext(c.Request().Context()).Warn("failed to save detection", logger.Error(err))
		return 0
	}
	return d.ID
}

// detectionUUID returns the request id when the server generated it. Client
// supplied ids can repeat, so those rows get a fresh UUID on insert.
func detectionUUID(c echo.Context) string {
	if c.Request().Header.Get(echo.HeaderXRequestID) != "" {
		return ""
	}
	id := c.Response().Header().Get(echo.HeaderXRequestID)
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}
