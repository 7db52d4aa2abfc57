package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gardenlab/pestnet-go/internal/datastore"
	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/logger"
)

var errHistoryDisabled = echo.NewHTTPError(http.StatusNotFound, "Detection history is disabled")

// listDetections handles GET /api/v1/detections?page=&limit=.
func (s *Server) listDetections(c echo.Context) error {
	if s.dataStore == nil {
		return errHistoryDisabled
	}
	page, err := intQuery(c, "page")
	if err != nil {
		return err
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return err
	}
	page, limit = datastore.NormalizePage(page, limit)

	rows, total, err := s.dataStore.List(c.Request().Context(), page, limit)
	if err != nil {
		return s.historyError(c, err)
	}

	resp := DetectionListResponse{
		Detections: make([]DetectionResponse, 0, len(rows)),
		Total:      total,
		Page:       page,
		Limit:      limit,
	}
	for i := range rows {
		resp.Detections = append(resp.Detections, newDetectionResponse(&rows[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

// getDetection handles GET /api/v1/detections/:id.
func (s *Server) getDetection(c echo.Context) error {
	if s.dataStore == nil {
		return errHistoryDisabled
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid detection ID"})
	}

	d, err := s.dataStore.Get(c.Request().Context(), uint(id))
	if err != nil {
		return s.historyError(c, err)
	}
	return c.JSON(http.StatusOK, newDetectionResponse(d))
}

// detectionStats handles GET /api/v1/detections/stats.
func (s *Server) detectionStats(c echo.Context) error {
	if s.dataStore == nil {
		return errHistoryDisabled
	}
	stats, err := s.dataStore.Stats(c.Request().Context())
	if err != nil {
		return s.historyError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) historyError(c echo.Context, err error) error {
	if errors.IsNotFound(err) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	}
	s.log.WithContext(c.Request().Context()).Error("detection history query failed", logger.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to query detection history"})
}

// intQuery parses an optional integer query parameter; absent means 0.
func intQuery(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid " + name + " parameter"})
	}
	return v, nil
}
