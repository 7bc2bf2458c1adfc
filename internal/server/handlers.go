package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"loop-planner/internal/engine"
	"loop-planner/internal/logging"
	"loop-planner/internal/routing"
)

const (
	MaxAbsLatitude = 80.0
	MinSteps       = 500
	MaxSteps       = 60000
)

// ErrInvalidInput marks a request rejected before any routing happens.
var ErrInvalidInput = errors.New("invalid input")

// RouteRequest is the POST /route body. Steps may be omitted.
type RouteRequest struct {
	Lat   *float64 `json:"lat" binding:"required"`
	Lng   *float64 `json:"lng" binding:"required"`
	Steps int      `json:"steps"`
}

type zoneView struct {
	Name string   `json:"name"`
	Ring orb.Ring `json:"ring"`
}

// Validate checks coordinates and the step goal. Zero steps selects the
// engine default.
func Validate(lat, lng float64, steps int) error {
	if lat < -MaxAbsLatitude || lat > MaxAbsLatitude {
		return fmt.Errorf("%w: latitude %.6f outside [-%g, %g]", ErrInvalidInput, lat, MaxAbsLatitude, MaxAbsLatitude)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %.6f outside [-180, 180]", ErrInvalidInput, lng)
	}
	if steps != 0 && (steps < MinSteps || steps > MaxSteps) {
		return fmt.Errorf("%w: steps %d outside [%d, %d]", ErrInvalidInput, steps, MinSteps, MaxSteps)
	}
	return nil
}

// StatusFor maps a planner error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, routing.ErrNoRoute):
		return http.StatusNotFound
	case errors.Is(err, routing.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) health(c *gin.Context) {
	count := 0
	if s.zones != nil {
		count = s.zones.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"zones":  count,
	})
}

func (s *Server) listZones(c *gin.Context) {
	views := []zoneView{}
	if s.zones != nil {
		for _, region := range s.zones.Regions() {
			views = append(views, zoneView{Name: region.Name, Ring: region.Ring})
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"zones": views,
		"count": len(views),
	})
}

func (s *Server) route(c *gin.Context) {
	log := logging.FromContext(c.Request.Context(), s.log)

	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := Validate(*req.Lat, *req.Lng, req.Steps); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	steps := req.Steps
	if steps == 0 {
		steps = engine.DefaultSteps
	}

	result, err := s.planner.GenerateRoute(c.Request.Context(), *req.Lat, *req.Lng, steps)
	if err != nil {
		status := StatusFor(err)
		log.WithError(err).WithField("status", status).Warn("Loop generation failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
