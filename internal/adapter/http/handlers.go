package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/couchcryptid/citizen-alerts-service/internal/chat"
	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/store"
)

type reportRequest struct {
	Type                string           `json:"type"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	Location            *domain.Location `json:"location"`
	LocationDescription string           `json:"locationDescription"`
	Severity            string           `json:"severity"`
	Photos              []domain.Photo   `json:"photos"`
	Anonymity           string           `json:"anonymity"`
	ReporterID          string           `json:"reporterId"`
}

type chatRequest struct {
	Message    string `json:"message" binding:"required"`
	ImageCount int    `json:"imageCount"`
}

func (s *Server) handleListAlerts(c *gin.Context) {
	var f store.Filter

	if raw := c.Query("type"); raw != "" {
		t, ok := domain.ParseAlertType(raw)
		if !ok {
			badRequest(c, "unknown alert type "+strconv.Quote(raw))
			return
		}
		f.Type = t
	}
	f.Text = c.Query("text")

	if raw := c.Query("radiusKm"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r < 0 {
			badRequest(c, "radiusKm must be a non-negative number")
			return
		}
		f.RadiusKm = &r
	}

	center, err := parseCenter(c.Query("lat"), c.Query("lon"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	f.Center = center

	key, err := store.ParseSortKey(c.Query("sort"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, s.service.Query(f, key))
}

func (s *Server) handleGetAlert(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	alert, err := s.service.Get(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (s *Server) handleUpdateAlert(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	var alert domain.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	alert.ID = id
	if err := s.service.UpdateAlert(alert); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (s *Server) handleDeleteAlert(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	if err := s.service.Remove(id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleIncrementReportCount(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	n, err := s.service.IncrementReportCount(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "reportCount": n})
}

func (s *Server) handleFetch(c *gin.Context) {
	isOngoing, err := parseOngoing(c.Query("isOngoing"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.service.Fetch(c.Request.Context(), isOngoing); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.service.Status())
}

func (s *Server) handleSubmitReport(c *gin.Context) {
	var existing *int64
	if raw := c.Query("incidentId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "incidentId must be an integer")
			return
		}
		existing = &id
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	in, err := req.toInput()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	alert, err := s.service.Submit(c.Request.Context(), in, existing)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Status())
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, chat.Respond(req.Message, req.ImageCount))
}

func (r reportRequest) toInput() (domain.UserReportInput, error) {
	in := domain.UserReportInput{
		Title:               r.Title,
		Description:         r.Description,
		Location:            r.Location,
		LocationDescription: r.LocationDescription,
		Photos:              r.Photos,
		Anonymity:           domain.Anonymity(strings.ToLower(r.Anonymity)),
		ReporterID:          r.ReporterID,
	}
	if r.Type != "" {
		t, ok := domain.ParseAlertType(r.Type)
		if !ok {
			return in, errors.New("unknown alert type " + strconv.Quote(r.Type))
		}
		in.Type = t
	}
	if r.Severity != "" {
		sev, ok := domain.ParseSeverity(r.Severity)
		if !ok {
			return in, errors.New("unknown severity " + strconv.Quote(r.Severity))
		}
		in.Severity = sev
	}
	if r.Anonymity != "" && !in.Anonymity.Valid() {
		return in, errors.New("unknown anonymity " + strconv.Quote(r.Anonymity))
	}
	return in, nil
}

// parseCenter returns nil when neither coordinate is given.
func parseCenter(rawLat, rawLon string) (*domain.Location, error) {
	if rawLat == "" && rawLon == "" {
		return nil, nil
	}
	lat, errLat := strconv.ParseFloat(rawLat, 64)
	lon, errLon := strconv.ParseFloat(rawLon, 64)
	if errLat != nil || errLon != nil || !domain.ValidCoordinates(lat, lon) {
		return nil, errors.New("lat and lon must both be valid coordinates")
	}
	return &domain.Location{Latitude: lat, Longitude: lon}, nil
}

// parseOngoing maps "", "any" to no filter.
func parseOngoing(raw string) (*bool, error) {
	switch strings.ToLower(raw) {
	case "", "any":
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New("isOngoing must be true, false or any")
	}
	return &v, nil
}

func alertID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid alert ID format")
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (s *Server) writeError(c *gin.Context, err error) {
	var netErr *domain.NetworkError
	switch {
	case errors.Is(err, domain.ErrInvalidLocation), errors.Is(err, domain.ErrInvalidAlert):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &netErr) && netErr.Kind == domain.NetworkTimeout:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error(), "kind": netErr.Kind})
	case errors.As(err, &netErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "kind": netErr.Kind})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
