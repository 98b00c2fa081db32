// Package transport is the thin HTTP/WebSocket surface over the Scan
// Controller and Event Bus: a health endpoint, a read-only tool-catalog
// endpoint, scan creation/cancellation/status, and the event-stream
// WebSocket upgrade (spec §6). None of the orchestration semantics live
// here — every handler is a direct pass-through to pkg/scan and
// pkg/events. Modeled on the teacher's cmd/tarsy/main.go router setup and
// pkg/api's handler/server split.
package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redlance/redlance/pkg/events"
	"github.com/redlance/redlance/pkg/models"
	"github.com/redlance/redlance/pkg/scan"
	"github.com/redlance/redlance/pkg/toolbox"
)

// Server owns the Gin engine and its collaborators.
type Server struct {
	engine     *gin.Engine
	controller *scan.Controller
	bus        *events.Bus
	registry   *toolbox.Registry
}

// NewServer builds a Server with every route registered.
func NewServer(controller *scan.Controller, bus *events.Bus, registry *toolbox.Registry) *Server {
	s := &Server{
		engine:     gin.New(),
		controller: controller,
		bus:        bus,
		registry:   registry,
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

// Handler returns the http.Handler to pass to http.Server / gin's Run.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/tools", s.handleToolCatalog)
	s.engine.POST("/scans", s.handleCreateScan)
	s.engine.GET("/scans/:id", s.handleGetScan)
	s.engine.POST("/scans/:id/cancel", s.handleCancelScan)
	s.engine.GET("/scans/:id/events", s.handleEventStream)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type toolDescriptorJSON struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	ArgumentSchema []fieldSchemaJSON `json:"argument_schema"`
}

type fieldSchemaJSON struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

func (s *Server) handleToolCatalog(c *gin.Context) {
	schemas := s.registry.Describe()
	out := make([]toolDescriptorJSON, 0, len(schemas))
	for _, fs := range schemas {
		var fields []fieldSchemaJSON
		for name, param := range fs.Parameters {
			required := false
			for _, r := range fs.Required {
				if r == name {
					required = true
					break
				}
			}
			fields = append(fields, fieldSchemaJSON{Name: name, Type: param.Type, Required: required})
		}
		out = append(out, toolDescriptorJSON{Name: fs.Name, Description: fs.Description, ArgumentSchema: fields})
	}
	c.JSON(http.StatusOK, out)
}

type createScanRequest struct {
	Target    string   `json:"target" binding:"required"`
	Objective string   `json:"objective"`
	Profile   string   `json:"profile"`
	EnableAI  bool     `json:"enable_ai"`
	Tools     []string `json:"tools"`
}

func (s *Server) handleCreateScan(c *gin.Context) {
	var req createScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "invalid_request", "message": err.Error()})
		return
	}
	profile := models.ScanProfile(req.Profile)
	if profile == "" {
		profile = models.ProfileNormal
	}

	scanID, err := s.controller.CreateScan(c.Request.Context(), scan.Request{
		Target:    req.Target,
		Objective: req.Objective,
		Profile:   profile,
		EnableAI:  req.EnableAI,
		Tools:     req.Tools,
	})
	if err != nil {
		if errors.Is(err, scan.ErrInvalidTarget) {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "invalid_target", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"kind": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"scan_id": scanID, "status": models.ScanStatusPending})
}

func (s *Server) handleGetScan(c *gin.Context) {
	st, err := s.controller.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"kind": "not_found", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleCancelScan(c *gin.Context) {
	s.controller.Cancel(c.Param("id"))
	st, err := s.controller.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"kind": "not_found", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": st.Status})
}
