package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/activity/core"
	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

type createSessionRequest struct {
	Project string            `json:"project" binding:"required"`
	Branch  string            `json:"branch"`
	Spec    *schema.GraphSpec `json:"spec"`
}

type metricRequest struct {
	Metric schema.MetricKey `json:"metric" binding:"required"`
}

type windowRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type zoomRequest struct {
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`
}

type pointerRequest struct {
	X     float64 `json:"x"`
	Graph int     `json:"graph"`
}

type selectDateRequest struct {
	Date string `json:"date" binding:"required"`
}

// sessionResponse is a session's read model. Applied is set by transitions and
// tells whether the transition changed anything.
type sessionResponse struct {
	ID      string `json:"id"`
	Applied *bool  `json:"applied,omitempty"`
	schema.GraphResult
}

func errorJSON(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// lookup resolves the :id parameter, answering 404 for unknown sessions.
func (s *Server) lookup(c *gin.Context) (*session, bool) {
	sess, ok := s.sessions.get(c.Param("id"))
	if !ok {
		errorJSON(c, http.StatusNotFound, fmt.Errorf("session %s not found", c.Param("id")))
		return nil, false
	}
	return sess, true
}

func (s *Server) projectKey(project, branch string) schema.ProjectKey {
	if branch == "" {
		branch = s.cfg.Branch
	}
	return schema.ProjectKey{Project: project, Branch: branch}
}

// respond writes the current result of sess.
func respond(c *gin.Context, status int, sess *session, applied *bool) {
	sess.mu.Lock()
	res := sess.result()
	sess.mu.Unlock()
	c.JSON(status, sessionResponse{ID: sess.id, Applied: applied, GraphResult: res})
}

// respondAfterLoad answers 502 when fetching failed. The read model carries the error.
func respondAfterLoad(c *gin.Context, status int, sess *session, err error) {
	if err != nil {
		status = http.StatusBadGateway
	}
	respond(c, status, sess, nil)
}

// transition applies fn to the session composer and publishes the change.
func (s *Server) transition(fn func(c *core.Composer) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookup(c)
		if !ok {
			return
		}
		sess.mu.Lock()
		applied := fn(sess.composer)
		if applied {
			sess.publish()
		}
		sess.mu.Unlock()
		respond(c, http.StatusOK, sess, &applied)
	}
}

func (s *Server) handleGraphs() gin.HandlerFunc {
	return func(c *gin.Context) {
		catalog, err := core.MetricsCatalog(c.Request.Context(), s.store, s.cfg.MaxCustomMetrics)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, catalog)
	}
}

func (s *Server) handleListSessions() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": s.sessions.list()})
	}
}

func (s *Server) handleCreateSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		spec := s.cfg.GraphSpec()
		if req.Spec != nil && !req.Spec.IsZero() {
			spec = *req.Spec
		}

		sess := s.sessions.create(s.projectKey(req.Project, req.Branch), spec)
		s.logger.Info("Session created", "session", sess.id, "project", sess.key.String(), "spec", spec.String())

		// a failed load leaves the session idle; the read model reports why
		err := s.sessions.load(c.Request.Context(), sess)
		if err != nil {
			s.logger.Warn("Failed to load session", "session", sess.id, "error", err)
		}
		respond(c, http.StatusCreated, sess, nil)
	}
}

func (s *Server) handleGetSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookup(c)
		if !ok {
			return
		}
		respond(c, http.StatusOK, sess, nil)
	}
}

func (s *Server) handleDeleteSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.sessions.remove(c.Param("id")) {
			errorJSON(c, http.StatusNotFound, fmt.Errorf("session %s not found", c.Param("id")))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) handleSetSpec() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookup(c)
		if !ok {
			return
		}
		var spec schema.GraphSpec
		if err := c.ShouldBindJSON(&spec); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		if spec.IsZero() {
			errorJSON(c, http.StatusBadRequest, errors.New("graph is required"))
			return
		}
		sess.mu.Lock()
		sess.composer.SetGraphSpec(spec)
		sess.publish()
		sess.mu.Unlock()

		err := s.sessions.loadMissing(c.Request.Context(), sess)
		respondAfterLoad(c, http.StatusOK, sess, err)
	}
}

func (s *Server) handleAddMetric() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookup(c)
		if !ok {
			return
		}
		var req metricRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		sess.mu.Lock()
		err := sess.composer.AddCustomMetric(req.Metric)
		if err == nil {
			sess.publish()
		}
		sess.mu.Unlock()
		if err != nil {
			errorJSON(c, http.StatusConflict, err)
			return
		}

		err = s.sessions.loadMissing(c.Request.Context(), sess)
		respondAfterLoad(c, http.StatusOK, sess, err)
	}
}

func (s *Server) handleRemoveMetric() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookup(c)
		if !ok {
			return
		}
		sess.mu.Lock()
		err := sess.composer.RemoveCustomMetric(schema.MetricKey(c.Param("metric")))
		if err == nil {
			sess.publish()
		}
		sess.mu.Unlock()
		if err != nil {
			errorJSON(c, http.StatusConflict, err)
			return
		}
		respond(c, http.StatusOK, sess, nil)
	}
}

func (s *Server) handleSetWindow() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req windowRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		now := time.Now()
		start, err := contract.ParseDateBound(req.Start, now)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		end, err := contract.ParseDateBound(req.End, now)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		if !start.IsZero() && !end.IsZero() && start.After(end) {
			errorJSON(c, http.StatusBadRequest, errors.New("start must not be after end"))
			return
		}
		w := schema.NewDateWindow(start, end)
		s.transition(func(cp *core.Composer) bool { return cp.SetDateWindow(w) })(c)
	}
}

func (s *Server) handleClearWindow() gin.HandlerFunc {
	return s.transition(func(cp *core.Composer) bool {
		return cp.SetDateWindow(schema.DateWindow{})
	})
}

func (s *Server) handleZoom() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req zoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		s.transition(func(cp *core.Composer) bool { return cp.Zoom(req.X1, req.X2) })(c)
	}
}

func (s *Server) handlePointer() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pointerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		s.transition(func(cp *core.Composer) bool { return cp.PointerMoveOn(req.Graph, req.X) })(c)
	}
}

func (s *Server) handleSelectDate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req selectDateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		date, err := contract.ParseDateBound(req.Date, time.Now())
		if err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		s.transition(func(cp *core.Composer) bool { return cp.SelectDate(date) })(c)
	}
}

func (s *Server) handleGetTooltip() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookup(c)
		if !ok {
			return
		}
		sess.mu.Lock()
		payload := sess.composer.TooltipDetails()
		sess.mu.Unlock()
		if payload == nil {
			errorJSON(c, http.StatusNotFound, errors.New("no point is selected"))
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}

func (s *Server) handleClearTooltip() gin.HandlerFunc {
	return s.transition(func(cp *core.Composer) bool {
		had := cp.Tooltip() != nil
		cp.ClearTooltip()
		return had
	})
}

func (s *Server) handleReload() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookup(c)
		if !ok {
			return
		}
		err := s.sessions.reload(c.Request.Context(), sess)
		respondAfterLoad(c, http.StatusOK, sess, err)
	}
}
