package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
)

type createEventRequest struct {
	Project  string       `json:"project" binding:"required"`
	Branch   string       `json:"branch"`
	Analysis string       `json:"analysis" binding:"required"`
	Event    schema.Event `json:"event"`
}

// eventStore returns the store events are edited in, answering 501 when the
// source is read-only.
func (s *Server) eventStore(c *gin.Context) (contract.HistoryStore, bool) {
	if s.src.Events == nil {
		errorJSON(c, http.StatusNotImplemented, fmt.Errorf("source %s does not support event edits", s.src.Kind))
		return nil, false
	}
	return s.src.Events, true
}

func validateEvent(e *schema.Event) error {
	if e.Category == "" {
		e.Category = schema.OtherEvent
	}
	if _, ok := schema.ValidEventCategories[e.Category]; !ok {
		return fmt.Errorf("invalid event category '%s'", e.Category)
	}
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("event name cannot be empty")
	}
	return nil
}

func (s *Server) handleCreateEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := s.eventStore(c)
		if !ok {
			return
		}
		var req createEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		if err := validateEvent(&req.Event); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}

		key := s.projectKey(req.Project, req.Branch)
		event, err := store.AddEvent(c.Request.Context(), key, req.Analysis, req.Event)
		switch {
		case errors.Is(err, contract.ErrAnalysisNotFound):
			errorJSON(c, http.StatusNotFound, err)
			return
		case err != nil:
			errorJSON(c, http.StatusInternalServerError, err)
			return
		}
		s.metrics.EventEditsTotal.WithLabelValues("create").Inc()
		s.logger.Info("Event created", "project", key.String(), "analysis", req.Analysis, "event", event.Key)

		reloaded := s.refreshProject(c.Request.Context(), key)
		c.JSON(http.StatusCreated, gin.H{"event": event, "reloaded": reloaded})
	}
}

func (s *Server) handleDeleteEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := s.eventStore(c)
		if !ok {
			return
		}
		project := c.Query("project")
		if project == "" {
			errorJSON(c, http.StatusBadRequest, errors.New("project query parameter is required"))
			return
		}

		key := s.projectKey(project, c.Query("branch"))
		err := store.DeleteEvent(c.Request.Context(), key, c.Param("key"))
		switch {
		case errors.Is(err, contract.ErrEventNotFound):
			errorJSON(c, http.StatusNotFound, err)
			return
		case err != nil:
			errorJSON(c, http.StatusInternalServerError, err)
			return
		}
		s.metrics.EventEditsTotal.WithLabelValues("delete").Inc()
		s.logger.Info("Event deleted", "project", key.String(), "event", c.Param("key"))

		reloaded := s.refreshProject(c.Request.Context(), key)
		c.JSON(http.StatusOK, gin.H{"reloaded": reloaded})
	}
}

// refreshProject drops cached analyses of key and reloads every session showing it.
// It returns how many sessions were reloaded.
func (s *Server) refreshProject(ctx context.Context, key schema.ProjectKey) int {
	s.src.Forget(key)
	affected := s.sessions.matching(key)
	for _, sess := range affected {
		if err := s.sessions.reload(ctx, sess); err != nil {
			s.logger.Warn("Failed to reload session", "session", sess.id, "project", key.String(), "error", err)
		}
	}
	return len(affected)
}
