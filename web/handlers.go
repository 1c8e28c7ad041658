package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mbocsi/kiosk/proto"
	"github.com/mbocsi/kiosk/services"
)

func (s *Server) HandleHome(wr http.ResponseWriter, r *http.Request) {
	http.Redirect(wr, r, "/api/artisans", http.StatusFound)
}

func (s *Server) HandleStatus(wr http.ResponseWriter, r *http.Request) {
	status, err := s.services.Status.GetStatus()
	if err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, map[string]any{
		"status":      status,
		"feedClients": s.feed.Clients(),
	})
}

func (s *Server) HandleArtisans(wr http.ResponseWriter, r *http.Request) {
	artisans, err := s.services.Kiosk.ListArtisans()
	if err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, artisans)
}

func (s *Server) HandleArtisanDetail(wr http.ResponseWriter, r *http.Request) {
	artisan, err := s.services.Kiosk.GetArtisan(chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, artisan)
}

func (s *Server) HandleQuestions(wr http.ResponseWriter, r *http.Request) {
	questions, err := s.services.Kiosk.ListQuestions(chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, questions)
}

// HandlePlayMedia sends the bio or craft command of an artisan card
func (s *Server) HandlePlayMedia(wr http.ResponseWriter, r *http.Request) {
	res, err := s.services.Kiosk.PlayMedia(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "kind"))
	if err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusAccepted, res)
}

func (s *Server) HandleAskQuestion(wr http.ResponseWriter, r *http.Request) {
	res, err := s.services.Kiosk.AskQuestion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "key"))
	if err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusAccepted, res)
}

func (s *Server) HandleTap(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, s.services.Maintenance.Tap())
}

func (s *Server) HandleUnlock(wr http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(wr, r, &req); err != nil {
		s.handleError(wr, err)
		return
	}

	session, err := s.services.Maintenance.Unlock(req.Password)
	if err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, session)
}

func (s *Server) HandleLock(wr http.ResponseWriter, r *http.Request) {
	if err := s.services.Maintenance.Lock(maintenanceToken(r)); err != nil {
		s.handleError(wr, err)
		return
	}
	wr.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleGetEndpoint(wr http.ResponseWriter, r *http.Request) {
	ep, err := s.services.Settings.GetEndpoint()
	if err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, ep)
}

// HandleUpdateEndpoint saves the playback device address
func (s *Server) HandleUpdateEndpoint(wr http.ResponseWriter, r *http.Request) {
	var ep proto.Endpoint
	if err := decodeJSON(wr, r, &ep); err != nil {
		s.handleError(wr, err)
		return
	}
	ep.Host = strings.TrimSpace(ep.Host)
	ep.Port = strings.TrimSpace(ep.Port)

	if err := s.services.Settings.UpdateEndpoint(ep); err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, ep)
}

// HandleSendCommand sends an arbitrary command from the maintenance screen
func (s *Server) HandleSendCommand(wr http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(wr, r, &req); err != nil {
		s.handleError(wr, err)
		return
	}

	res, err := s.services.Kiosk.SendRaw(r.Context(), req.Command)
	if err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusAccepted, res)
}

func (s *Server) HandleDiscover(wr http.ResponseWriter, r *http.Request) {
	devices, err := s.services.Settings.Discover(r.Context())
	if err != nil {
		s.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, devices)
}

func (s *Server) HandleMaintenancePage(wr http.ResponseWriter, r *http.Request) {
	ep, err := s.services.Settings.GetEndpoint()
	if err != nil {
		s.handleError(wr, err)
		return
	}
	s.templates.RenderPage(wr, "maintenance", map[string]any{
		"Endpoint":    ep,
		"TokenHeader": TokenHeader,
		"Rendered":    time.Now().Unix(),
	})
}

// requireMaintenance rejects requests without an unlocked session
func (s *Server) requireMaintenance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		if err := s.services.Maintenance.Authorize(maintenanceToken(r)); err != nil {
			s.handleError(wr, err)
			return
		}
		next.ServeHTTP(wr, r)
	})
}

func maintenanceToken(r *http.Request) string {
	if token := r.Header.Get(TokenHeader); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func decodeJSON(wr http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(wr, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return services.ServiceError{
			Code:    services.ErrCodeInvalidInput,
			Message: "Invalid JSON body",
			Cause:   err,
		}
	}
	return nil
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	if err := json.NewEncoder(wr).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// handleError handles service errors with proper HTTP status codes
func (s *Server) handleError(wr http.ResponseWriter, err error) {
	var serviceErr services.ServiceError
	if !errors.As(err, &serviceErr) {
		slog.Error("Service error", "error", err)
		writeJSON(wr, http.StatusInternalServerError, map[string]string{
			"code":    services.ErrCodeInternal,
			"message": "Internal server error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch serviceErr.Code {
	case services.ErrCodeNotFound:
		status = http.StatusNotFound
	case services.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case services.ErrCodeTimeout:
		status = http.StatusRequestTimeout
	case services.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case services.ErrCodeUnavailable:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		slog.Error("Service error", "code", serviceErr.Code, "error", err)
	} else {
		slog.Debug("Request rejected", "code", serviceErr.Code, "error", err)
	}

	writeJSON(wr, status, map[string]string{
		"code":    serviceErr.Code,
		"message": serviceErr.Message,
	})
}
