package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/remotetask/pkg/model"
)

// connectionView is a connection as the API shows it: without its secret.
type connectionView struct {
	Name      string            `json:"name"`
	Service   model.ServiceType `json:"service"`
	Principal string            `json:"principal"`
	Region    string            `json:"region,omitempty"`
	Endpoint  string            `json:"endpoint,omitempty"`
	HasSecret bool              `json:"has_secret"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func viewOf(c *model.Connection) connectionView {
	return connectionView{
		Name:      c.Name,
		Service:   c.Service,
		Principal: c.Principal,
		Region:    c.Region,
		Endpoint:  c.Endpoint,
		HasSecret: c.Secret != "",
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type createConnectionRequest struct {
	Name      string            `json:"name"`
	Service   model.ServiceType `json:"service"`
	Principal string            `json:"principal"`
	Secret    string            `json:"secret"`
	Region    string            `json:"region"`
	Endpoint  string            `json:"endpoint"`
}

func (req createConnectionRequest) validate() []model.FieldError {
	var errs []model.FieldError
	if req.Name == "" {
		errs = append(errs, model.FieldError{Field: "name", Message: "required"})
	}
	if req.Principal == "" {
		errs = append(errs, model.FieldError{Field: "principal", Message: "required"})
	}
	if req.Secret == "" {
		errs = append(errs, model.FieldError{Field: "secret", Message: "required"})
	}
	switch req.Service {
	case model.ServiceSageMaker:
		if req.Region == "" {
			errs = append(errs, model.FieldError{Field: "region", Message: "required for sagemaker connections"})
		}
	case model.ServiceAppService:
		if req.Endpoint == "" {
			errs = append(errs, model.FieldError{Field: "endpoint", Message: "required for appservice connections"})
		}
	default:
		errs = append(errs, model.FieldError{Field: "service", Message: "must be sagemaker or appservice"})
	}
	return errs
}

func (s *Server) storeAvailable(w http.ResponseWriter, reqID string) bool {
	if s.store == nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: "no connection store configured"})
		return false
	}
	return true
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.storeAvailable(w, reqID) {
		return
	}

	conns, err := s.store.ListConnections(r.Context())
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	views := make([]connectionView, 0, len(conns))
	for _, c := range conns {
		views = append(views, viewOf(c))
	}
	respondOK(w, reqID, views)
}

func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.storeAvailable(w, reqID) {
		return
	}

	var req createConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}
	if req.Service == "" {
		req.Service = model.ServiceSageMaker
	}
	if errs := req.validate(); len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid connection", errs...))
		return
	}

	conn := &model.Connection{
		Name:      req.Name,
		Service:   req.Service,
		Principal: req.Principal,
		Secret:    req.Secret,
		Region:    req.Region,
		Endpoint:  req.Endpoint,
	}
	if err := s.store.PutConnection(r.Context(), conn); err != nil {
		respondErr(w, reqID, err)
		return
	}
	s.logger.Info("connection saved", "connection", conn)
	respondCreated(w, reqID, viewOf(conn))
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.storeAvailable(w, reqID) {
		return
	}
	name := chi.URLParam(r, "name")

	conn, err := s.store.GetConnection(r.Context(), name)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if conn == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("connection", name))
		return
	}
	respondOK(w, reqID, viewOf(conn))
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.storeAvailable(w, reqID) {
		return
	}
	name := chi.URLParam(r, "name")

	deleted, err := s.store.DeleteConnection(r.Context(), name)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if !deleted {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("connection", name))
		return
	}
	respondOK(w, reqID, map[string]any{"name": name, "deleted": true})
}
