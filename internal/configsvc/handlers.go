package configsvc

import (
	"encoding/json"
	"net/http"
	"strconv"

	"netweave/internal/apperr"
	"netweave/internal/middleware"

	"github.com/gorilla/mux"
)

type HTTP struct{ svc *Service }

func NewHTTP(s *Service) *HTTP { return &HTTP{svc: s} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// templates
	api.HandleFunc("/templates", h.createTemplate).Methods(http.MethodPost)
	api.HandleFunc("/templates", h.listTemplates).Methods(http.MethodGet)
	api.HandleFunc("/templates/{id}", h.getTemplate).Methods(http.MethodGet)
	api.HandleFunc("/templates/{id}", h.updateTemplate).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/templates/{id}", h.deleteTemplate).Methods(http.MethodDelete)

	// generated configurations
	api.HandleFunc("/configs/{templateId}/generate", h.generate).Methods(http.MethodPost)
	api.HandleFunc("/configs/{id}/regenerate", h.regenerate).Methods(http.MethodPost)
	api.HandleFunc("/configs/{id}/apply", h.apply).Methods(http.MethodPatch)
	api.HandleFunc("/configs/{id}", h.getConfig).Methods(http.MethodGet)
	api.HandleFunc("/configs/{id}", h.deleteConfig).Methods(http.MethodDelete)
	api.HandleFunc("/configs", h.listConfigs).Methods(http.MethodGet)

	// deployment status
	api.HandleFunc("/configs/{templateId}/deployments/{deploymentId}", h.updateDeployment).
		Methods(http.MethodPatch)
}

func pathID(r *http.Request, name string) uint {
	id, _ := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	return uint(id)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *HTTP) createTemplate(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	var in TemplateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperr.Write(w, apperr.E(apperr.Validation, "invalid json"))
		return
	}
	t, err := h.svc.CreateTemplate(caller, in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *HTTP) listTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := h.svc.ListTemplates(middleware.CallerID(r.Context()))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *HTTP) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTemplate(middleware.CallerID(r.Context()), pathID(r, "id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *HTTP) updateTemplate(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	var in TemplateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperr.Write(w, apperr.E(apperr.Validation, "invalid json"))
		return
	}
	t, err := h.svc.UpdateTemplate(caller, pathID(r, "id"), in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *HTTP) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTemplate(middleware.CallerID(r.Context()), pathID(r, "id")); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) generate(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	var in GenerateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperr.Write(w, apperr.E(apperr.Validation, "invalid json"))
		return
	}
	c, err := h.svc.Generate(caller, pathID(r, "templateId"), in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *HTTP) regenerate(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	var in struct {
		VariableValues map[string]string `json:"variableValues"`
	}
	// Body is optional: regenerate with no overrides re-renders as-is.
	_ = json.NewDecoder(r.Body).Decode(&in)
	c, err := h.svc.Regenerate(caller, pathID(r, "id"), in.VariableValues)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *HTTP) apply(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	var in struct {
		Notes string `json:"notes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	c, err := h.svc.Apply(caller, pathID(r, "id"), in.Notes)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *HTTP) getConfig(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetConfig(middleware.CallerID(r.Context()), pathID(r, "id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *HTTP) deleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteConfig(middleware.CallerID(r.Context()), pathID(r, "id")); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) listConfigs(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	designID, _ := strconv.ParseUint(r.URL.Query().Get("designId"), 10, 64)
	templateID, _ := strconv.ParseUint(r.URL.Query().Get("templateId"), 10, 64)
	out, err := h.svc.ListConfigs(caller, uint(designID), uint(templateID))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTP) updateDeployment(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	var in struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperr.Write(w, apperr.E(apperr.Validation, "invalid json"))
		return
	}
	d, err := h.svc.UpdateDeploymentStatus(caller, pathID(r, "templateId"), pathID(r, "deploymentId"), in.Status, in.Notes)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
