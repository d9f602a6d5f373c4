package designsvc

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

	// designs
	api.HandleFunc("/designs", h.createDesign).Methods(http.MethodPost)
	api.HandleFunc("/designs/{id}", h.getDesign).Methods(http.MethodGet)
	api.HandleFunc("/designs/{id}", h.updateDesign).Methods(http.MethodPut, http.MethodPatch)

	// versions
	api.HandleFunc("/designs/{designId}/versions", h.createVersion).Methods(http.MethodPost)
	api.HandleFunc("/designs/{designId}/versions", h.listVersions).Methods(http.MethodGet)
	api.HandleFunc("/versions/compare", h.compare).Methods(http.MethodGet)
	api.HandleFunc("/versions/{id}/publish", h.publish).Methods(http.MethodPatch)
	api.HandleFunc("/versions/{id}/restore", h.restore).Methods(http.MethodPost)
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

func (h *HTTP) createDesign(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	var in DesignInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperr.Write(w, apperr.E(apperr.Validation, "invalid json"))
		return
	}
	d, err := h.svc.CreateDesign(r.Context(), caller, in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *HTTP) getDesign(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetDesign(r.Context(), middleware.CallerID(r.Context()), pathID(r, "id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *HTTP) updateDesign(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	var in DesignInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperr.Write(w, apperr.E(apperr.Validation, "invalid json"))
		return
	}
	d, err := h.svc.UpdateDesign(r.Context(), caller, pathID(r, "id"), in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *HTTP) createVersion(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	var in CreateVersionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperr.Write(w, apperr.E(apperr.Validation, "invalid json"))
		return
	}
	v, err := h.svc.CreateVersion(r.Context(), caller, pathID(r, "designId"), in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *HTTP) listVersions(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	q := r.URL.Query()
	publishedOnly := q.Get("publishedOnly") == "true"
	limit, _ := strconv.Atoi(q.Get("limit"))
	out, err := h.svc.ListVersions(caller, pathID(r, "designId"), publishedOnly, q.Get("sort"), limit)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTP) compare(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	q := r.URL.Query()
	designID, _ := strconv.ParseUint(q.Get("designId"), 10, 64)
	if designID == 0 {
		apperr.Write(w, apperr.E(apperr.Validation, "designId required"))
		return
	}
	res, err := h.svc.Compare(caller, uint(designID), q.Get("version1"), q.Get("version2"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTP) publish(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Publish(middleware.CallerID(r.Context()), pathID(r, "id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *HTTP) restore(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Restore(r.Context(), middleware.CallerID(r.Context()), pathID(r, "id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
