package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/farmhand/marketplace/internal/advisory"
	"github.com/farmhand/marketplace/internal/dashboard"
	"github.com/farmhand/marketplace/internal/job"
	"github.com/farmhand/marketplace/internal/metrics"
)

// skillsParam accepts ?skills=a,b and repeated ?skills=.
func skillsParam(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["skills"] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func floatParam(r *http.Request, name string) (float64, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, errBadRequest
	}
	return f, true, nil
}

// ListJobs serves the public listing. Without ?status only open jobs are
// shown.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := job.Filter{
		Status:   job.Status(q.Get("status")),
		Location: q.Get("location"),
		Skills:   skillsParam(r),
		Search:   q.Get("search"),
	}
	if f.Status == "" {
		f.Status = job.StatusOpen
	}

	jobs, err := h.Jobs.ListJobs(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	var data job.CreateJobData
	if err := decodeJSON(w, r, &data); err != nil {
		h.writeError(w, r, err)
		return
	}
	j, err := h.Jobs.CreateJob(r.Context(), u.ID, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	metrics.RecordEvent("job_posted")
	writeJSON(w, http.StatusCreated, j)
}

func (h *Handlers) MyJobs(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	jobs, err := h.Jobs.JobsByFarmer(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "total": len(jobs)})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) UpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	j, err := h.Jobs.UpdateJobStatus(r.Context(), u.ID, chi.URLParam(r, "id"), job.Status(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	if err := h.Jobs.DeleteJob(r.Context(), u.ID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) JobApplications(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	apps, err := h.Jobs.ApplicationsForJob(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps, "total": len(apps)})
}

func (h *Handlers) Apply(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	var data job.ApplicationData
	if err := decodeJSON(w, r, &data); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Jobs.ApplyForJob(r.Context(), chi.URLParam(r, "id"), u.ID, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	metrics.RecordEvent("application_submitted")
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handlers) MyApplications(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	apps, err := h.Jobs.ApplicationsByLabourer(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps, "total": len(apps)})
}

func (h *Handlers) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Jobs.UpdateApplicationStatus(r.Context(), u.ID, chi.URLParam(r, "id"), job.ApplicationStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	metrics.RecordEvent("application_" + string(a.Status))
	writeJSON(w, http.StatusOK, a)
}

// NearbyJobs needs ?lat and ?lng; ?radius is in km.
func (h *Handlers) NearbyJobs(w http.ResponseWriter, r *http.Request) {
	lat, okLat, err := floatParam(r, "lat")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	lng, okLng, err := floatParam(r, "lng")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !okLat || !okLng {
		errorJSON(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius, _, err := floatParam(r, "radius")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	jobs, err := advisory.FindNearbyJobs(r.Context(), h.Jobs, h.Rand, lat, lng, radius)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "total": len(jobs)})
}

func (h *Handlers) LoadDashboard(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	view := dashboard.View{
		Search:   r.URL.Query().Get("search"),
		Location: r.URL.Query().Get("location"),
		Skills:   skillsParam(r),
	}
	d := h.Dashboard.Load(r.Context(), dashboard.Viewer{ID: u.ID, Role: u.Role}, view)
	writeJSON(w, http.StatusOK, d)
}
