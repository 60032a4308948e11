package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/farmhand/marketplace/internal/advisory"
	"github.com/farmhand/marketplace/internal/auth"
	"github.com/farmhand/marketplace/internal/job"
	"github.com/farmhand/marketplace/internal/profile"
	"github.com/farmhand/marketplace/internal/storage"
	"github.com/farmhand/marketplace/internal/validate"
)

const version = "0.1.0"

var startTime = time.Now()

type Handlers struct {
	Deps
	log logrus.FieldLogger
}

func NewHandlers(d Deps) *Handlers {
	if d.Rand == nil {
		d.Rand = advisory.DefaultRand
	}
	return &Handlers{Deps: d, log: d.Log.WithField("component", "api")}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"node_id":        h.Config.NodeID,
		"version":        version,
		"mode":           h.Config.Mode(),
		"uptime_seconds": int(time.Since(startTime).Seconds()),
	})
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Jobs.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := map[string]any{
		"node_id":        h.Config.NodeID,
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"jobs": map[string]int{
			"open":        st.Open,
			"in_progress": st.InProgress,
			"completed":   st.Completed,
			"cancelled":   st.Cancelled,
		},
		"applications": map[string]int{
			"pending":  st.Pending,
			"accepted": st.Accepted,
			"rejected": st.Rejected,
		},
	}
	if h.Hub != nil {
		resp["notifications"] = h.Hub.Registry().Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError renders err as {"error": ...}. Server-side failures are
// logged and hidden behind a generic message.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		errorJSON(w, status, "internal server error")
		return
	}
	errorJSON(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case validate.IsValidation(err),
		errors.Is(err, job.ErrInvalidStatus),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, job.ErrNotOwner),
		errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, job.ErrNotFound),
		errors.Is(err, job.ErrApplicationNotFound),
		errors.Is(err, profile.ErrNotFound),
		errors.Is(err, advisory.ErrCropNotFound),
		errors.Is(err, advisory.ErrToolNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, job.ErrJobNotOpen),
		errors.Is(err, job.ErrAlreadyApplied),
		errors.Is(err, job.ErrInvalidTransition),
		errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, storage.ErrAvatarTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	}
	return http.StatusInternalServerError
}

var (
	errBadRequest = errors.New("invalid request body")
	errForbidden  = errors.New("not allowed for this role")
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errBadRequest
	}
	return nil
}
