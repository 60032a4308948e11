package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmhand/marketplace/internal/auth"
	"github.com/farmhand/marketplace/internal/metrics"
	"github.com/farmhand/marketplace/internal/profile"
	"github.com/farmhand/marketplace/internal/validate"
)

func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Auth.SignUp(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	metrics.RecordEvent("signup")
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req auth.SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Auth.SignIn(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.SignOut(r.Context(), tokenFrom(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in user with their stored profile when one exists.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	resp := map[string]any{"user": u}
	if p, err := h.Profiles.Get(r.Context(), u.ID); err == nil {
		resp["profile"] = p
	} else if !errors.Is(err, profile.ErrNotFound) {
		h.log.WithError(err).WithField("user_id", u.ID).Warn("load profile")
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProfile returns the profile merged with its farmer or labourer record.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Profiles.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	switch p.Role {
	case profile.RoleFarmer:
		if f, err := h.Profiles.Farmer(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, profile.FarmerProfile{Profile: *p, FarmerDetails: f.FarmerDetails})
			return
		}
	case profile.RoleLabourer:
		if l, err := h.Profiles.Labourer(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, profile.LabourerProfile{Profile: *p, LabourerDetails: l.LabourerDetails})
			return
		}
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	var upd profile.Update
	if err := decodeJSON(w, r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	upd.AvatarURL = nil // set through the avatar upload only
	upd.UpdatedAt = nil
	if err := validate.Struct(upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Profiles.Update(r.Context(), u.ID, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type locationRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// UpdateLocation reverse-geocodes the coordinates and stores the result on
// the profile.
func (h *Handlers) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	var req locationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	loc := h.Geocoder.Locate(r.Context(), req.Latitude, req.Longitude)
	p, err := profile.UpdateLocation(r.Context(), h.Profiles, u.ID, loc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p, "location": loc})
}

// UploadAvatar takes the raw image as the request body.
func (h *Handlers) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if h.Avatars == nil {
		errorJSON(w, http.StatusNotImplemented, "avatar upload is not enabled")
		return
	}
	u, _ := UserFrom(r.Context())

	url, err := h.Avatars.Save(u.ID, r.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Profiles.Update(r.Context(), u.ID, profile.Update{AvatarURL: &url})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) Notifications(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		errorJSON(w, http.StatusNotImplemented, "notifications are not enabled")
		return
	}
	u, _ := UserFrom(r.Context())
	h.Hub.Serve(w, r, u.ID)
}
