package storage

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	avatars *Avatars
}

func NewHandlers(avatars *Avatars) *Handlers {
	return &Handlers{avatars: avatars}
}

// Download serves GET <prefix>/*.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	content, contentType, err := h.avatars.Load(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}
