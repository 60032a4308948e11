package storage

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmhand/marketplace/internal/logging"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func TestStore_PutGetDelete(t *testing.T) {
	store := newStore(t)

	if err := store.Put("avatars", "user-1.png", []byte("img")); err != nil {
		t.Fatalf("put file: %v", err)
	}
	got, err := store.Get("avatars", "user-1.png")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if string(got) != "img" {
		t.Errorf("expected img, got %s", got)
	}

	if err := store.Delete("avatars", "user-1.png"); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if _, err := store.Get("avatars", "user-1.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_List(t *testing.T) {
	store := newStore(t)

	files, err := store.List("empty", "")
	if err != nil || len(files) != 0 {
		t.Fatalf("expected empty listing, got %v %v", files, err)
	}

	store.Put("avatars", "a.png", []byte("1"))
	store.Put("avatars", "b.jpg", []byte("2"))
	files, err = store.List("avatars", "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 || files[0] != "a.png" {
		t.Errorf("expected [a.png], got %v", files)
	}
}

func TestStore_PathTraversal(t *testing.T) {
	store := newStore(t)

	for _, p := range []string{"../etc/passwd", "", "a/../../b"} {
		if err := store.Put("avatars", p, []byte("x")); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
}

func newAvatars(t *testing.T) *Avatars {
	t.Helper()
	a := NewAvatars(newStore(t), "/avatars/", logging.Discard())
	a.now = func() time.Time { return time.Unix(1700000000, 0) }
	return a
}

func TestAvatars_Save(t *testing.T) {
	a := newAvatars(t)

	url, err := a.Save("user-1", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if url != "/avatars/user-1.png?v=1700000000" {
		t.Errorf("unexpected url %s", url)
	}

	content, ct, err := a.Load("user-1.png")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ct != "image/png" || !bytes.Equal(content, pngHeader) {
		t.Errorf("unexpected avatar %q %q", ct, content)
	}
}

func TestAvatars_ReplacesOtherFormat(t *testing.T) {
	a := newAvatars(t)

	if _, err := a.Save("user-1", bytes.NewReader(pngHeader)); err != nil {
		t.Fatalf("save png: %v", err)
	}
	gif := []byte("GIF89a\x01\x00\x01\x00")
	if _, err := a.Save("user-1", bytes.NewReader(gif)); err != nil {
		t.Fatalf("save gif: %v", err)
	}

	files, _ := a.store.List(AvatarNamespace, "user-1")
	if len(files) != 1 || files[0] != "user-1.gif" {
		t.Errorf("expected only user-1.gif, got %v", files)
	}
}

func TestAvatars_ReplaceLeavesOtherUsers(t *testing.T) {
	a := newAvatars(t)

	if _, err := a.Save("user-10", bytes.NewReader(pngHeader)); err != nil {
		t.Fatalf("save user-10: %v", err)
	}
	if _, err := a.Save("user-1", bytes.NewReader(pngHeader)); err != nil {
		t.Fatalf("save user-1: %v", err)
	}
	if _, _, err := a.Load("user-10.png"); err != nil {
		t.Errorf("expected user-10 avatar to survive, got %v", err)
	}
}

func TestAvatars_Rejects(t *testing.T) {
	a := newAvatars(t)

	if _, err := a.Save("user-1", strings.NewReader("plain text")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}

	big := append(append([]byte{}, pngHeader...), make([]byte, MaxAvatarBytes)...)
	if _, err := a.Save("user-1", bytes.NewReader(big)); !errors.Is(err, ErrAvatarTooLarge) {
		t.Errorf("expected ErrAvatarTooLarge, got %v", err)
	}

	if _, err := a.Save("../x", bytes.NewReader(pngHeader)); err == nil {
		t.Error("expected error for bad user id")
	}
}

func TestHandlers_Download(t *testing.T) {
	a := newAvatars(t)
	if _, err := a.Save("user-1", bytes.NewReader(pngHeader)); err != nil {
		t.Fatalf("save: %v", err)
	}

	r := chi.NewRouter()
	r.Get("/avatars/*", NewHandlers(a).Download)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/avatars/user-1.png?v=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/avatars/missing.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
