package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	AvatarNamespace = "avatars"
	MaxAvatarBytes  = 2 << 20
)

var (
	ErrAvatarTooLarge  = errors.New("avatar exceeds 2 MB")
	ErrUnsupportedType = errors.New("avatar must be a PNG, JPEG, GIF or WebP image")
)

var avatarExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Avatars stores one profile picture per user as avatars/<user><ext> and
// serves them under urlPrefix.
type Avatars struct {
	store     *Store
	urlPrefix string
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewAvatars(store *Store, urlPrefix string, log logrus.FieldLogger) *Avatars {
	return &Avatars{
		store:     store,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		log:       log.WithField("component", "avatars"),
		now:       time.Now,
	}
}

// Save replaces userID's avatar with the image read from r and returns its
// public URL. The URL carries a version so clients refetch after a change.
func (a *Avatars) Save(userID string, r io.Reader) (string, error) {
	if userID == "" || strings.ContainsAny(userID, `/\`) {
		return "", fmt.Errorf("invalid user id: %q", userID)
	}

	content, err := io.ReadAll(io.LimitReader(r, MaxAvatarBytes+1))
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}
	if len(content) > MaxAvatarBytes {
		return "", ErrAvatarTooLarge
	}
	ext, ok := avatarExt[http.DetectContentType(content)]
	if !ok {
		return "", ErrUnsupportedType
	}

	// A user switching from png to jpg would otherwise keep both.
	a.remove(userID)

	name := userID + ext
	if err := a.store.Put(AvatarNamespace, name, content); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	a.log.WithFields(logrus.Fields{"user_id": userID, "bytes": len(content)}).Info("avatar uploaded")
	return fmt.Sprintf("%s/%s?v=%d", a.urlPrefix, name, a.now().Unix()), nil
}

func (a *Avatars) remove(userID string) {
	names, err := a.store.List(AvatarNamespace, userID+".")
	if err != nil {
		a.log.WithError(err).WithField("user_id", userID).Warn("list old avatars")
		return
	}
	for _, name := range names {
		err := a.store.Delete(AvatarNamespace, name)
		if err != nil && !errors.Is(err, ErrNotFound) {
			a.log.WithError(err).WithField("user_id", userID).Warn("remove old avatar")
		}
	}
}

// Load returns the stored image and its content type.
func (a *Avatars) Load(name string) ([]byte, string, error) {
	content, err := a.store.Get(AvatarNamespace, name)
	if err != nil {
		return nil, "", err
	}
	return content, http.DetectContentType(content), nil
}
