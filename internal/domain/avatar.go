package domain

import (
	"fmt"
	"path"
	"strings"

	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

// Avatar image limits.
const (
	MaxAvatarBytes = 5 << 20
	DefaultAvatar  = "avatar_default.jpg"
)

var allowedAvatarExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// SystemAvatars are the built-in avatars a user can pick instead of uploading.
var SystemAvatars = []string{
	DefaultAvatar,
	"avatar1.jpg",
	"avatar2.jpg",
	"avatar3.jpg",
	"avatar4.jpg",
	"avatar5.jpg",
	"avatar6.jpg",
}

// IsSystemAvatar reports whether key names a built-in avatar.
func IsSystemAvatar(key string) bool {
	for _, a := range SystemAvatars {
		if a == key {
			return true
		}
	}
	return false
}

// UploadedImage is a profile picture supplied by the user.
type UploadedImage struct {
	Filename string
	Size     int64
	Data     []byte
}

// ContentType returns the MIME type implied by the file extension.
func (img UploadedImage) ContentType() string {
	return allowedAvatarExtensions[strings.ToLower(path.Ext(img.Filename))]
}

// Validate enforces the size and extension limits.
func (img UploadedImage) Validate() error {
	if img.Size > MaxAvatarBytes || int64(len(img.Data)) > MaxAvatarBytes {
		return apperrors.InvalidInput("image must be 5 MB or smaller")
	}
	if img.Size == 0 && len(img.Data) == 0 {
		return apperrors.InvalidInput("image is empty")
	}
	if img.ContentType() == "" {
		return apperrors.InvalidInput(fmt.Sprintf("image type %q is not allowed, use jpg, jpeg, png, gif or webp", path.Ext(img.Filename)))
	}
	return nil
}

// AvatarChangeKind tells which variant an AvatarChange holds.
type AvatarChangeKind int

// Avatar change variants.
const (
	AvatarUnchanged AvatarChangeKind = iota
	AvatarUploaded
	AvatarSystem
)

// AvatarChange is what a profile edit asks to do with the avatar: keep it,
// replace it with an uploaded image, or switch to a system avatar.
type AvatarChange struct {
	kind   AvatarChangeKind
	upload UploadedImage
	key    string
}

// KeepAvatar leaves the avatar as it is.
func KeepAvatar() AvatarChange {
	return AvatarChange{kind: AvatarUnchanged}
}

// UploadAvatar replaces the avatar with img.
func UploadAvatar(img UploadedImage) AvatarChange {
	return AvatarChange{kind: AvatarUploaded, upload: img}
}

// ChooseSystemAvatar switches to the built-in avatar key.
func ChooseSystemAvatar(key string) AvatarChange {
	return AvatarChange{kind: AvatarSystem, key: key}
}

// AvatarChangeFromForm picks the variant from edit-form inputs. An upload
// wins over a selected key.
func AvatarChangeFromForm(upload *UploadedImage, selected string) AvatarChange {
	switch {
	case upload != nil:
		return UploadAvatar(*upload)
	case strings.TrimSpace(selected) != "":
		return ChooseSystemAvatar(strings.TrimSpace(selected))
	default:
		return KeepAvatar()
	}
}

// Kind returns the variant.
func (c AvatarChange) Kind() AvatarChangeKind { return c.kind }

// Upload returns the image of an AvatarUploaded change.
func (c AvatarChange) Upload() UploadedImage { return c.upload }

// SystemKey returns the key of an AvatarSystem change.
func (c AvatarChange) SystemKey() string { return c.key }

// Validate checks the payload of the variant.
func (c AvatarChange) Validate() error {
	switch c.kind {
	case AvatarUploaded:
		return c.upload.Validate()
	case AvatarSystem:
		if !IsSystemAvatar(c.key) {
			return apperrors.InvalidInput(fmt.Sprintf("unknown avatar %q", c.key))
		}
	}
	return nil
}

// ApplyAvatar records the outcome of change on the account. storedKey is
// where an uploaded image was saved and is ignored for other variants.
func (a *Account) ApplyAvatar(change AvatarChange, storedKey string) {
	switch change.kind {
	case AvatarUploaded:
		a.ProfilePicture = storedKey
		a.SelectedAvatar = ""
	case AvatarSystem:
		a.SelectedAvatar = change.key
		a.ProfilePicture = ""
	}
}

// ResolveAvatarURL picks the avatar to display: an uploaded picture, then a
// selected system avatar, then the default. An uploaded key is used even if
// the file behind it has gone missing.
func ResolveAvatarURL(profilePicture, selectedAvatar, mediaURL, staticURL string) string {
	switch {
	case profilePicture != "":
		return joinURL(mediaURL, profilePicture)
	case selectedAvatar != "":
		return joinURL(staticURL, "assets/"+selectedAvatar)
	default:
		return joinURL(staticURL, "assets/"+DefaultAvatar)
	}
}

// AvatarURL resolves the account's avatar.
func (a *Account) AvatarURL(mediaURL, staticURL string) string {
	return ResolveAvatarURL(a.ProfilePicture, a.SelectedAvatar, mediaURL, staticURL)
}

func joinURL(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}
