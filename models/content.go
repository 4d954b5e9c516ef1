package models

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"evalgo.org/sitesync/backend"
)

// Content kinds, as stored in backend records.
const (
	KindText          = "text"
	KindLink          = "link"
	KindComposite     = "composite"
	KindScripted      = "scripted"
	KindLogin         = "login"
	KindLogout        = "logout"
	KindResetPassword = "reset-password"
	KindSocialLogin   = "social-login"
	KindFileServer    = "file-server"
	KindMenu          = "menu"
)

// Content is the contract every content variant implements so the engine can
// treat them alike.
//
// Build produces the data to persist for a new record or a new revision. It
// may look up supporting resources but must not touch the model.
//
// IsModified reports whether the persisted entity differs from the
// declaration. Variants that do not override it are immutable once created.
type Content interface {
	Identifiable
	Base() *ContentBase
	Kind() string
	Build(ctx context.Context, res backend.ResourceLookup, existing *backend.Content) (backend.ContentData, error)
	IsModified(ctx context.Context, res backend.ResourceLookup, entity *backend.Content) (bool, error)
}

// Delegating is implemented by content that owns child content.
type Delegating interface {
	Content
	Delegates() []Delegate
	Removed() []string
}

// Delegate is a child of a composite together with its purpose tag.
type Delegate struct {
	Content Content
	Purpose string
}

// PageLink is a link from content to a page, written once both have a
// backend identity.
type PageLink struct {
	Role string
	Page *Page
}

// Linker is implemented by content carrying page links.
type Linker interface {
	PageLinks() []PageLink
}

// ContentBase holds the attributes common to all content.
type ContentBase struct {
	Node

	// Path makes the content directly addressable (web services)
	Path string

	HTMLID    string
	HTMLClass string

	// Resources are CSS/JS paths the content needs
	Resources []string

	// Visibility is an optional condition controlling when content shows
	Visibility string

	parent ParentRef
}

// Base returns the common attributes.
func (b *ContentBase) Base() *ContentBase {
	return b
}

// Parent returns the structural parent.
func (b *ContentBase) Parent() ParentRef {
	return b.parent
}

// IsModified is the default: content is immutable after creation.
func (b *ContentBase) IsModified(context.Context, backend.ResourceLookup, *backend.Content) (bool, error) {
	return false, nil
}

// data assembles the persisted form of the content and stamps its digest.
func (b *ContentBase) data(kind string, config map[string]string) backend.ContentData {
	d := backend.ContentData{
		Kind:       kind,
		Path:       b.Path,
		HTMLID:     b.HTMLID,
		HTMLClass:  b.HTMLClass,
		Resources:  b.Resources,
		Visibility: b.Visibility,
		Config:     config,
	}
	d.Digest = Digest(d)
	return d
}

// Digest is a blake2b-256 hash of the data without its digest field. Maps
// marshal with sorted keys so equal data hashes equally.
func Digest(d backend.ContentData) string {
	d.Digest = ""
	raw, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// digestModified rebuilds c and compares digests with the stored entity.
func digestModified(ctx context.Context, c Content, res backend.ResourceLookup, entity *backend.Content) (bool, error) {
	d, err := c.Build(ctx, res, entity)
	if err != nil {
		return false, err
	}
	return d.Digest != entity.Digest, nil
}
