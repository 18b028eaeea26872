// Package storage defines the object storage operations the upload paths need.
// MinioStore writes objects to any S3-compatible provider; S3Presigner signs
// upload URLs that clients use to write to that same provider directly.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dropgate/service/internal/iprange"
)

// ObjectReference identifies one object in the store.
type ObjectReference struct {
	Container string
	Key       string
}

// NewObjectReference returns a reference to a fresh key "<filename>-<uuid>".
func NewObjectReference(container, filename string) ObjectReference {
	return ObjectReference{
		Container: container,
		Key:       fmt.Sprintf("%s-%s", filename, uuid.NewString()),
	}
}

func (r ObjectReference) String() string {
	return r.Container + "/" + r.Key
}

// Permissions is a set of access rights granted by an upload credential.
type Permissions uint8

const (
	PermissionRead Permissions = 1 << iota
	PermissionWrite
	PermissionList
)

// WriteOnly reports whether p grants write and nothing else.
func (p Permissions) WriteOnly() bool {
	return p == PermissionWrite
}

func (p Permissions) String() string {
	s := ""
	if p&PermissionRead != 0 {
		s += "r"
	}
	if p&PermissionWrite != 0 {
		s += "w"
	}
	if p&PermissionList != 0 {
		s += "l"
	}
	return s
}

// UploadPolicy describes what a signed upload URL allows.
type UploadPolicy struct {
	ValidFrom   time.Time
	ValidUntil  time.Time
	Permissions Permissions
	// nil means usable from any address.
	IPRange *iprange.Range
}

// Lifetime is the length of the validity window.
func (p UploadPolicy) Lifetime() time.Duration {
	return p.ValidUntil.Sub(p.ValidFrom)
}

// Signer mints pre-signed upload URLs.
type Signer interface {
	// SignUpload returns a URL granting policy on ref and on nothing else.
	SignUpload(ctx context.Context, ref ObjectReference, policy UploadPolicy) (string, error)
}

// Store is the interface for writing and probing objects.
type Store interface {
	// Exists reports whether an object is already stored under ref.
	Exists(ctx context.Context, ref ObjectReference) (bool, error)
	// Put streams data to the store under ref.
	Put(ctx context.Context, ref ObjectReference, reader io.Reader, size int64, contentType string) error
}
