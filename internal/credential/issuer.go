// Package credential computes upload policies and has them signed into
// short-lived, write-only credentials bound to a single object.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dropgate/service/internal/config"
	"github.com/dropgate/service/internal/iprange"
	"github.com/dropgate/service/internal/storage"
)

// ClockSkew is subtracted from the issuance time to tolerate clock drift
// between this service, the client and the storage backend.
const ClockSkew = 5 * time.Minute

// DefaultHours is the credential lifetime used when none is configured.
const DefaultHours = 24

// MaxHours is the longest lifetime the signer can express.
const MaxHours = int(storage.MaxLifetime / time.Hour)

var (
	// ErrInvalidConfiguration is returned for operator-supplied policy values
	// that cannot be used, such as a non-positive hours limit.
	ErrInvalidConfiguration = fmt.Errorf("credential: %w", config.ErrInvalid)
	// ErrIssuanceFailed is returned when the signer could not mint a credential.
	ErrIssuanceFailed = errors.New("credential issuance failed")
)

// Issued is a signed upload URL together with what it grants.
type Issued struct {
	URL       string
	Reference storage.ObjectReference
	Policy    storage.UploadPolicy
}

// Issuer mints upload credentials through a storage.Signer.
type Issuer struct {
	signer storage.Signer
	now    func() time.Time
}

// NewIssuer creates an Issuer delegating signatures to signer.
func NewIssuer(signer storage.Signer) *Issuer {
	return &Issuer{signer: signer, now: time.Now}
}

// Policy builds the write-only policy for a credential issued now.
func (i *Issuer) Policy(hoursLimit int, ipRange *iprange.Range) (storage.UploadPolicy, error) {
	if err := checkHours(hoursLimit); err != nil {
		return storage.UploadPolicy{}, err
	}

	validFrom := i.now().Add(-ClockSkew)
	return storage.UploadPolicy{
		ValidFrom:   validFrom,
		ValidUntil:  validFrom.Add(time.Duration(hoursLimit) * time.Hour),
		Permissions: storage.PermissionWrite,
		IPRange:     ipRange,
	}, nil
}

// Issue signs a credential granting write access to ref, and to ref only, for
// hoursLimit hours. A nil ipRange leaves the credential usable from anywhere.
func (i *Issuer) Issue(ctx context.Context, ref storage.ObjectReference, hoursLimit int, ipRange *iprange.Range) (Issued, error) {
	policy, err := i.Policy(hoursLimit, ipRange)
	if err != nil {
		return Issued{}, err
	}

	url, err := i.signer.SignUpload(ctx, ref, policy)
	if err != nil {
		return Issued{}, fmt.Errorf("%w: %s: %v", ErrIssuanceFailed, ref, err)
	}

	return Issued{URL: url, Reference: ref, Policy: policy}, nil
}

// ParseHours converts a configured hours limit. Anything but an integer in
// [1, MaxHours] is a configuration error.
func ParseHours(text string) (int, error) {
	hours, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: hours limit %q is not an integer", ErrInvalidConfiguration, text)
	}
	if err := checkHours(hours); err != nil {
		return 0, err
	}
	return hours, nil
}

func checkHours(hours int) error {
	if hours <= 0 {
		return fmt.Errorf("%w: hours limit must be positive, got %d", ErrInvalidConfiguration, hours)
	}
	if hours > MaxHours {
		return fmt.Errorf("%w: hours limit %d exceeds %d", ErrInvalidConfiguration, hours, MaxHours)
	}
	return nil
}
