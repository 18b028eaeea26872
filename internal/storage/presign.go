package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dropgate/service/internal/iprange"
)

// MaxLifetime is the longest validity window SigV4 query signing accepts.
const MaxLifetime = 7 * 24 * time.Hour

// IPRangeParam is the signed query parameter carrying the IP restriction.
const IPRangeParam = "x-upload-ip-range"

var (
	// ErrUnsupportedPermission is returned for policies granting more than write.
	ErrUnsupportedPermission = errors.New("only write-only upload policies can be signed")
	// ErrExpiryTooLong is returned when the validity window exceeds MaxLifetime.
	ErrExpiryTooLong = errors.New("upload policy lifetime exceeds signing limit")
	// ErrEmptyWindow is returned when ValidUntil is not after ValidFrom.
	ErrEmptyWindow = errors.New("upload policy has an empty validity window")
)

var loadAWSConfig = config.LoadDefaultConfig

// PresignerOptions configures the S3 endpoint URLs are signed for.
type PresignerOptions struct {
	// BaseURL including scheme, e.g. "http://127.0.0.1:9000".
	BaseURL   string
	AccessKey string
	SecretKey string
	Region    string
}

// S3Presigner implements Signer with SigV4 query-string signing.
type S3Presigner struct {
	presign *s3.PresignClient
}

// NewS3Presigner builds a presign client with static credentials. No request
// is sent to the backend.
func NewS3Presigner(ctx context.Context, opts PresignerOptions) (*S3Presigner, error) {
	cfg, err := loadAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.BaseURL)
		o.UsePathStyle = true
	})

	return &S3Presigner{presign: s3.NewPresignClient(client)}, nil
}

// SignUpload returns a pre-signed PUT URL for ref. The signature date is
// pinned to policy.ValidFrom and X-Amz-Expires covers the policy lifetime, so
// the backend itself enforces the window. An IP restriction travels as a
// signed query parameter and cannot be removed without breaking the signature.
func (p *S3Presigner) SignUpload(ctx context.Context, ref ObjectReference, policy UploadPolicy) (string, error) {
	if !policy.Permissions.WriteOnly() {
		return "", fmt.Errorf("%w: got %q", ErrUnsupportedPermission, policy.Permissions)
	}
	lifetime := policy.Lifetime()
	if lifetime <= 0 {
		return "", ErrEmptyWindow
	}
	if lifetime > MaxLifetime {
		return "", fmt.Errorf("%w: %s", ErrExpiryTooLong, lifetime)
	}

	req, err := p.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(ref.Container),
		Key:    aws.String(ref.Key),
	},
		s3.WithPresignExpires(lifetime),
		func(o *s3.PresignOptions) {
			o.Presigner = pinnedPresigner{
				signer:      v4.NewSigner(),
				signingTime: policy.ValidFrom,
				ipRange:     policy.IPRange,
			}
		},
	)
	if err != nil {
		return "", fmt.Errorf("presign put object %q: %w", ref, err)
	}

	return req.URL, nil
}

// pinnedPresigner signs with a fixed signing time instead of the current one.
type pinnedPresigner struct {
	signer      *v4.Signer
	signingTime time.Time
	ipRange     *iprange.Range
}

var _ s3.HTTPPresignerV4 = pinnedPresigner{}

func (p pinnedPresigner) PresignHTTP(
	ctx context.Context, creds aws.Credentials, r *http.Request,
	payloadHash string, service string, region string, _ time.Time,
	optFns ...func(*v4.SignerOptions),
) (string, http.Header, error) {
	if p.ipRange != nil {
		q := r.URL.Query()
		q.Set(IPRangeParam, p.ipRange.String())
		r.URL.RawQuery = q.Encode()
	}
	return p.signer.PresignHTTP(ctx, creds, r, payloadHash, service, region, p.signingTime, optFns...)
}
