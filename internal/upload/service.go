package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/dropgate/service/internal/audit"
	"github.com/dropgate/service/internal/config"
	"github.com/dropgate/service/internal/credential"
	"github.com/dropgate/service/internal/formdata"
	"github.com/dropgate/service/internal/iprange"
	"github.com/dropgate/service/internal/metrics"
	"github.com/dropgate/service/internal/response"
	"github.com/dropgate/service/internal/storage"
)

// DefaultInlineMaxBytes caps inline bodies when INLINE_MAX_BYTES is unset.
const DefaultInlineMaxBytes = 10 << 20

// ErrReferenceTaken is returned when a freshly generated key already exists.
var ErrReferenceTaken = errors.New("object reference already in use")

// Resolver resolves named policy values.
type Resolver interface {
	Resolve(name, fallback string) string
}

// Issuer signs upload credentials.
type Issuer interface {
	Issue(ctx context.Context, ref storage.ObjectReference, hoursLimit int, ipRange *iprange.Range) (credential.Issued, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store     storage.Store
	Issuer    Issuer
	Resolver  Resolver
	Recorder  audit.Recorder
	Metrics   *metrics.Collector
	Log       *zap.SugaredLogger
	Container string
}

// Service runs both upload flows. It holds no per-request state.
type Service struct {
	store     storage.Store
	issuer    Issuer
	resolver  Resolver
	recorder  audit.Recorder
	metrics   *metrics.Collector
	log       *zap.SugaredLogger
	container string

	decode func(body []byte, contentType string) (formdata.Part, error)
}

// NewService creates a new upload Service. Store, Issuer and Resolver are
// required; a nil Recorder, Metrics or Log is replaced by a no-op.
func NewService(d Deps) *Service {
	recorder := d.Recorder
	if recorder == nil {
		recorder = audit.Nop{}
	}
	collector := d.Metrics
	if collector == nil {
		collector = metrics.New()
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{
		store:     d.Store,
		issuer:    d.Issuer,
		resolver:  d.Resolver,
		recorder:  recorder,
		metrics:   collector,
		log:       log,
		container: d.Container,
		decode:    formdata.Decode,
	}
}

// IssueCredential validates req and issues a write-only credential for a new
// object derived from req.Filename.
//
// Request, storage and signing problems come back as a Reply. Invalid policy
// configuration is returned as an error instead: the request must fail rather
// than fall back to a less restricted credential.
func (s *Service) IssueCredential(ctx context.Context, req Request) (response.Reply, error) {
	if err := req.ValidateForCredential(); err != nil {
		s.metrics.Credential(metrics.OutcomeRejected)
		s.log.Warnw("credential request rejected", "filename", req.Filename, "source_ip", req.SourceIP, "reason", err)
		return shapeReply(err), nil
	}

	hours, ipRange, err := s.credentialPolicy()
	if err != nil {
		s.metrics.Credential(metrics.OutcomeMisconfig)
		return response.Reply{}, err
	}

	ref, err := s.newReference(ctx, req.Filename)
	if err != nil {
		s.metrics.Credential(metrics.OutcomeFailed)
		s.log.Errorw("could not create object reference",
			"container", s.container, "filename", req.Filename, "error", err)
		return response.Error(http.StatusInternalServerError, msgUnexpected), nil
	}

	issued, err := s.issuer.Issue(ctx, ref, hours, ipRange)
	if errors.Is(err, config.ErrInvalid) {
		s.metrics.Credential(metrics.OutcomeMisconfig)
		return response.Reply{}, err
	}
	if err != nil {
		s.metrics.Credential(metrics.OutcomeFailed)
		s.log.Errorw("could not issue upload credential",
			"object", ref.String(), "hours", hours, "ip_range", ipRange, "error", err)
		return response.Error(http.StatusInternalServerError, msgUnexpected), nil
	}

	reply, err := response.JSON(http.StatusOK, map[string]string{"key": issued.URL})
	if err != nil {
		s.metrics.Credential(metrics.OutcomeFailed)
		s.log.Errorw("could not encode credential reply", "object", ref.String(), "error", err)
		return response.Error(http.StatusInternalServerError, msgUnexpected), nil
	}

	s.recordCredential(ctx, req, issued)
	s.metrics.Credential(metrics.OutcomeIssued)
	s.log.Infow("issued upload credential",
		"object", ref.String(),
		"source_ip", req.SourceIP,
		"valid_from", issued.Policy.ValidFrom,
		"valid_until", issued.Policy.ValidUntil,
		"ip_scoped", ipRange != nil,
	)
	return reply, nil
}

// credentialPolicy resolves the hours limit and the optional IP range.
func (s *Service) credentialPolicy() (int, *iprange.Range, error) {
	hours, err := credential.ParseHours(
		s.resolver.Resolve(config.SASLimitHours, strconv.Itoa(credential.DefaultHours)))
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", config.SASLimitHours, err)
	}

	raw := s.resolver.Resolve(config.SASIPRange, iprange.Unrestricted)
	if raw == iprange.Unrestricted {
		return hours, nil, nil
	}
	rng, err := iprange.Parse(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w: %w", config.SASIPRange, config.ErrInvalid, err)
	}
	return hours, &rng, nil
}

func (s *Service) newReference(ctx context.Context, filename string) (storage.ObjectReference, error) {
	ref := storage.NewObjectReference(s.container, filename)
	exists, err := s.store.Exists(ctx, ref)
	if err != nil {
		return storage.ObjectReference{}, err
	}
	if exists {
		return storage.ObjectReference{}, fmt.Errorf("%w: %s", ErrReferenceTaken, ref)
	}
	return ref, nil
}

func (s *Service) recordCredential(ctx context.Context, req Request, issued credential.Issued) {
	entry := audit.CredentialEntry{
		Container:  issued.Reference.Container,
		ObjectKey:  issued.Reference.Key,
		SourceIP:   req.SourceIP,
		ValidFrom:  issued.Policy.ValidFrom,
		ValidUntil: issued.Policy.ValidUntil,
	}
	if issued.Policy.IPRange != nil {
		entry.IPRange = issued.Policy.IPRange.String()
	}
	if err := s.recorder.RecordCredential(ctx, entry); err != nil {
		s.log.Errorw("audit: could not record credential", "object", issued.Reference.String(), "error", err)
	}
}

// InlineLimit resolves the maximum inline body size.
func (s *Service) InlineLimit() (int64, error) {
	raw := s.resolver.Resolve(config.InlineMaxBytes, strconv.Itoa(DefaultInlineMaxBytes))
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: %w: %q is not a positive byte count",
			config.InlineMaxBytes, config.ErrInvalid, raw)
	}
	return n, nil
}

// StoreInline decodes the first multipart part of req.Body and writes it to
// a new object. Nothing is written unless decoding succeeded.
func (s *Service) StoreInline(ctx context.Context, req Request) response.Reply {
	if err := req.ValidateForInline(); err != nil {
		s.metrics.InlineUpload(metrics.OutcomeRejected)
		s.log.Warnw("inline upload rejected", "filename", req.Filename, "reason", err)
		return shapeReply(err)
	}

	part, err := s.decode(req.Body, req.ContentType)
	if errors.Is(err, formdata.ErrMalformedBody) {
		s.metrics.InlineUpload(metrics.OutcomeMalformed)
		s.log.Warnw("inline upload malformed", "filename", req.Filename, "content_type", req.ContentType, "error", err)
		return response.Error(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		s.metrics.InlineUpload(metrics.OutcomeFailed)
		s.log.Errorw("inline upload decode failed", "filename", req.Filename, "error", err)
		return response.Error(http.StatusInternalServerError, err.Error())
	}

	ref := storage.NewObjectReference(s.container, req.Filename)
	size := int64(len(part.Data))
	if err := s.store.Put(ctx, ref, bytes.NewReader(part.Data), size, part.ContentType); err != nil {
		s.metrics.InlineUpload(metrics.OutcomeFailed)
		s.log.Errorw("inline upload write failed", "object", ref.String(), "size", size, "error", err)
		return response.Error(http.StatusInternalServerError, msgUnexpected)
	}

	if err := s.recorder.RecordUpload(ctx, audit.UploadEntry{
		Container:   ref.Container,
		ObjectKey:   ref.Key,
		SourceIP:    req.SourceIP,
		SizeBytes:   size,
		ContentType: part.ContentType,
	}); err != nil {
		s.log.Errorw("audit: could not record upload", "object", ref.String(), "error", err)
	}

	s.metrics.InlineUpload(metrics.OutcomeStored)
	s.metrics.InlineBytes(len(part.Data))
	s.log.Infow("stored inline upload", "object", ref.String(), "size", size, "content_type", part.ContentType)
	return response.OK(msgInlineStore)
}

func shapeReply(err error) response.Reply {
	var shape *ShapeError
	if errors.As(err, &shape) {
		return response.Error(shape.Status, shape.Message)
	}
	return response.Error(http.StatusBadRequest, err.Error())
}
