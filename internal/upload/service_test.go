package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropgate/service/internal/audit"
	"github.com/dropgate/service/internal/config"
	"github.com/dropgate/service/internal/credential"
	"github.com/dropgate/service/internal/formdata"
	"github.com/dropgate/service/internal/iprange"
	"github.com/dropgate/service/internal/metrics"
	"github.com/dropgate/service/internal/storage"
)

type putCall struct {
	ref         storage.ObjectReference
	data        []byte
	contentType string
}

type fakeStore struct {
	exists      bool
	existsErr   error
	putErr      error
	existsCalls int
	puts        []putCall
}

func (f *fakeStore) Exists(_ context.Context, _ storage.ObjectReference) (bool, error) {
	f.existsCalls++
	return f.exists, f.existsErr
}

func (f *fakeStore) Put(_ context.Context, ref storage.ObjectReference, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	f.puts = append(f.puts, putCall{ref: ref, data: data, contentType: contentType})
	return nil
}

type fakeSigner struct {
	err      error
	refs     []storage.ObjectReference
	policies []storage.UploadPolicy
}

func (f *fakeSigner) SignUpload(_ context.Context, ref storage.ObjectReference, policy storage.UploadPolicy) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.refs = append(f.refs, ref)
	f.policies = append(f.policies, policy)
	return "https://store.test/" + ref.Container + "/" + ref.Key + "?X-Amz-Signature=abc", nil
}

type fakeRecorder struct {
	err     error
	creds   []audit.CredentialEntry
	uploads []audit.UploadEntry
}

func (f *fakeRecorder) RecordCredential(_ context.Context, e audit.CredentialEntry) error {
	f.creds = append(f.creds, e)
	return f.err
}

func (f *fakeRecorder) RecordUpload(_ context.Context, e audit.UploadEntry) error {
	f.uploads = append(f.uploads, e)
	return f.err
}

type fixture struct {
	svc      *Service
	store    *fakeStore
	signer   *fakeSigner
	recorder *fakeRecorder
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T, values config.MapProvider) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core).Sugar()

	f := &fixture{
		store:    &fakeStore{},
		signer:   &fakeSigner{},
		recorder: &fakeRecorder{},
		logs:     logs,
	}
	f.svc = NewService(Deps{
		Store:     f.store,
		Issuer:    credential.NewIssuer(f.signer),
		Resolver:  config.NewResolver(values, log),
		Recorder:  f.recorder,
		Metrics:   metrics.New(),
		Log:       log,
		Container: "uploads",
	})
	return f
}

func credentialKey(t *testing.T, body string) string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out["key"]
}

func multipartBody(t *testing.T, payload []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestIssueCredential_MissingFilename(t *testing.T) {
	f := newFixture(t, config.MapProvider{})

	reply, err := f.svc.IssueCredential(context.Background(), Request{SourceIP: "1.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, reply.Status)
	assert.Equal(t, "Filename is not defined", reply.Body)
}

func TestIssueCredential_MissingIPNeverReachesStorage(t *testing.T) {
	f := newFixture(t, config.MapProvider{})

	reply, err := f.svc.IssueCredential(context.Background(), Request{Filename: "test"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, reply.Status)
	assert.Equal(t, "Malformed request", reply.Body)
	assert.Zero(t, f.store.existsCalls)
	assert.Empty(t, f.signer.refs)
}

func TestIssueCredential_DefaultPolicy(t *testing.T) {
	f := newFixture(t, config.MapProvider{})
	before := time.Now()

	reply, err := f.svc.IssueCredential(context.Background(), Request{Filename: "test", SourceIP: "1.1.1.1"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, reply.Status)
	assert.Equal(t, "application/json", reply.Headers["Content-Type"])

	require.Len(t, f.signer.policies, 1)
	policy := f.signer.policies[0]
	assert.Equal(t, 24*time.Hour, policy.Lifetime())
	assert.WithinDuration(t, before.Add(-5*time.Minute), policy.ValidFrom, 5*time.Second)
	assert.True(t, policy.Permissions.WriteOnly())
	assert.Nil(t, policy.IPRange)

	ref := f.signer.refs[0]
	assert.Equal(t, "uploads", ref.Container)
	assert.True(t, strings.HasPrefix(ref.Key, "test-"))
	assert.Equal(t, "https://store.test/uploads/"+ref.Key+"?X-Amz-Signature=abc", credentialKey(t, reply.Body))
	assert.Equal(t, 1, f.store.existsCalls)

	// Both policy values were absent: one warning each.
	assert.Equal(t, 2, f.logs.FilterMessage("configuration value not set, using fallback").Len())
}

func TestIssueCredential_ConfiguredPolicy(t *testing.T) {
	f := newFixture(t, config.MapProvider{
		config.SASLimitHours: "6",
		config.SASIPRange:    "176.134.171.0-176.134.171.255",
	})

	reply, err := f.svc.IssueCredential(context.Background(), Request{Filename: "test", SourceIP: "176.134.171.7"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, reply.Status)

	policy := f.signer.policies[0]
	assert.Equal(t, 6*time.Hour, policy.Lifetime())
	require.NotNil(t, policy.IPRange)
	assert.Equal(t, "176.134.171.0", policy.IPRange.Start.String())
	assert.Equal(t, "176.134.171.255", policy.IPRange.End.String())

	require.Len(t, f.recorder.creds, 1)
	entry := f.recorder.creds[0]
	assert.Equal(t, "176.134.171.7", entry.SourceIP)
	assert.Equal(t, "176.134.171.0-176.134.171.255", entry.IPRange)
	assert.Equal(t, f.signer.refs[0].Key, entry.ObjectKey)
	assert.Equal(t, policy.ValidUntil, entry.ValidUntil)
}

func TestIssueCredential_ExplicitUnrestricted(t *testing.T) {
	f := newFixture(t, config.MapProvider{config.SASIPRange: iprange.Unrestricted})

	reply, err := f.svc.IssueCredential(context.Background(), Request{Filename: "test", SourceIP: "1.1.1.1"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, reply.Status)
	assert.Nil(t, f.signer.policies[0].IPRange)
	assert.Empty(t, f.recorder.creds[0].IPRange)
}

func TestIssueCredential_InvalidConfigurationIsPropagated(t *testing.T) {
	tests := []struct {
		name   string
		values config.MapProvider
		target error
	}{
		{"single address range", config.MapProvider{config.SASIPRange: "176.134.171.0"}, iprange.ErrInvalidRange},
		{"garbage range", config.MapProvider{config.SASIPRange: "somerandomstring"}, iprange.ErrInvalidRange},
		{"zero hours", config.MapProvider{config.SASLimitHours: "0"}, credential.ErrInvalidConfiguration},
		{"non-numeric hours", config.MapProvider{config.SASLimitHours: "a day"}, credential.ErrInvalidConfiguration},
		{"hours beyond signing limit", config.MapProvider{config.SASLimitHours: "169"}, credential.ErrInvalidConfiguration},
		{"overflowing hours", config.MapProvider{config.SASLimitHours: "9999999999"}, credential.ErrInvalidConfiguration},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.values)

			_, err := f.svc.IssueCredential(context.Background(), Request{Filename: "test", SourceIP: "1.1.1.1"})
			require.ErrorIs(t, err, tc.target)
			assert.Zero(t, f.store.existsCalls)
			assert.Empty(t, f.signer.policies)
			assert.Empty(t, f.recorder.creds)
		})
	}
}

func TestIssueCredential_InvalidConfigurationIsConfigError(t *testing.T) {
	for _, values := range []config.MapProvider{
		{config.SASIPRange: "somerandomstring"},
		{config.SASLimitHours: "200"},
	} {
		f := newFixture(t, values)

		_, err := f.svc.IssueCredential(context.Background(), Request{Filename: "test", SourceIP: "1.1.1.1"})
		require.ErrorIs(t, err, config.ErrInvalid)
		assert.Zero(t, f.logs.FilterMessage("could not issue upload credential").Len())
	}
}

func TestNewService_OptionalDepsDefault(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(Deps{
		Store:     store,
		Issuer:    credential.NewIssuer(&fakeSigner{}),
		Resolver:  config.NewResolver(config.MapProvider{}, zap.NewNop().Sugar()),
		Container: "uploads",
	})

	reply, err := svc.IssueCredential(context.Background(), Request{Filename: "test", SourceIP: "1.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, reply.Status)

	body, ct := multipartBody(t, []byte("data"))
	reply = svc.StoreInline(context.Background(), Request{Filename: "test", Body: body, ContentType: ct})
	assert.Equal(t, http.StatusOK, reply.Status)
	require.Len(t, store.puts, 1)
}

func TestIssueCredential_StorageFailures(t *testing.T) {
	t.Run("existence check fails", func(t *testing.T) {
		f := newFixture(t, config.MapProvider{})
		f.store.existsErr = errors.New("connection refused")

		reply, err := f.svc.IssueCredential(context.Background(), Request{Filename: "test", SourceIP: "1.1.1.1"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, reply.Status)
		assert.Equal(t, "Unexpected error.", reply.Body)
		assert.Empty(t, f.signer.policies)
	})

	t.Run("key already taken", func(t *testing.T) {
		f := newFixture(t, config.MapProvider{})
		f.store.exists = true

		reply, err := f.svc.IssueCredential(context.Background(), Request{Filename: "test", SourceIP: "1.1.1.1"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, reply.Status)
		assert.Empty(t, f.signer.policies)
	})

	t.Run("signing fails", func(t *testing.T) {
		f := newFixture(t, config.MapProvider{})
		f.signer.err = errors.New("signer offline")

		reply, err := f.svc.IssueCredential(context.Background(), Request{Filename: "test", SourceIP: "1.1.1.1"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, reply.Status)
		assert.Equal(t, "Unexpected error.", reply.Body)
		assert.Empty(t, f.recorder.creds)
		assert.Equal(t, 1, f.logs.FilterMessage("could not issue upload credential").Len())
	})
}

func TestIssueCredential_AuditFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, config.MapProvider{})
	f.recorder.err = errors.New("db down")

	reply, err := f.svc.IssueCredential(context.Background(), Request{Filename: "test", SourceIP: "1.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, reply.Status)
	assert.Equal(t, 1, f.logs.FilterMessage("audit: could not record credential").Len())
}

func TestIssueCredential_SequentialRequestsGetDistinctObjects(t *testing.T) {
	f := newFixture(t, config.MapProvider{})
	req := Request{Filename: "same.txt", SourceIP: "1.1.1.1"}

	first, err := f.svc.IssueCredential(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.IssueCredential(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.signer.refs, 2)
	assert.NotEqual(t, f.signer.refs[0].Key, f.signer.refs[1].Key)
	assert.NotEqual(t, credentialKey(t, first.Body), credentialKey(t, second.Body))
	assert.Equal(t, 24*time.Hour, f.signer.policies[0].Lifetime())
	assert.Equal(t, 24*time.Hour, f.signer.policies[1].Lifetime())
}

func TestStoreInline_MissingFilename(t *testing.T) {
	f := newFixture(t, config.MapProvider{})
	body, ct := multipartBody(t, []byte("data"))

	reply := f.svc.StoreInline(context.Background(), Request{Body: body, ContentType: ct})
	assert.Equal(t, http.StatusBadRequest, reply.Status)
	assert.Equal(t, "Filename is not defined", reply.Body)
	assert.Empty(t, f.store.puts)
}

func TestStoreInline_EmptyBodySkipsDecoder(t *testing.T) {
	f := newFixture(t, config.MapProvider{})
	decoded := 0
	f.svc.decode = func([]byte, string) (formdata.Part, error) {
		decoded++
		return formdata.Part{}, nil
	}

	for _, body := range [][]byte{nil, {}} {
		reply := f.svc.StoreInline(context.Background(), Request{Filename: "test", Body: body})
		assert.Equal(t, http.StatusBadRequest, reply.Status)
		assert.Equal(t, "Request body is not defined", reply.Body)
	}
	assert.Zero(t, decoded)
	assert.Empty(t, f.store.puts)
}

func TestStoreInline_BoundaryMismatchNeverWrites(t *testing.T) {
	f := newFixture(t, config.MapProvider{})
	body, _ := multipartBody(t, []byte("data"))

	reply := f.svc.StoreInline(context.Background(), Request{
		Filename:    "test",
		Body:        body,
		ContentType: "multipart/form-data; boundary=somethingelse",
	})
	assert.Equal(t, http.StatusBadRequest, reply.Status)
	assert.Contains(t, reply.Body, "malformed multipart body")
	assert.Empty(t, f.store.puts)
}

func TestStoreInline_UnexpectedDecodeError(t *testing.T) {
	f := newFixture(t, config.MapProvider{})
	f.svc.decode = func([]byte, string) (formdata.Part, error) {
		return formdata.Part{}, errors.New("decoder exploded")
	}

	reply := f.svc.StoreInline(context.Background(), Request{Filename: "test", Body: []byte("x")})
	assert.Equal(t, http.StatusInternalServerError, reply.Status)
	assert.Equal(t, "decoder exploded", reply.Body)
	assert.Empty(t, f.store.puts)
}

func TestStoreInline_WritesFirstPart(t *testing.T) {
	f := newFixture(t, config.MapProvider{})
	body, ct := multipartBody(t, []byte("\x89PNG bytes"))

	reply := f.svc.StoreInline(context.Background(), Request{
		Filename:    "photo",
		SourceIP:    "9.9.9.9",
		Body:        body,
		ContentType: ct,
	})
	require.Equal(t, http.StatusOK, reply.Status)
	assert.Equal(t, "OK", reply.Body)

	require.Len(t, f.store.puts, 1)
	put := f.store.puts[0]
	assert.Equal(t, []byte("\x89PNG bytes"), put.data)
	assert.Equal(t, "application/octet-stream", put.contentType)
	assert.Equal(t, "uploads", put.ref.Container)
	assert.True(t, strings.HasPrefix(put.ref.Key, "photo-"))

	require.Len(t, f.recorder.uploads, 1)
	assert.Equal(t, int64(len("\x89PNG bytes")), f.recorder.uploads[0].SizeBytes)
	assert.Equal(t, "9.9.9.9", f.recorder.uploads[0].SourceIP)
}

func TestStoreInline_WriteFailure(t *testing.T) {
	f := newFixture(t, config.MapProvider{})
	f.store.putErr = errors.New("disk full")
	body, ct := multipartBody(t, []byte("data"))

	reply := f.svc.StoreInline(context.Background(), Request{Filename: "test", Body: body, ContentType: ct})
	assert.Equal(t, http.StatusInternalServerError, reply.Status)
	assert.Equal(t, "Unexpected error.", reply.Body)
	assert.Empty(t, f.recorder.uploads)
}

func TestInlineLimit(t *testing.T) {
	n, err := newFixture(t, config.MapProvider{}).svc.InlineLimit()
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultInlineMaxBytes), n)

	n, err = newFixture(t, config.MapProvider{config.InlineMaxBytes: "1024"}).svc.InlineLimit()
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n)

	for _, bad := range []string{"-1", "0", "lots"} {
		_, err := newFixture(t, config.MapProvider{config.InlineMaxBytes: bad}).svc.InlineLimit()
		assert.ErrorIs(t, err, config.ErrInvalid)
	}
}

func TestFirstForwardedIP(t *testing.T) {
	assert.Equal(t, "", FirstForwardedIP(""))
	assert.Equal(t, "1.2.3.4", FirstForwardedIP("1.2.3.4"))
	assert.Equal(t, "1.2.3.4", FirstForwardedIP(" 1.2.3.4 , 10.0.0.1, 10.0.0.2"))
}
