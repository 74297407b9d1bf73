package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"TechDigest/internal/domain"
	"TechDigest/internal/infrastructure/storage"
	"TechDigest/internal/ports"
	"TechDigest/internal/usecase"
)

type stubEditionRepo struct {
	edition   domain.Edition
	deleteErr error
}

func (r *stubEditionRepo) Insert(_ context.Context, e domain.Edition) (domain.Edition, error) {
	return e, nil
}

func (r *stubEditionRepo) GetByID(_ context.Context, id string) (domain.Edition, error) {
	if id != r.edition.ID {
		return domain.Edition{}, storage.ErrEditionNotFound
	}
	return r.edition, nil
}

func (r *stubEditionRepo) MarkPublished(_ context.Context, _ string, at time.Time) error {
	r.edition.Status = domain.StatusPublished
	r.edition.PublishedAt = &at
	return nil
}

func (r *stubEditionRepo) Delete(_ context.Context, _ string) error {
	return r.deleteErr
}

type stubSubscriberRepo struct {
	subscribeErr   error
	unsubscribeErr error
	active         []domain.Subscriber
}

func (r *stubSubscriberRepo) Active(context.Context) ([]domain.Subscriber, error) {
	return r.active, nil
}

func (r *stubSubscriberRepo) Subscribe(_ context.Context, email string) (domain.Subscriber, error) {
	if r.subscribeErr != nil {
		return domain.Subscriber{}, r.subscribeErr
	}
	return domain.Subscriber{Email: email}, nil
}

func (r *stubSubscriberRepo) UnsubscribeByToken(context.Context, string) error {
	return r.unsubscribeErr
}

type okMailer struct{}

func (okMailer) Send(context.Context, ports.Mail) error { return nil }

func newTestServer(editions *stubEditionRepo, subscribers *stubSubscriberRepo) *Server {
	publisher := usecase.NewPublisher(usecase.PublisherDeps{
		Editions:        editions,
		Subscribers:     subscribers,
		Mailer:          okMailer{},
		UnsubscribeBase: "https://news.example.com/unsubscribe",
	})
	return NewServer(Deps{
		Publisher:   publisher,
		Editions:    editions,
		Subscribers: subscribers,
		CronSecret:  "s3cret",
	})
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var body apiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestCronRejectsMissingBearer(t *testing.T) {
	server := newTestServer(&stubEditionRepo{}, &stubSubscriberRepo{})
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cron", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cron", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublishUnknownEditionIs404(t *testing.T) {
	server := newTestServer(&stubEditionRepo{edition: domain.Edition{ID: "known"}}, &stubSubscriberRepo{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/editions/missing/publish", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, decodeResponse(t, rec).Success)
}

func TestPublishReportsSummary(t *testing.T) {
	editions := &stubEditionRepo{edition: domain.Edition{
		ID:     "ed-1",
		Title:  "Edition 10/11/25",
		Status: domain.StatusDraft,
		HTML:   "<html></html>",
	}}
	subscribers := &stubSubscriberRepo{active: []domain.Subscriber{
		{Email: "reader@example.com", UnsubscribeToken: "tok"},
	}}
	server := newTestServer(editions, subscribers)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/editions/ed-1/publish", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	require.True(t, body.Success)
	require.Equal(t, "edition published", body.Message)
}

func TestPublishNoRecipientsMessage(t *testing.T) {
	editions := &stubEditionRepo{edition: domain.Edition{ID: "ed-1", Status: domain.StatusDraft}}
	server := newTestServer(editions, &stubSubscriberRepo{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/editions/ed-1/publish", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no active subscribers to send to", decodeResponse(t, rec).Message)
}

func TestSubscribeDuplicateIsFriendly(t *testing.T) {
	server := newTestServer(&stubEditionRepo{}, &stubSubscriberRepo{subscribeErr: storage.ErrAlreadySubscribed})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(`{"email": "reader@example.com"}`))
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	require.True(t, body.Success)
	require.Equal(t, "you are already on the list", body.Message)
}

func TestSubscribeRequiresEmail(t *testing.T) {
	server := newTestServer(&stubEditionRepo{}, &stubSubscriberRepo{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(`{}`))
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnsubscribeUnknownToken(t *testing.T) {
	server := newTestServer(&stubEditionRepo{}, &stubSubscriberRepo{unsubscribeErr: storage.ErrUnknownToken})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unsubscribe?token=bad", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid or expired unsubscribe link", decodeResponse(t, rec).Message)
}

func TestDeleteUnknownEditionIs404(t *testing.T) {
	server := newTestServer(&stubEditionRepo{deleteErr: storage.ErrEditionNotFound}, &stubSubscriberRepo{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/editions/missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}
