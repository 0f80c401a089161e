package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/errs"
	"github.com/evafinance/evacore/internal/models"
	"github.com/evafinance/evacore/internal/store"
)

type stubGateway struct {
	sent []Message
	err  error
}

func (s *stubGateway) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testNotifyConfig() config.NotifyConfig {
	return config.NotifyConfig{
		Topic:        "eva-recommendations",
		MaxAttempts:  5,
		ClaimLimit:   10,
		PollInterval: time.Minute,
		Timeout:      2 * time.Second,
	}
}

func draftColumns() []string {
	return []string{
		"id", "signal_event_id", "brand", "tag", "event_time",
		"final_confidence", "band", "bundle_path", "bundle_sha256", "markdown_path",
		"approved", "approved_by", "approved_at", "notified_at",
		"notify_attempts", "last_notify_error", "created_at",
	}
}

func draftRow(rows *sqlmock.Rows, id int64, brand string) *sqlmock.Rows {
	now := time.Now().UTC()
	return rows.AddRow(id, id*10, brand, "comfort-shoes", now,
		0.67, "HIGH", "output/b.json.gz", "abc123", "output/d.md",
		true, "operator", now, nil,
		1, nil, now)
}

func mockedNotifier(t *testing.T, gw Gateway) (*Notifier, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.New(sqlx.NewDb(db, "postgres"), time.Second)
	return NewNotifier(st, gw, testNotifyConfig()), mock
}

func expectClaim(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE recommendation_drafts").
		WithArgs(10, 5).
		WillReturnRows(rows)
	mock.ExpectCommit()
}

func TestRunOnceDeliversClaimedDrafts(t *testing.T) {
	gw := &stubGateway{}
	n, mock := mockedNotifier(t, gw)

	rows := sqlmock.NewRows(draftColumns())
	draftRow(rows, 1, "Hoka")
	draftRow(rows, 2, "Brooks")
	expectClaim(mock, rows)
	mock.ExpectExec("SET notified_at").WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET notified_at").WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	stats, err := n.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Claimed)
	assert.Equal(t, 2, stats.Sent)
	assert.Zero(t, stats.Failed)
	require.Len(t, gw.sent, 2)
	assert.Equal(t, "EVA: Hoka recommendation ready", gw.sent[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnceRecordsDeliveryFailure(t *testing.T) {
	gw := &stubGateway{err: errs.Transient("notify.send", errors.New("gateway down"))}
	n, mock := mockedNotifier(t, gw)

	rows := sqlmock.NewRows(draftColumns())
	draftRow(rows, 1, "Hoka")
	expectClaim(mock, rows)
	mock.ExpectExec("SET last_notify_error").
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	stats, err := n.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Claimed)
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnceSkipsWhenApprovalRevoked(t *testing.T) {
	gw := &stubGateway{}
	n, mock := mockedNotifier(t, gw)

	rows := sqlmock.NewRows(draftColumns())
	draftRow(rows, 1, "Hoka")
	expectClaim(mock, rows)
	// Approval revoked between claim and delivery: zero rows updated.
	mock.ExpectExec("SET notified_at").WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	stats, err := n.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnceEmptyBatch(t *testing.T) {
	n, mock := mockedNotifier(t, &stubGateway{})
	expectClaim(mock, sqlmock.NewRows(draftColumns()))

	stats, err := n.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Claimed)
}

func TestCompose(t *testing.T) {
	path := "output/hoka/42_EVA-Finance_Recommendation.md"
	msg := Compose("eva-recommendations", models.RecommendationDraft{
		ID:              42,
		Brand:           "Hoka",
		Tag:             "comfort-shoes",
		FinalConfidence: 0.6712,
		Band:            models.BandHigh,
		BundleSHA256:    "abc123",
		MarkdownPath:    path,
	})

	assert.Equal(t, "eva-recommendations", msg.Topic)
	assert.Equal(t, "EVA: Hoka recommendation ready", msg.Title)
	assert.Contains(t, msg.Body, "0.6712")
	assert.Contains(t, msg.Body, path)
	assert.Equal(t, 4, msg.Priority)
	assert.Equal(t, "42", msg.Extras["draft_id"])
	assert.Equal(t, "abc123", msg.Extras["bundle_sha256"])
}

func TestHTTPGatewayStatusHandling(t *testing.T) {
	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(status)
	}))
	defer srv.Close()

	cfg := testNotifyConfig()
	cfg.GatewayURL = srv.URL
	msg := Message{Topic: "t", Title: "x", Body: "y"}

	status = http.StatusOK
	assert.NoError(t, NewHTTPGateway(cfg).Send(context.Background(), msg))

	status = http.StatusBadGateway
	err := NewHTTPGateway(cfg).Send(context.Background(), msg)
	assert.Equal(t, errs.KindTransientExternal, errs.KindOf(err))

	status = http.StatusNotFound
	err = NewHTTPGateway(cfg).Send(context.Background(), msg)
	assert.Equal(t, errs.KindPermanentExternal, errs.KindOf(err))
}

func TestHTTPGatewayBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testNotifyConfig()
	cfg.GatewayURL = srv.URL
	gw := NewHTTPGateway(cfg)
	msg := Message{Topic: "t"}

	for i := 0; i < 3; i++ {
		require.Error(t, gw.Send(context.Background(), msg))
	}
	err := gw.Send(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
