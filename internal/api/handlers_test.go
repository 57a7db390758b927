package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/inboxd/internal/api/mocks"
	"github.com/mattjoyce/inboxd/internal/log"
	"github.com/mattjoyce/inboxd/internal/message"
	"github.com/mattjoyce/inboxd/internal/store"
)

func newTestServer(st Store, secretConfigured bool) *Server {
	return New(Config{Listen: "127.0.0.1:0", SecretConfigured: secretConfigured}, st, nil, log.Discard())
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func sampleMessage() message.Message {
	text := "Hello"
	return message.Message{
		ID:        "m1",
		From:      "+919876543210",
		To:        "+14155550100",
		TS:        time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
		Text:      &text,
		CreatedAt: time.Date(2025, 1, 15, 10, 0, 1, 500000000, time.UTC),
	}
}

func TestListMessages_Defaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStore(ctrl)
	st.EXPECT().List(gomock.Any(), store.Filter{}, store.Page{Limit: 50, Offset: 0}).
		Return(store.ListResult{Items: []message.Message{sampleMessage()}, Total: 1}, nil)

	rr := do(t, newTestServer(st, true), http.MethodGet, "/messages")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"items": [{
			"message_id": "m1",
			"from": "+919876543210",
			"to": "+14155550100",
			"ts": "2025-01-15T10:00:00Z",
			"text": "Hello",
			"created_at": "2025-01-15T10:00:01.5Z"
		}],
		"total": 1,
		"limit": 50,
		"offset": 0
	}`, rr.Body.String())
}

func TestListMessages_PassesFilters(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStore(ctrl)
	st.EXPECT().List(gomock.Any(), gomock.Any(), store.Page{Limit: 10, Offset: 20}).
		DoAndReturn(func(_ context.Context, f store.Filter, _ store.Page) (store.ListResult, error) {
			assert.Equal(t, "+919876543210", f.From)
			assert.Equal(t, "50%", f.Q)
			require.NotNil(t, f.Since)
			assert.True(t, f.Since.Equal(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)))
			assert.Equal(t, time.UTC, f.Since.Location())
			return store.ListResult{Total: 0}, nil
		})

	rr := do(t, newTestServer(st, true), http.MethodGet,
		"/messages?from=%2B919876543210&since=2025-01-15T15:30:00%2B05:30&q=50%25&limit=10&offset=20")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"items":[],"total":0,"limit":10,"offset":20}`, rr.Body.String())
}

func TestListMessages_SinceDateIsStartOfDay(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	since := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	st := mocks.NewMockStore(ctrl)
	st.EXPECT().List(gomock.Any(), store.Filter{Since: &since}, store.DefaultPage()).
		Return(store.ListResult{}, nil)

	rr := do(t, newTestServer(st, true), http.MethodGet, "/messages?since=2025-01-15")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestListMessages_UnencodedPlusInFrom(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStore(ctrl)
	st.EXPECT().List(gomock.Any(), store.Filter{From: "+919876543210"}, store.DefaultPage()).
		Return(store.ListResult{}, nil)

	rr := do(t, newTestServer(st, true), http.MethodGet, "/messages?from=+919876543210")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestListMessages_EmptyParamsAreAbsent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStore(ctrl)
	st.EXPECT().List(gomock.Any(), store.Filter{}, store.DefaultPage()).Return(store.ListResult{}, nil)

	rr := do(t, newTestServer(st, true), http.MethodGet, "/messages?from=&since=&q=&limit=&offset=")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestListMessages_RejectsBadParams(t *testing.T) {
	tests := []struct {
		query  string
		fields map[string]string
	}{
		{query: "limit=0", fields: map[string]string{"limit": "must be between 1 and 100"}},
		{query: "limit=101", fields: map[string]string{"limit": "must be between 1 and 100"}},
		{query: "limit=ten", fields: map[string]string{"limit": "must be an integer"}},
		{query: "offset=-1", fields: map[string]string{"offset": "must be 0 or greater"}},
		{query: "limit=abc&offset=-5", fields: map[string]string{"limit": "must be an integer", "offset": "must be 0 or greater"}},
		{query: "since=yesterday", fields: map[string]string{"since": "must be an RFC 3339 timestamp or a YYYY-MM-DD date"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			st := mocks.NewMockStore(ctrl)

			rr := do(t, newTestServer(st, true), http.MethodGet, "/messages?"+tt.query)
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			got := map[string]string{}
			for _, f := range resp.Fields {
				got[f.Field] = f.Message
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestStoreErrorsMapToStatus(t *testing.T) {
	unavailable := &store.UnavailableError{Op: "list messages", Err: errors.New("disk I/O error")}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "unavailable", err: unavailable, want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("corrupt row"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			st := mocks.NewMockStore(ctrl)
			st.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any()).Return(store.ListResult{}, tt.err)
			st.EXPECT().Stats(gomock.Any()).Return(store.Stats{}, tt.err)

			s := newTestServer(st, true)
			for _, path := range []string{"/messages", "/stats"} {
				rr := do(t, s, http.MethodGet, path)
				assert.Equal(t, tt.want, rr.Code, path)
				assert.NotContains(t, rr.Body.String(), "disk I/O", path)
			}
		})
	}
}

func TestStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	last := time.Date(2025, 1, 15, 12, 0, 0, 250000000, time.UTC)

	st := mocks.NewMockStore(ctrl)
	st.EXPECT().Stats(gomock.Any()).Return(store.Stats{
		TotalMessages:     3,
		SendersCount:      2,
		MessagesPerSender: []store.SenderCount{{From: "+1", Count: 2}, {From: "+2", Count: 1}},
		FirstMessageTS:    &first,
		LastMessageTS:     &last,
	}, nil)

	rr := do(t, newTestServer(st, true), http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"total_messages": 3,
		"senders_count": 2,
		"messages_per_sender": [{"from":"+1","count":2},{"from":"+2","count":1}],
		"first_message_ts": "2025-01-15T09:00:00Z",
		"last_message_ts": "2025-01-15T12:00:00.25Z"
	}`, rr.Body.String())
}

func TestStats_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStore(ctrl)
	st.EXPECT().Stats(gomock.Any()).Return(store.Stats{}, nil)

	rr := do(t, newTestServer(st, true), http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"total_messages": 0,
		"senders_count": 0,
		"messages_per_sender": [],
		"first_message_ts": null,
		"last_message_ts": null
	}`, rr.Body.String())
}

func TestHealth(t *testing.T) {
	pingErr := &store.UnavailableError{Op: "ping", Err: errors.New("database is closed")}

	tests := []struct {
		name    string
		secret  bool
		pingErr error
		want    int
	}{
		{name: "ready", secret: true, want: http.StatusOK},
		{name: "no secret", secret: false, want: http.StatusServiceUnavailable},
		{name: "store down", secret: true, pingErr: pingErr, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			st := mocks.NewMockStore(ctrl)
			st.EXPECT().Ping(gomock.Any()).Return(tt.pingErr)
			s := newTestServer(st, tt.secret)

			rr := do(t, s, http.MethodGet, "/health/ready")
			assert.Equal(t, tt.want, rr.Code)

			// Liveness never depends on the store.
			live := do(t, s, http.MethodGet, "/health/live")
			assert.Equal(t, http.StatusOK, live.Code)
			assert.JSONEq(t, `{"status":"ok"}`, live.Body.String())
		})
	}
}

func TestRequestID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := newTestServer(mocks.NewMockStore(ctrl), true)

	rr := do(t, s, http.MethodGet, "/health/live")
	_, err := uuid.Parse(rr.Header().Get(middleware.RequestIDHeader))
	assert.NoError(t, err, "generated request id should be a UUID")

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get(middleware.RequestIDHeader))
}

func TestUnknownRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := newTestServer(mocks.NewMockStore(ctrl), true)

	rr := do(t, s, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rr.Body.String())

	rr = do(t, s, http.MethodPost, "/messages")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRequestTimeoutBoundsContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStore(ctrl)
	st.EXPECT().Stats(gomock.Any()).DoAndReturn(func(ctx context.Context) (store.Stats, error) {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
		return store.Stats{}, nil
	})

	s := New(Config{RequestTimeout: time.Second, SecretConfigured: true}, st, nil, log.Discard())
	rr := do(t, s, http.MethodGet, "/stats")
	assert.Equal(t, http.StatusOK, rr.Code)
}
