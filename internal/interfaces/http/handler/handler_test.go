package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appcatalog "github.com/library/backend/internal/application/catalog"
	appcirculation "github.com/library/backend/internal/application/circulation"
	"github.com/library/backend/internal/application/operations"
	"github.com/library/backend/internal/domain/catalog"
	"github.com/library/backend/internal/domain/circulation"
	"github.com/library/backend/internal/domain/identity"
	"github.com/library/backend/internal/domain/shared"
	"github.com/library/backend/internal/infrastructure/persistence"
	"github.com/library/backend/internal/interfaces/http/handler"
	"github.com/library/backend/internal/interfaces/http/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	db     *gorm.DB
	engine http.Handler
	sink   *stubSink
}

type stubSink struct {
	cmds []shared.Command
}

func (s *stubSink) Submit(_ context.Context, cmd shared.Command) error {
	s.cmds = append(s.cmds, cmd)
	return nil
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&identity.Member{},
		&catalog.Book{},
		&circulation.Loan{},
		&circulation.LoanHistoryEntry{},
		&shared.DeadLetterEntry{},
	))

	sink := &stubSink{}
	loanQueries := appcirculation.NewLoanQueryService(
		persistence.NewGormLoanRepository(db),
		persistence.NewGormLoanHistoryRepository(db),
	)
	bookQueries := appcatalog.NewBookQueryService(persistence.NewGormBookRepository(db))
	deadLetters := operations.NewDeadLetterService(
		persistence.NewGormDeadLetterRepository(db), sink, zap.NewNop())

	engine := router.New(zap.NewNop()).
		Register(
			handler.NewSystemHandler(db),
			handler.NewLoanHandler(loanQueries),
			handler.NewBookHandler(bookQueries),
			handler.NewDeadLetterHandler(deadLetters),
		).
		Setup()

	return &apiFixture{db: db, engine: engine, sink: sink}
}

func (f *apiFixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return f.do(t, http.MethodGet, path)
}

func (f *apiFixture) post(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return f.do(t, http.MethodPost, path)
}

func (f *apiFixture) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func (f *apiFixture) seedLoan(t *testing.T) *circulation.Loan {
	t.Helper()
	ctx := context.Background()

	member, err := identity.NewMember("reader@example.com", "reader", "")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormMemberRepository(f.db).Create(ctx, member))

	book, err := catalog.NewBook("9780000000001", "Title", "Author", 1)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormBookRepository(f.db).Create(ctx, book))

	loan := circulation.NewLoan(member.ID, book.ID, "", time.Now(), 14, 2)
	require.NoError(t, persistence.NewGormLoanRepository(f.db).Create(ctx, loan))
	require.NoError(t, persistence.NewGormLoanHistoryRepository(f.db).Append(ctx, loan.TakeHistory(&member.ID)...))
	return loan
}

func TestGetLoan(t *testing.T) {
	f := newAPIFixture(t)
	loan := f.seedLoan(t)

	rec, body := f.get(t, "/api/v1/loans/1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.EqualValues(t, loan.ID, data["id"])
	assert.Equal(t, "ACTIVE", data["status"])
	assert.Equal(t, "0.00", data["fine_amount"])
	assert.Equal(t, true, data["can_renew"])
}

func TestGetLoan_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.get(t, "/api/v1/loans/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestGetLoan_InvalidID(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.get(t, "/api/v1/loans/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLoanHistory(t *testing.T) {
	f := newAPIFixture(t)
	loan := f.seedLoan(t)

	rec, body := f.get(t, "/api/v1/loans/1/history")
	assert.Equal(t, http.StatusOK, rec.Code)

	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	first := entries[0].(map[string]any)
	assert.Equal(t, "CREATED", first["action"])
	assert.EqualValues(t, loan.ID, first["loan_id"])
}

func TestGetBook(t *testing.T) {
	f := newAPIFixture(t)
	f.seedLoan(t)

	rec, body := f.get(t, "/api/v1/books/1")
	assert.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, "9780000000001", data["isbn"])
	assert.EqualValues(t, 1, data["total_copies"])
}

func TestDeadLetterEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	cmd := shared.NewCommand(shared.RoutingLoanCreate, []byte(`{"user_id":1,"book_id":2}`), "tok-1")
	entry := shared.NewDeadLetterEntry(cmd, shared.ReasonRejected, shared.KindUnavailable, "no copies")
	require.NoError(t, persistence.NewGormDeadLetterRepository(f.db).Save(context.Background(), entry))

	rec, body := f.get(t, "/api/v1/dead-letters")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"].([]any), 1)
	assert.EqualValues(t, 1, body["meta"].(map[string]any)["total"])

	rec, body = f.get(t, "/api/v1/dead-letters/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["REJECTED"])

	rec, body = f.post(t, "/api/v1/dead-letters/"+entry.ID.String()+"/replay")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REPLAYED", body["data"].(map[string]any)["status"])
	require.Len(t, f.sink.cmds, 1)
	assert.Equal(t, shared.RoutingLoanCreate, f.sink.cmds[0].RoutingKey)

	// A second replay conflicts.
	rec, _ = f.post(t, "/api/v1/dead-letters/"+entry.ID.String()+"/replay")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReplay_InvalidID(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.post(t, "/api/v1/dead-letters/not-a-uuid/replay")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplay_Unknown(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.post(t, "/api/v1/dead-letters/"+uuid.NewString()+"/replay")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystemEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.get(t, "/api/v1/system/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", body["data"].(map[string]any)["message"])

	rec, body = f.get(t, "/api/v1/system/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["data"].(map[string]any)["status"])
}

func TestRequestIDPropagated(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/99", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "trace-123", body["error"].(map[string]any)["request_id"])
}
