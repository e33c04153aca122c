package http_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/blockhaven/ticketd/internal/access"
	"github.com/blockhaven/ticketd/internal/api/dto"
	apihttp "github.com/blockhaven/ticketd/internal/api/http"
	"github.com/blockhaven/ticketd/internal/api/http/handlers"
	"github.com/blockhaven/ticketd/internal/auth"
	"github.com/blockhaven/ticketd/internal/config"
	"github.com/blockhaven/ticketd/internal/directory"
	"github.com/blockhaven/ticketd/internal/events"
	"github.com/blockhaven/ticketd/internal/observability"
	"github.com/blockhaven/ticketd/internal/repository"
	"github.com/blockhaven/ticketd/internal/service"
	"github.com/blockhaven/ticketd/internal/stats"
	"github.com/blockhaven/ticketd/internal/worker"
)

const testBridgeKey = "test-bridge-key"

// apiFixture runs the full standalone stack against an in-memory database.
type apiFixture struct {
	app *fiber.App
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := repository.NewSQLiteTicketRepository(db)
	if err != nil {
		t.Fatalf("init repository: %v", err)
	}

	dir := directory.NewMemoryDirectory(nil)
	policy := access.NewPolicy(config.ModeStandalone, config.PermissionsConfig{}, nil, dir, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())

	ticketSvc := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repo,
		Policy:     policy,
		Aggregator: stats.NewAggregator(5),
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})

	hash, err := auth.HashBridgeKey(testBridgeKey, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash bridge key: %v", err)
	}
	authSvc := service.NewAuthService(config.Config{
		Auth: config.AuthConfig{JWTSecret: "unit-secret", SessionTTLMinutes: 60, BridgeKeyHash: hash},
	})

	notifySvc := service.NewNotificationService(dispatcher, dir, dir, policy, zap.NewNop())
	worker.StartNotificationWorker(notifySvc, nil)

	app := fiber.New()
	apihttp.RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 5*time.Second)
	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Health:         handlers.NewHealthHandler("ticketd", "test", nil),
		Session:        handlers.NewSessionHandler(authSvc, dir),
		Tickets:        handlers.NewTicketsHandler(ticketSvc),
		Notices:        handlers.NewNoticesHandler(dir),
		AuthMiddleware: auth.NewMiddleware(authSvc.TokenManager()),
	})
	return &apiFixture{app: app}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (f *apiFixture) openSession(t *testing.T, name string, elevated bool) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/session", "", dto.OpenSessionRequest{
		BridgeKey: testBridgeKey,
		Name:      name,
		Elevated:  elevated,
		Server:    "lobby-1",
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("open session for %s: status %d body=%s", name, resp.StatusCode, string(body))
	}
	var env struct {
		Data dto.SessionResponse `json:"data"`
	}
	decodeBody(t, resp, &env)
	if env.Data.Token == "" {
		t.Fatalf("expected token for %s", name)
	}
	return env.Data.Token
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type ticketEnvelope struct {
	Data dto.TicketResponse `json:"data"`
}

type syncEnvelope struct {
	Data dto.SyncResponse `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestHealthLive(t *testing.T) {
	fix := newAPIFixture(t)
	resp := fix.do(t, http.MethodGet, "/health/live", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "alive" || body["service"] != "ticketd" {
		t.Fatalf("unexpected liveness body: %v", body)
	}
}

func TestSessionRejectsBadBridgeKey(t *testing.T) {
	fix := newAPIFixture(t)
	resp := fix.do(t, http.MethodPost, "/session", "", dto.OpenSessionRequest{
		BridgeKey: "wrong-key",
		Name:      "Steve",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var env errorEnvelope
	decodeBody(t, resp, &env)
	if env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %q", env.Error.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	fix := newAPIFixture(t)

	resp := fix.do(t, http.MethodGet, "/sync", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = fix.do(t, http.MethodGet, "/sync", "not-a-real-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
}

func TestCreateAndSyncFlow(t *testing.T) {
	fix := newAPIFixture(t)
	steve := fix.openSession(t, "Steve", false)
	admin := fix.openSession(t, "Admin", true)

	resp := fix.do(t, http.MethodPost, "/tickets", steve, dto.CreateTicketRequest{
		Text:   "chest ate my diamonds",
		Reason: "bug",
	})
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d body=%s", resp.StatusCode, string(body))
	}
	var created ticketEnvelope
	decodeBody(t, resp, &created)
	if created.Data.ID != 1 || created.Data.ShortID != "#1" {
		t.Fatalf("unexpected ticket ids: %+v", created.Data)
	}
	if created.Data.Status != "OPEN" || created.Data.Reason != "BUG" {
		t.Fatalf("unexpected ticket fields: %+v", created.Data)
	}
	if created.Data.Server != "lobby-1" || len(created.Data.Messages) != 1 {
		t.Fatalf("unexpected ticket payload: %+v", created.Data)
	}

	// blank text is dropped without an error
	resp = fix.do(t, http.MethodPost, "/tickets", steve, dto.CreateTicketRequest{Text: "   "})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for blank ticket, got %d", resp.StatusCode)
	}

	resp = fix.do(t, http.MethodGet, "/sync", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var adminSync syncEnvelope
	decodeBody(t, resp, &adminSync)
	if !adminSync.Data.CanManage {
		t.Fatalf("expected management flag for elevated session")
	}
	if len(adminSync.Data.Tickets) != 1 {
		t.Fatalf("expected full ticket set, got %d", len(adminSync.Data.Tickets))
	}
	if adminSync.Data.Stats == nil || adminSync.Data.Stats.TotalTickets != 1 {
		t.Fatalf("expected stats with 1 ticket, got %+v", adminSync.Data.Stats)
	}
	if adminSync.Data.Stats.CountsByReason["BUG"] != 1 {
		t.Fatalf("unexpected reason counts: %v", adminSync.Data.Stats.CountsByReason)
	}

	resp = fix.do(t, http.MethodGet, "/sync", steve, nil)
	var steveSync syncEnvelope
	decodeBody(t, resp, &steveSync)
	if steveSync.Data.CanManage {
		t.Fatalf("expected no management flag for plain session")
	}
	if len(steveSync.Data.Tickets) != 1 || steveSync.Data.Tickets[0].Sender != "Steve" {
		t.Fatalf("expected own tickets only, got %+v", steveSync.Data.Tickets)
	}
	if steveSync.Data.Stats != nil {
		t.Fatalf("expected no stats for plain session")
	}
}

func TestStatusAndMessageFlow(t *testing.T) {
	fix := newAPIFixture(t)
	steve := fix.openSession(t, "Steve", false)
	admin := fix.openSession(t, "Admin", true)

	resp := fix.do(t, http.MethodPost, "/tickets", steve, dto.CreateTicketRequest{Text: "help", Reason: "question"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = fix.do(t, http.MethodPost, "/tickets/1/messages", admin, dto.CreateMessageRequest{Text: "what do you need?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var withReply ticketEnvelope
	decodeBody(t, resp, &withReply)
	if len(withReply.Data.Messages) != 2 || withReply.Data.Messages[1].Sender != "Admin" {
		t.Fatalf("unexpected thread: %+v", withReply.Data.Messages)
	}

	resp = fix.do(t, http.MethodPatch, "/tickets/1/status", admin, dto.UpdateStatusRequest{Status: "answered"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var answered ticketEnvelope
	decodeBody(t, resp, &answered)
	if answered.Data.Status != "ANSWERED" {
		t.Fatalf("expected ANSWERED, got %q", answered.Data.Status)
	}

	// unknown status names are rejected at the boundary
	resp = fix.do(t, http.MethodPatch, "/tickets/1/status", admin, dto.UpdateStatusRequest{Status: "ARCHIVED"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var badStatus errorEnvelope
	decodeBody(t, resp, &badStatus)
	if badStatus.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %q", badStatus.Error.Code)
	}

	// operations on unknown tickets answer empty success
	resp = fix.do(t, http.MethodPatch, "/tickets/999/status", admin, dto.UpdateStatusRequest{Status: "closed"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for unknown ticket, got %d", resp.StatusCode)
	}
	resp = fix.do(t, http.MethodPost, "/tickets/999/messages", admin, dto.CreateMessageRequest{Text: "anyone?"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for unknown ticket, got %d", resp.StatusCode)
	}
}

func TestAccessDeniedEnvelope(t *testing.T) {
	fix := newAPIFixture(t)
	steve := fix.openSession(t, "Steve", false)
	maria := fix.openSession(t, "Maria", false)

	resp := fix.do(t, http.MethodPost, "/tickets", steve, dto.CreateTicketRequest{Text: "private matter", Reason: "other"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = fix.do(t, http.MethodPatch, "/tickets/1/status", maria, dto.UpdateStatusRequest{Status: "closed"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	var env errorEnvelope
	decodeBody(t, resp, &env)
	if env.Error.Code != "ACCESS_DENIED" {
		t.Fatalf("expected ACCESS_DENIED, got %q", env.Error.Code)
	}
	if env.Error.Details["ticket"] != "#1" {
		t.Fatalf("expected ticket short id in details, got %v", env.Error.Details)
	}

	// the ticket is untouched
	resp = fix.do(t, http.MethodGet, "/sync", steve, nil)
	var sync syncEnvelope
	decodeBody(t, resp, &sync)
	if sync.Data.Tickets[0].Status != "OPEN" {
		t.Fatalf("denied action mutated the ticket: %+v", sync.Data.Tickets[0])
	}
}

func TestNoticesDrainAfterMessage(t *testing.T) {
	fix := newAPIFixture(t)
	steve := fix.openSession(t, "Steve", false)
	admin := fix.openSession(t, "Admin", true)

	resp := fix.do(t, http.MethodPost, "/presence/join", steve, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 join, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = fix.do(t, http.MethodPost, "/tickets", steve, dto.CreateTicketRequest{Text: "stuck in wall", Reason: "bug"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = fix.do(t, http.MethodPost, "/tickets/1/messages", admin, dto.CreateMessageRequest{Text: "teleporting you out"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = fix.do(t, http.MethodGet, "/notices", steve, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var env struct {
		Data []dto.NoticeResponse `json:"data"`
	}
	decodeBody(t, resp, &env)
	if len(env.Data) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(env.Data))
	}
	if env.Data[0].Kind != "ticket_message_added" || env.Data[0].Actor != "Admin" || env.Data[0].Ticket != "#1" {
		t.Fatalf("unexpected notice: %+v", env.Data[0])
	}

	// drained queues stay empty
	resp = fix.do(t, http.MethodGet, "/notices", steve, nil)
	decodeBody(t, resp, &env)
	if len(env.Data) != 0 {
		t.Fatalf("expected empty queue after drain, got %d", len(env.Data))
	}
}

func TestDeleteTicketFlow(t *testing.T) {
	fix := newAPIFixture(t)
	steve := fix.openSession(t, "Steve", false)

	resp := fix.do(t, http.MethodPost, "/tickets", steve, dto.CreateTicketRequest{Text: "nevermind", Reason: "other"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = fix.do(t, http.MethodDelete, "/tickets/1", steve, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	// deleting again is still an empty success
	resp = fix.do(t, http.MethodDelete, "/tickets/1", steve, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on repeat delete, got %d", resp.StatusCode)
	}

	resp = fix.do(t, http.MethodGet, "/sync", steve, nil)
	var sync syncEnvelope
	decodeBody(t, resp, &sync)
	if len(sync.Data.Tickets) != 0 {
		t.Fatalf("expected no tickets after delete, got %d", len(sync.Data.Tickets))
	}
}
