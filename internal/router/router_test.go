package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindbridge/internal/auth"
	"mindbridge/internal/cache"
	"mindbridge/internal/config"
	"mindbridge/internal/db/dbtest"
	"mindbridge/internal/handler"
	"mindbridge/internal/model"
	"mindbridge/internal/repository"
	"mindbridge/internal/service"
)

type testServer struct {
	e     *echo.Echo
	users service.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gormDB := dbtest.Open(t)
	cfg := &config.Config{JWTSecret: "test-secret"}

	// a nil cache client turns redis off
	var cacheClient *cache.Client
	jwtService := auth.NewJWTService(cfg.JWTSecret, 0, 0)
	tokenStore := auth.NewTokenStore(cacheClient)

	userRepo := repository.NewUserRepository(gormDB)
	convRepo := repository.NewConversationRepository(gormDB)
	msgRepo := repository.NewMessageRepository(gormDB)

	authService := service.NewAuthService(userRepo, jwtService, tokenStore)
	userService := service.NewUserService(userRepo, cacheClient, tokenStore)
	convService := service.NewConversationService(convRepo, userRepo)
	msgService := service.NewMessageService(convRepo, msgRepo)

	e := echo.New()
	Register(e, cfg, gormDB, cacheClient, jwtService, tokenStore, userService,
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(userService, authService),
		handler.NewConversationHandler(convService),
		handler.NewMessageHandler(msgService),
	)
	return &testServer{e: e, users: userService}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

type account struct {
	ID    string
	Token string
}

func (s *testServer) login(t *testing.T, username, password string) account {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handler.AuthResponse
	decode(t, rec, &resp)
	return account{ID: resp.User.ID.String(), Token: resp.AccessToken}
}

func (s *testServer) student(t *testing.T, username string) account {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": username, "password": "password123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return s.login(t, username, "password123")
}

func (s *testServer) staff(t *testing.T, username string, role model.Role) account {
	t.Helper()
	_, _, err := s.users.CreateUser(context.Background(), username, "password123", role)
	require.NoError(t, err)
	return s.login(t, username, "password123")
}

func (s *testServer) open(t *testing.T, owner account, urgency model.Urgency, anonymous bool) model.Conversation {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/conversations", owner.Token, handler.CreateConversationRequest{
		Category:    model.CategoryAcademic,
		Urgency:     urgency,
		IsAnonymous: anonymous,
		Message:     "I need to talk to someone",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var conv model.Conversation
	decode(t, rec, &conv)
	return conv
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/conversations", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	s := newTestServer(t)
	s.student(t, "alice")
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "alice", "password": "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecoverWithRecoveryKey(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "forgetful", "password": "password123"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var reg handler.RegisterResponse
	decode(t, rec, &reg)
	require.NotEmpty(t, reg.RecoveryKey)
	assert.Equal(t, model.RoleStudent, reg.User.Role)

	rec = s.do(t, http.MethodPost, "/api/auth/recover", "", handler.RecoverRequest{
		Username: "forgetful", RecoveryKey: "wrong", NewPassword: "new-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/recover", "", handler.RecoverRequest{
		Username: "forgetful", RecoveryKey: reg.RecoveryKey, NewPassword: "new-password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rotated handler.RecoveryKeyResponse
	decode(t, rec, &rotated)
	assert.NotEqual(t, reg.RecoveryKey, rotated.RecoveryKey)

	s.login(t, "forgetful", "new-password")
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)
	student := s.student(t, "alice")
	counselor := s.staff(t, "carol", model.RoleCounselor)

	rec := s.do(t, http.MethodPost, "/api/conversations", counselor.Token, handler.CreateConversationRequest{
		Category: model.CategoryOther, Message: "hi",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/conversations/priority-queue", student.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users", counselor.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPriorityQueueRanksEmergencyFirst(t *testing.T) {
	s := newTestServer(t)
	a := s.student(t, "alice")
	b := s.student(t, "bob")
	counselor := s.staff(t, "carol", model.RoleCounselor)

	low := s.open(t, a, model.UrgencyLow, false)
	emergency := s.open(t, b, model.UrgencyEmergency, false)

	rec := s.do(t, http.MethodGet, "/api/conversations/priority-queue", counselor.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var queue []model.Conversation
	decode(t, rec, &queue)
	require.Len(t, queue, 2)
	assert.Equal(t, emergency.ID, queue[0].ID)
	assert.Equal(t, low.ID, queue[1].ID)
}

func TestOtherCounselorCannotUpdate(t *testing.T) {
	s := newTestServer(t)
	a := s.student(t, "alice")
	c := s.staff(t, "carol", model.RoleCounselor)
	d := s.staff(t, "dave", model.RoleCounselor)
	conv := s.open(t, a, model.UrgencyHigh, false)

	rec := s.do(t, http.MethodPatch, "/api/conversations/"+conv.ID.String()+"/assign/"+c.ID, c.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var assigned model.Conversation
	decode(t, rec, &assigned)
	assert.Equal(t, model.StatusInProgress, assigned.Status)

	rec = s.do(t, http.MethodPatch, "/api/conversations/"+conv.ID.String(), d.Token, map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/conversations/"+conv.ID.String(), d.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/conversations/"+conv.ID.String(), c.Token, map[string]string{"status": "resolved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resolved model.Conversation
	decode(t, rec, &resolved)
	assert.Equal(t, model.StatusResolved, resolved.Status)
}

func TestStudentIsolation(t *testing.T) {
	s := newTestServer(t)
	a := s.student(t, "alice")
	b := s.student(t, "bob")
	conv := s.open(t, a, model.UrgencyMedium, false)
	path := "/api/conversations/" + conv.ID.String()

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, path, b.Token, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, path+"/messages", b.Token, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, path+"/messages", b.Token, map[string]string{"content": "hi"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, path+"/toggle-anonymity", b.Token, nil).Code)

	rec := s.do(t, http.MethodGet, "/api/conversations", b.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Conversation
	decode(t, rec, &list)
	assert.Empty(t, list)
}

func TestAnonymityToggle(t *testing.T) {
	s := newTestServer(t)
	a := s.student(t, "alice")
	counselor := s.staff(t, "carol", model.RoleCounselor)
	conv := s.open(t, a, model.UrgencyMedium, false)
	path := "/api/conversations/" + conv.ID.String()

	ownerName := func() string {
		rec := s.do(t, http.MethodGet, path, counselor.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got model.Conversation
		decode(t, rec, &got)
		require.NotNil(t, got.User)
		return got.User.Username
	}

	assert.Equal(t, "alice", ownerName())

	rec := s.do(t, http.MethodPatch, path+"/toggle-anonymity", a.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.AnonymousUsername, ownerName())

	rec = s.do(t, http.MethodPatch, path+"/toggle-anonymity", a.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", ownerName())
}

func TestMessagingAndReadState(t *testing.T) {
	s := newTestServer(t)
	a := s.student(t, "alice")
	c := s.staff(t, "carol", model.RoleCounselor)
	conv := s.open(t, a, model.UrgencyHigh, false)
	path := "/api/conversations/" + conv.ID.String()

	// unassigned counselors can read but not reply
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path+"/messages", c.Token, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, path+"/messages", c.Token, map[string]string{"content": "hi"}).Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPatch, path+"/assign/"+c.ID, c.Token, nil).Code)

	var sent model.Message
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, path+"/messages", c.Token, map[string]string{"content": "how can I help?"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &sent)
		assert.Equal(t, model.SenderCounselor, sent.SenderType)
	}

	var unread handler.UnreadCountResponse
	decode(t, s.do(t, http.MethodGet, "/api/messages/unread-count", a.Token, nil), &unread)
	assert.Equal(t, int64(2), unread.Count)

	rec := s.do(t, http.MethodPatch, path+"/messages/"+sent.ID.String()+"/read", c.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "authors cannot mark their own message")

	var marked handler.MarkAllReadResponse
	decode(t, s.do(t, http.MethodPatch, path+"/messages/mark-all-read", a.Token, nil), &marked)
	assert.Equal(t, int64(2), marked.Updated)
	decode(t, s.do(t, http.MethodPatch, path+"/messages/mark-all-read", a.Token, nil), &marked)
	assert.Equal(t, int64(0), marked.Updated)

	decode(t, s.do(t, http.MethodGet, "/api/messages/unread-count", a.Token, nil), &unread)
	assert.Zero(t, unread.Count)

	rec = s.do(t, http.MethodGet, path+"/messages", a.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []model.Message
	decode(t, rec, &msgs)
	require.Len(t, msgs, 3)
	assert.Equal(t, model.SenderStudent, msgs[0].SenderType)
}

func TestCascadingDelete(t *testing.T) {
	s := newTestServer(t)
	a := s.student(t, "alice")
	admin := s.staff(t, "root", model.RoleAdmin)
	conv := s.open(t, a, model.UrgencyLow, false)

	rec := s.do(t, http.MethodDelete, "/api/users/"+a.ID, admin.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/conversations/"+conv.ID.String(), admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/users/"+a.ID, admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletedUserTokenRejected(t *testing.T) {
	s := newTestServer(t)
	b := s.student(t, "bob")
	admin := s.staff(t, "root", model.RoleAdmin)

	rec := s.do(t, http.MethodDelete, "/api/users/"+b.ID, admin.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/conversations", b.Token, handler.CreateConversationRequest{
		Category: model.CategoryAcademic,
		Urgency:  model.UrgencyLow,
		Message:  "still here?",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())

	var page []model.Conversation
	decode(t, s.do(t, http.MethodGet, "/api/conversations", admin.Token, nil), &page)
	assert.Empty(t, page)
}

func TestDeactivatedUserTokenRejected(t *testing.T) {
	s := newTestServer(t)
	a := s.student(t, "alice")
	admin := s.staff(t, "root", model.RoleAdmin)

	rec := s.do(t, http.MethodPatch, "/api/users/"+a.ID+"/active", admin.Token, map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/conversations", a.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeactivatedUserCannotLogin(t *testing.T) {
	s := newTestServer(t)
	a := s.student(t, "alice")
	admin := s.staff(t, "root", model.RoleAdmin)

	rec := s.do(t, http.MethodPatch, "/api/users/"+a.ID+"/active", admin.Token, map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStatistics(t *testing.T) {
	s := newTestServer(t)
	a := s.student(t, "alice")
	b := s.student(t, "bob")
	admin := s.staff(t, "root", model.RoleAdmin)
	s.open(t, a, model.UrgencyLow, false)
	s.open(t, b, model.UrgencyEmergency, false)

	var own map[string]interface{}
	decode(t, s.do(t, http.MethodGet, "/api/conversations/statistics", a.Token, nil), &own)
	assert.EqualValues(t, 1, own["total"])

	var all map[string]interface{}
	decode(t, s.do(t, http.MethodGet, "/api/conversations/statistics", admin.Token, nil), &all)
	assert.EqualValues(t, 2, all["total"])
	assert.EqualValues(t, 2, all["unassigned"])
}
