package handlers_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"todoweb/internal/config"
	"todoweb/internal/models"
	"todoweb/internal/repository"
	"todoweb/internal/routes"
	"todoweb/internal/service"
)

// In-memory stand-ins for postgres, Redis sessions and flash queues.

type memTodoRepo struct {
	nextID int64
	clock  int64
	todos  map[int64]models.Todo
}

func (r *memTodoRepo) ListByOwner(ctx context.Context, ownerID int64) ([]models.Todo, error) {
	var out []models.Todo
	for _, t := range r.todos {
		if t.AuthorID == ownerID {
			t.Username = "user" + strconv.FormatInt(t.AuthorID, 10)
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

func (r *memTodoRepo) SearchByOwner(ctx context.Context, ownerID int64, query string) ([]models.Todo, error) {
	all, _ := r.ListByOwner(ctx, ownerID)
	var out []models.Todo
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Title), strings.ToLower(query)) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTodoRepo) GetByID(ctx context.Context, id int64) (models.Todo, error) {
	t, ok := r.todos[id]
	if !ok {
		return models.Todo{}, sql.ErrNoRows
	}
	return t, nil
}

func (r *memTodoRepo) Insert(ctx context.Context, t *models.Todo) error {
	r.nextID++
	r.clock++
	t.ID = r.nextID
	t.Created = time.Unix(r.clock, 0)
	r.todos[t.ID] = *t
	return nil
}

func (r *memTodoRepo) Update(ctx context.Context, t models.Todo) error {
	if existing, ok := r.todos[t.ID]; ok && existing.AuthorID == t.AuthorID {
		t.Created = existing.Created
		r.todos[t.ID] = t
	}
	return nil
}

func (r *memTodoRepo) Delete(ctx context.Context, id, ownerID int64) error {
	if t, ok := r.todos[id]; ok && t.AuthorID == ownerID {
		delete(r.todos, id)
	}
	return nil
}

type memUserRepo struct {
	nextID int64
	byName map[string]models.User
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	u, ok := r.byName[username]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id int64) (models.User, error) {
	for _, u := range r.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

func (r *memUserRepo) Insert(ctx context.Context, username, passwordHash string) (models.User, error) {
	if _, ok := r.byName[username]; ok {
		return models.User{}, repository.ErrDuplicateUsername
	}
	r.nextID++
	u := models.User{ID: r.nextID, Username: username, PasswordHash: passwordHash, Created: time.Now()}
	r.byName[username] = u
	return u, nil
}

type memEventRepo struct {
	events []models.TodoEvent
}

func (r *memEventRepo) Insert(ctx context.Context, e models.TodoEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *memEventRepo) ListByOwner(ctx context.Context, ownerID int64, limit int) ([]models.TodoEvent, error) {
	var out []models.TodoEvent
	for _, e := range r.events {
		if e.AuthorID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memSessions struct {
	nextID int
	byID   map[string]int64
}

func (s *memSessions) Create(ctx context.Context, userID int64) (string, error) {
	s.nextID++
	id := "sess-" + strconv.Itoa(s.nextID)
	s.byID[id] = userID
	return id, nil
}

func (s *memSessions) GetUserID(ctx context.Context, sessionID string) (int64, bool) {
	id, ok := s.byID[sessionID]
	return id, ok
}

func (s *memSessions) Delete(ctx context.Context, sessionID string) error {
	delete(s.byID, sessionID)
	return nil
}

type memFlashes struct {
	queues map[string][]models.Flash
}

func (f *memFlashes) Push(ctx context.Context, sessionID string, fl models.Flash) {
	if sessionID != "" {
		f.queues[sessionID] = append(f.queues[sessionID], fl)
	}
}

func (f *memFlashes) Pop(ctx context.Context, sessionID string) []models.Flash {
	out := f.queues[sessionID]
	delete(f.queues, sessionID)
	return out
}

type testApp struct {
	router   *gin.Engine
	todoRepo *memTodoRepo
	sessions *memSessions
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	todoRepo := &memTodoRepo{todos: map[int64]models.Todo{}}
	sessions := &memSessions{byID: map[string]int64{}}
	deps := routes.Deps{
		Todos:    service.NewTodoService(todoRepo, nil, nil),
		Users:    service.NewUserService(&memUserRepo{byName: map[string]models.User{}}),
		Events:   &memEventRepo{},
		Sessions: sessions,
		Flashes:  &memFlashes{queues: map[string][]models.Flash{}},
		Cfg: &config.Config{
			SessionTTL:  time.Hour,
			JWTSecret:   "test-secret",
			APITokenTTL: time.Hour,
		},
	}
	return &testApp{router: routes.Router(deps), todoRepo: todoRepo, sessions: sessions}
}

func (a *testApp) loginAs(t *testing.T, userID int64) *http.Cookie {
	t.Helper()
	sid, err := a.sessions.Create(context.Background(), userID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return &http.Cookie{Name: "session_id", Value: sid}
}

func (a *testApp) do(t *testing.T, method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	app := newTestApp(t)
	for _, target := range []string{"/todo/", "/todo/search?query=x", "/todo/create"} {
		w := app.do(t, http.MethodGet, target, nil, nil)
		if w.Code != http.StatusFound {
			t.Fatalf("%s: expected 302, got %d", target, w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/auth/login" {
			t.Fatalf("%s: expected redirect to /auth/login, got %q", target, loc)
		}
	}
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/auth/register",
		url.Values{"username": {"alice"}, "password": {"pw"}}, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("register: expected 302, got %d", w.Code)
	}
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "session_id" && c.Value != "" {
			session = c
		}
	}
	if session == nil {
		t.Fatal("register did not set a session cookie")
	}

	if w := app.do(t, http.MethodGet, "/todo/", nil, session); w.Code != http.StatusOK {
		t.Fatalf("list with session: expected 200, got %d", w.Code)
	}

	w = app.do(t, http.MethodPost, "/auth/login",
		url.Values{"username": {"alice"}, "password": {"nope"}}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}

	w = app.do(t, http.MethodPost, "/auth/logout", nil, session)
	if w.Code != http.StatusFound {
		t.Fatalf("logout: expected 302, got %d", w.Code)
	}
	if w := app.do(t, http.MethodGet, "/todo/", nil, session); w.Code != http.StatusFound {
		t.Fatalf("after logout: expected redirect, got %d", w.Code)
	}
}

func TestCreateFlow(t *testing.T) {
	app := newTestApp(t)
	session := app.loginAs(t, 1)

	if w := app.do(t, http.MethodGet, "/todo/create", nil, session); w.Code != http.StatusOK {
		t.Fatalf("create form: expected 200, got %d", w.Code)
	}

	w := app.do(t, http.MethodPost, "/todo/create",
		url.Values{"title": {"Buy Milk"}, "detail": {""}, "duedate": {"2030-01-15"}}, session)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/todo/" {
		t.Fatalf("create: expected redirect to /todo/, got %d %q", w.Code, w.Header().Get("Location"))
	}

	w = app.do(t, http.MethodGet, "/todo/", nil, session)
	body := w.Body.String()
	if !strings.Contains(body, "Buy Milk") || !strings.Contains(body, "Pending") {
		t.Fatalf("list missing created todo, body: %s", body)
	}
	if len(app.todoRepo.todos) != 1 {
		t.Fatalf("expected 1 stored todo, got %d", len(app.todoRepo.todos))
	}
	for _, stored := range app.todoRepo.todos {
		if stored.Detail != "Buy Milk" {
			t.Fatalf("blank detail should default to title, got %q", stored.Detail)
		}
	}
}

func TestCreateValidationFlashes(t *testing.T) {
	app := newTestApp(t)
	session := app.loginAs(t, 1)

	w := app.do(t, http.MethodPost, "/todo/create",
		url.Values{"title": {"  "}, "detail": {"d"}, "duedate": {"2030-01-15"}}, session)
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect on empty title, got %d", w.Code)
	}
	body := app.do(t, http.MethodGet, "/todo/", nil, session).Body.String()
	if !strings.Contains(body, "Title is required") {
		t.Fatal("missing empty-title flash on the next page")
	}

	w = app.do(t, http.MethodPost, "/todo/create",
		url.Values{"title": {"T"}, "detail": {"d"}, "duedate": {"2024-13-40"}}, session)
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect on bad date, got %d", w.Code)
	}
	body = app.do(t, http.MethodGet, "/todo/", nil, session).Body.String()
	if !strings.Contains(body, "Invalid due date format") {
		t.Fatal("missing bad-date flash on the next page")
	}

	if len(app.todoRepo.todos) != 0 {
		t.Fatalf("validation failures persisted rows: %d", len(app.todoRepo.todos))
	}
}

func TestSearchScopedAndFiltered(t *testing.T) {
	app := newTestApp(t)
	alice := app.loginAs(t, 1)
	bob := app.loginAs(t, 2)

	app.do(t, http.MethodPost, "/todo/create",
		url.Values{"title": {"Buy Milk"}, "detail": {"d"}, "duedate": {"2030-01-15"}}, alice)
	app.do(t, http.MethodPost, "/todo/create",
		url.Values{"title": {"Walk dog"}, "detail": {"d"}, "duedate": {"2030-01-16"}}, alice)
	app.do(t, http.MethodPost, "/todo/create",
		url.Values{"title": {"Bob milk"}, "detail": {"d"}, "duedate": {"2030-01-17"}}, bob)

	body := app.do(t, http.MethodGet, "/todo/search?query=MILK", nil, alice).Body.String()
	if !strings.Contains(body, "Buy Milk") {
		t.Fatal("search missed a case-insensitive match")
	}
	if strings.Contains(body, "Walk dog") {
		t.Fatal("search returned a non-matching title")
	}
	if strings.Contains(body, "Bob milk") {
		t.Fatal("search leaked another owner's todo")
	}

	body = app.do(t, http.MethodGet, "/todo/search?query=", nil, alice).Body.String()
	if !strings.Contains(body, "Buy Milk") || !strings.Contains(body, "Walk dog") {
		t.Fatal("blank search should behave like the full list")
	}
}

func TestUpdateFlow(t *testing.T) {
	app := newTestApp(t)
	alice := app.loginAs(t, 1)

	app.do(t, http.MethodPost, "/todo/create",
		url.Values{"title": {"T"}, "detail": {"D"}, "duedate": {"2030-01-15"}}, alice)
	var id int64
	for storedID := range app.todoRepo.todos {
		id = storedID
	}
	target := "/todo/" + strconv.FormatInt(id, 10) + "/update"

	body := app.do(t, http.MethodGet, target, nil, alice).Body.String()
	if !strings.Contains(body, `value="T"`) || !strings.Contains(body, `value="2030-01-15"`) {
		t.Fatalf("update form not pre-filled, body: %s", body)
	}

	w := app.do(t, http.MethodPost, target,
		url.Values{"title": {"T"}, "detail": {"D"}, "status": {"Done"}, "duedate": {"2030-01-15"}}, alice)
	if w.Code != http.StatusFound {
		t.Fatalf("update: expected 302, got %d", w.Code)
	}
	body = app.do(t, http.MethodGet, "/todo/", nil, alice).Body.String()
	if !strings.Contains(body, "Done") || !strings.Contains(body, "Todo updated successfully") {
		t.Fatalf("list missing updated status or flash, body: %s", body)
	}
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	app := newTestApp(t)
	alice := app.loginAs(t, 1)
	bob := app.loginAs(t, 2)

	app.do(t, http.MethodPost, "/todo/create",
		url.Values{"title": {"mine"}, "detail": {"d"}, "duedate": {"2030-01-15"}}, alice)
	var id int64
	for storedID := range app.todoRepo.todos {
		id = storedID
	}
	target := "/todo/" + strconv.FormatInt(id, 10)
	form := url.Values{"title": {"x"}, "detail": {"x"}, "status": {"Done"}, "duedate": {"2030-01-15"}}

	if w := app.do(t, http.MethodPost, target+"/update", form, bob); w.Code != http.StatusForbidden {
		t.Fatalf("foreign update: expected 403, got %d", w.Code)
	}
	if w := app.do(t, http.MethodGet, target+"/update", nil, bob); w.Code != http.StatusForbidden {
		t.Fatalf("foreign update form: expected 403, got %d", w.Code)
	}
	if w := app.do(t, http.MethodPost, target+"/delete", nil, bob); w.Code != http.StatusForbidden {
		t.Fatalf("foreign delete: expected 403, got %d", w.Code)
	}
	if w := app.do(t, http.MethodPost, "/todo/999/update", form, alice); w.Code != http.StatusNotFound {
		t.Fatalf("missing update: expected 404, got %d", w.Code)
	}
	if w := app.do(t, http.MethodPost, "/todo/999/delete", nil, alice); w.Code != http.StatusNotFound {
		t.Fatalf("missing delete: expected 404, got %d", w.Code)
	}

	if app.todoRepo.todos[id].Title != "mine" {
		t.Fatalf("foreign requests mutated the row: %+v", app.todoRepo.todos[id])
	}
}

func TestDeleteFlow(t *testing.T) {
	app := newTestApp(t)
	alice := app.loginAs(t, 1)

	app.do(t, http.MethodPost, "/todo/create",
		url.Values{"title": {"bye"}, "detail": {"d"}, "duedate": {"2030-01-15"}}, alice)
	var id int64
	for storedID := range app.todoRepo.todos {
		id = storedID
	}

	w := app.do(t, http.MethodPost, "/todo/"+strconv.FormatInt(id, 10)+"/delete", nil, alice)
	if w.Code != http.StatusFound {
		t.Fatalf("delete: expected 302, got %d", w.Code)
	}
	body := app.do(t, http.MethodGet, "/todo/", nil, alice).Body.String()
	if strings.Contains(body, "bye") {
		t.Fatal("deleted todo still listed")
	}
	if !strings.Contains(body, "Todo deleted successfully") {
		t.Fatal("missing delete flash")
	}
	if len(app.todoRepo.todos) != 0 {
		t.Fatalf("row still stored after delete: %d", len(app.todoRepo.todos))
	}
}

func TestAPITokenAndList(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/auth/register",
		url.Values{"username": {"alice"}, "password": {"pw"}}, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("register: expected 302, got %d", w.Code)
	}
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "session_id" {
			session = c
		}
	}
	app.do(t, http.MethodPost, "/todo/create",
		url.Values{"title": {"api todo"}, "detail": {"d"}, "duedate": {"2030-01-15"}}, session)

	req := httptest.NewRequest(http.MethodPost, "/api/token",
		strings.NewReader(`{"username":"alice","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("token: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var tokenResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tokenResp); err != nil || tokenResp.Token == "" {
		t.Fatalf("bad token response: %v %s", err, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/todos?query=api", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.Token)
	rec = httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("api list: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var listResp struct {
		Items []models.Todo `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode api list: %v", err)
	}
	if len(listResp.Items) != 1 || listResp.Items[0].Title != "api todo" {
		t.Fatalf("unexpected api list: %+v", listResp.Items)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	rec = httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("api without token: expected 401, got %d", rec.Code)
	}
}
