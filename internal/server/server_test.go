package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"growit/internal/config"
	"growit/internal/curriculum"
	"growit/internal/db"
	"growit/internal/engine"
	"growit/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	db     *sql.DB
	close  func()
}

func (s *testServer) Close() { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	reg, err := curriculum.Load()
	if err != nil {
		t.Fatalf("load curricula: %v", err)
	}
	cfg := config.Default()
	cfg.Server.JWTSecret = "test-secret"
	e := engine.New(conn, reg, cfg)
	handler, err := New(Config{
		Engine: e,
		Auth:   AuthConfig{JWTSecret: cfg.Server.JWTSecret},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		db:     conn,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, ts *testServer, email, password string) (int, string) {
	t.Helper()
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	res, err := ts.client.Post(ts.URL+"/api/auth/login",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		return res.StatusCode, ""
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(data, &tok); err != nil {
		t.Fatalf("decode token: %v (%s)", err, data)
	}
	if tok.TokenType != "bearer" || tok.AccessToken == "" {
		t.Fatalf("token response = %s", data)
	}
	return res.StatusCode, tok.AccessToken
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)
	res, data := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
}

func TestSignupLoginMe(t *testing.T) {
	ts := newTestServer(t)

	res, data := doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/auth/signup",
		map[string]any{"email": "kim@example.com", "password": "password123"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d: %s", res.StatusCode, data)
	}

	// duplicate email conflicts
	res, data = doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/auth/signup",
		map[string]any{"email": "kim@example.com", "password": "password123"}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup status %d: %s", res.StatusCode, data)
	}

	status, token := login(t, ts, "kim@example.com", "password123")
	if status != http.StatusOK {
		t.Fatalf("login status %d", status)
	}

	res, data = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/users/me", nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, data)
	}
	var me struct {
		Email    string `json:"email"`
		IsActive bool   `json:"is_active"`
	}
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatal(err)
	}
	if me.Email != "kim@example.com" || !me.IsActive {
		t.Fatalf("me = %s", data)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/auth/signup",
		map[string]any{"email": "kim@example.com", "password": "password123"}, nil)

	if status, _ := login(t, ts, "kim@example.com", "wrong"); status != http.StatusUnauthorized {
		t.Fatalf("wrong password status %d", status)
	}
	if status, _ := login(t, ts, "nobody@example.com", "password123"); status != http.StatusUnauthorized {
		t.Fatalf("unknown email status %d", status)
	}
}

func TestLoginInactiveUserLooksLikeBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/auth/signup",
		map[string]any{"email": "kim@example.com", "password": "password123"}, nil)

	postLogin := func(password string) (int, string) {
		form := url.Values{}
		form.Set("username", "kim@example.com")
		form.Set("password", password)
		res, err := ts.client.Post(ts.URL+"/api/auth/login",
			"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		defer res.Body.Close()
		data, _ := io.ReadAll(res.Body)
		return res.StatusCode, string(data)
	}

	wrongStatus, wrongBody := postLogin("wrong")
	if wrongStatus != http.StatusUnauthorized {
		t.Fatalf("wrong password status %d", wrongStatus)
	}

	if _, err := ts.db.Exec(`UPDATE users SET is_active = 0 WHERE email = ?`, "kim@example.com"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	inactiveStatus, inactiveBody := postLogin("password123")
	if inactiveStatus != http.StatusUnauthorized {
		t.Fatalf("inactive login status %d", inactiveStatus)
	}
	if inactiveBody != wrongBody {
		t.Fatalf("inactive body %s differs from bad-credentials body %s", inactiveBody, wrongBody)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/users/me", "/api/study/stats"} {
		res, data := doJSON(t, ts.client, http.MethodGet, ts.URL+path, nil, nil)
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s status %d: %s", path, res.StatusCode, data)
		}
	}
	res, _ := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/users/me", nil, bearer("garbage"))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d", res.StatusCode)
	}
}

func TestStudyProgressFlow(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/auth/signup",
		map[string]any{"email": "kim@example.com", "password": "password123"}, nil)
	_, token := login(t, ts, "kim@example.com", "password123")

	res, data := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/study/stats", nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", res.StatusCode, data)
	}
	var stats struct {
		CurrentStreak     int `json:"current_streak"`
		TodayStudyMinutes int `json:"today_study_minutes"`
		TotalStudyMinutes int `json:"total_study_minutes"`
	}
	json.Unmarshal(data, &stats)
	if stats.CurrentStreak != 0 || stats.TotalStudyMinutes != 0 {
		t.Fatalf("fresh stats = %s", data)
	}

	res, data = doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/study/progress",
		map[string]any{"study_minutes": 15}, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("progress status %d: %s", res.StatusCode, data)
	}
	json.Unmarshal(data, &stats)
	if stats.CurrentStreak != 1 || stats.TodayStudyMinutes != 15 {
		t.Fatalf("after report = %s", data)
	}

	// out of range minutes rejected
	res, data = doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/study/progress",
		map[string]any{"study_minutes": 0}, bearer(token))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero minutes status %d: %s", res.StatusCode, data)
	}
}

func TestCollectEvent(t *testing.T) {
	ts := newTestServer(t)
	res, data := doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/events", map[string]any{
		"event_type":   "mission_completed",
		"anonymous_id": "anon-1",
		"metadata":     map[string]any{"day": 2},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	var accepted struct {
		Status  string `json:"status"`
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(data, &accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.Status != "accepted" || accepted.EventID == "" {
		t.Fatalf("accepted = %s", data)
	}

	// identity required
	res, data = doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/events",
		map[string]any{"event_type": "page_view"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("no identity status %d: %s", res.StatusCode, data)
	}
}

func TestCurriculaEndpoints(t *testing.T) {
	ts := newTestServer(t)

	res, data := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/curricula", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, data)
	}
	var list struct {
		Items []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			TotalDays int    `json:"total_days"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Items) == 0 || list.Items[0].ID != "figma-basics" || list.Items[0].TotalDays != 10 {
		t.Fatalf("list = %s", data)
	}

	res, data = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/curricula/figma-basics/days/1", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("day status %d: %s", res.StatusCode, data)
	}
	var day struct {
		Day   int    `json:"day"`
		Title string `json:"title"`
	}
	json.Unmarshal(data, &day)
	if day.Day != 1 || day.Title == "" {
		t.Fatalf("day = %s", data)
	}

	res, data = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/curricula/figma-basics/days/3/mission?lang=ko", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mission status %d: %s", res.StatusCode, data)
	}
	var m struct {
		Day   int `json:"day"`
		Steps []struct {
			Kind    string   `json:"kind"`
			Options []string `json:"options"`
			Correct *int     `json:"correct"`
		} `json:"steps"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.Day != 3 || len(m.Steps) == 0 {
		t.Fatalf("mission = %s", data)
	}
	foundQuiz := false
	for _, s := range m.Steps {
		if s.Kind == "quiz" {
			foundQuiz = true
			if len(s.Options) < 2 || s.Correct == nil {
				t.Fatalf("quiz step = %+v", s)
			}
		}
	}
	if !foundQuiz {
		t.Fatal("mission has no quiz step")
	}

	res, data = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/curricula/nope", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown curriculum status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/curricula/figma-basics/days/42", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown day status %d: %s", res.StatusCode, data)
	}
}

func TestErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)
	res, data := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/curricula/nope", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", res.StatusCode)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, data)
	}
	if envelope.Error.Code != "not_found" || envelope.Error.Message == "" {
		t.Fatalf("envelope = %s", data)
	}
}

func TestOpenAPIServed(t *testing.T) {
	ts := newTestServer(t)
	res, data := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var oas map[string]any
	if err := json.Unmarshal(data, &oas); err != nil {
		t.Fatalf("invalid openapi json: %v", err)
	}
	if _, ok := oas["paths"]; !ok {
		t.Fatal("openapi has no paths")
	}
}
