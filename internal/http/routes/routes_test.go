package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/briangreenhill/workoutplan/internal/auth"
	"github.com/briangreenhill/workoutplan/internal/billing"
	"github.com/briangreenhill/workoutplan/internal/db"
	appmw "github.com/briangreenhill/workoutplan/internal/http/middleware"
	"github.com/briangreenhill/workoutplan/internal/jobs"
	"github.com/briangreenhill/workoutplan/internal/planner"
	"github.com/briangreenhill/workoutplan/internal/prompt"
	"github.com/briangreenhill/workoutplan/internal/workout"
	"github.com/briangreenhill/workoutplan/web"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]db.User
	plans map[uuid.UUID]db.WorkoutPlan
	subs  map[uuid.UUID]db.Subscription
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[uuid.UUID]db.User{}, plans: map[uuid.UUID]db.WorkoutPlan{}, subs: map[uuid.UUID]db.Subscription{}}
}

func (s *fakeStore) UpsertUserByEmail(_ context.Context, arg db.UpsertUserByEmailParams) (db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.Email == arg.Email {
			if arg.Name.Valid {
				u.Name = arg.Name
			}
			if arg.AvatarUrl.Valid {
				u.AvatarUrl = arg.AvatarUrl
			}
			if arg.ProviderSubject.Valid {
				u.ProviderSubject = arg.ProviderSubject
			}
			s.users[id] = u
			return u, nil
		}
	}
	u := db.User{ID: uuid.New(), Email: arg.Email, Name: arg.Name, AvatarUrl: arg.AvatarUrl, ProviderSubject: arg.ProviderSubject, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.users[u.ID] = u
	return u, nil
}

func (s *fakeStore) GetUser(_ context.Context, id uuid.UUID) (db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (s *fakeStore) CreateWorkoutPlan(_ context.Context, arg db.CreateWorkoutPlanParams) (db.WorkoutPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().Add(time.Duration(len(s.plans)) * time.Millisecond)
	p := db.WorkoutPlan{ID: uuid.New(), UserID: arg.UserID, Profile: arg.Profile, Plan: arg.Plan, Status: arg.Status, CreatedAt: now, UpdatedAt: now}
	s.plans[p.ID] = p
	return p, nil
}

func (s *fakeStore) GetWorkoutPlan(_ context.Context, id uuid.UUID) (db.WorkoutPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return db.WorkoutPlan{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *fakeStore) ListWorkoutPlansByUser(_ context.Context, arg db.ListWorkoutPlansByUserParams) ([]db.WorkoutPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.WorkoutPlan
	for _, p := range s.plans {
		if p.UserID == arg.UserID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (s *fakeStore) FailWorkoutPlan(_ context.Context, arg db.FailWorkoutPlanParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.plans[arg.ID]
	p.Status = db.PlanStatusFailed
	p.Error = pgtype.Text{String: arg.Error, Valid: true}
	s.plans[arg.ID] = p
	return nil
}

func (s *fakeStore) UpsertSubscription(_ context.Context, arg db.UpsertSubscriptionParams) (db.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := db.Subscription{UserID: arg.UserID, PlanType: arg.PlanType, PriceID: arg.PriceID, Status: "pending", UpdatedAt: time.Now()}
	s.subs[arg.UserID] = sub
	return sub, nil
}

func (s *fakeStore) GetSubscriptionByUser(_ context.Context, userID uuid.UUID) (db.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[userID]
	if !ok {
		return db.Subscription{}, pgx.ErrNoRows
	}
	return sub, nil
}

func (s *fakeStore) planCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plans)
}

type fakePlanner struct {
	mu   sync.Mutex
	plan workout.Plan
	err  error
	got  []workout.Profile
}

func (p *fakePlanner) Generate(_ context.Context, profile workout.Profile) (workout.Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, profile)
	if p.err != nil {
		return nil, p.err
	}
	if err := profile.Normalize().Validate(); err != nil {
		return nil, err
	}
	return p.plan, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: jobs.QueuePlans}, nil
}

type fakeMail struct {
	mu   sync.Mutex
	to   string
	html string
}

func (m *fakeMail) Send(to, _, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to, m.html = to, html
	return nil
}

type testEnv struct {
	srv     *httptest.Server
	server  *Server
	store   *fakeStore
	planner *fakePlanner
	queue   *fakeQueue
	mail    *fakeMail
	user    db.User
	token   string
}

func newTestEnv(t *testing.T, configure ...func(*ServerOptions)) *testEnv {
	t.Helper()
	tmpl, err := web.Templates()
	require.NoError(t, err)
	catalog, err := billing.NewCatalog(billing.PriceIDs{Weekly: "price_w", Monthly: "price_m", Yearly: "price_y"})
	require.NoError(t, err)

	env := &testEnv{
		store:   newFakeStore(),
		planner: &fakePlanner{plan: workout.Plan{"Day 1": {WarmUp: "5 min row", MainExercise: "Squat 3x5"}}},
		queue:   &fakeQueue{},
		mail:    &fakeMail{},
	}
	opts := ServerOptions{
		Sess:     scs.New(),
		Tmpl:     tmpl,
		Store:    env.store,
		Planner:  env.planner,
		Catalog:  catalog,
		Magic:    auth.MagicLink{Secret: testSecret, BaseURL: "http://app.test"},
		State:    auth.State{Secret: testSecret},
		Tokens:   auth.Tokens{Secret: testSecret, Issuer: "workoutplan", TTL: time.Hour},
		Email:    env.mail,
		Queue:    env.queue,
		MaxRetry: 3,
		BaseURL:  "http://app.test",
		Log:      zerolog.Nop(),
	}
	for _, c := range configure {
		c(&opts)
	}
	env.server = New(opts)
	env.srv = httptest.NewServer(env.server.Handler())
	t.Cleanup(env.srv.Close)

	env.user, err = env.store.UpsertUserByEmail(context.Background(), db.UpsertUserByEmailParams{Email: "ada@example.com", Name: pgtype.Text{String: "Ada", Valid: true}})
	require.NoError(t, err)
	env.token, _, err = opts.Tokens.Issue(env.user.ID)
	require.NoError(t, err)
	return env
}

func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) api(t *testing.T, method, path, body, token string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client(t).Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.api(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestGenerateRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.api(t, http.MethodPost, "/api/generate-workoutplan", `{}`, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.JSONEq(t, `{"error":"authentication required"}`, body)

	resp, _ = env.api(t, http.MethodPost, "/api/generate-workoutplan", `{}`, "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.api(t, http.MethodPost, "/api/generate-workoutplan",
		`{"goal":"strength","level":"beginner","availableDays":3,"equipment":"dumbbells"}`, env.token)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"trainingPlan":{"Day 1":{"WarmUp":"5 min row","MainExercise":"Squat 3x5"}}}`, body)

	require.Len(t, env.planner.got, 1)
	require.Empty(t, env.planner.got[0].Equipment, "non-array equipment is treated as none")
	require.Equal(t, 1, env.store.planCount(), "inline plans are recorded")
}

func TestGenerateErrors(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{"bad body", `{"goal":`, nil, http.StatusBadRequest, "invalid request body"},
		{"invalid profile", `{"goal":"strength","level":"expert","availableDays":3}`, nil, http.StatusBadRequest, "invalid profile: level must be one of beginner, intermediate, advanced"},
		{"unparsable reply", `{"goal":"strength","level":"beginner","availableDays":3}`, workout.ErrMalformedResponse, http.StatusInternalServerError, "Failed to parse AI response"},
		{"not an object", `{"goal":"strength","level":"beginner","availableDays":3}`, workout.ErrNotAnObject, http.StatusInternalServerError, "Failed to parse workout plan, please try again."},
		{"upstream", `{"goal":"strength","level":"beginner","availableDays":3}`, errors.New("generate workout plan: model request failed (502): bad gateway"), http.StatusInternalServerError, "generate workout plan: model request failed (502): bad gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.planner.err = tc.err
			resp, body := env.api(t, http.MethodPost, "/api/generate-workoutplan", tc.body, env.token)
			require.Equal(t, tc.status, resp.StatusCode)

			var got map[string]string
			require.NoError(t, json.Unmarshal([]byte(body), &got))
			require.Equal(t, tc.message, got["error"])
			require.Zero(t, env.store.planCount())
		})
	}
}

// replyCompleter answers every prompt with the same model output.
type replyCompleter string

func (c replyCompleter) Complete(context.Context, string) (string, error) { return string(c), nil }

func TestGenerateAcceptsLooseModelReplies(t *testing.T) {
	reply := `{"Day 1": {"WarmUp": "Jog", "MainExercise": ["Squat 3x5", "Bench 3x5"], "Cardio": 20}, "Notes": "hydrate"}`
	env := newTestEnv(t, func(o *ServerOptions) {
		o.Planner = planner.New(prompt.NewGenerator(), replyCompleter(reply))
	})

	resp, body := env.api(t, http.MethodPost, "/api/generate-workoutplan",
		`{"goal":"strength","level":"beginner","availableDays":"2"}`, env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.JSONEq(t, `{"trainingPlan":{"Day 1":{"WarmUp":"Jog","MainExercise":"Squat 3x5\nBench 3x5","Cardio":"20"}}}`, body)
	require.Equal(t, 1, env.store.planCount())
}

func TestAsyncWorkoutPlans(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.api(t, http.MethodPost, "/api/workoutplans", `{"goal":"endurance","level":"advanced","availableDays":5,"equipment":["Bike"]}`, env.token)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	require.Equal(t, db.PlanStatusPending, created.Status)
	require.Equal(t, "/api/workoutplans/"+created.ID.String(), resp.Header.Get("Location"))

	require.Len(t, env.queue.tasks, 1)
	var payload jobs.GeneratePlanPayload
	require.NoError(t, json.Unmarshal(env.queue.tasks[0].Payload(), &payload))
	require.Equal(t, jobs.GeneratePlanPayload{PlanID: created.ID, UserID: env.user.ID}, payload)

	resp, body = env.api(t, http.MethodGet, "/api/workoutplans/"+created.ID.String(), "", env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec planRecord
	require.NoError(t, json.Unmarshal([]byte(body), &rec))
	require.Equal(t, created.ID, rec.ID)
	require.JSONEq(t, `{"goal":"endurance","level":"advanced","availableDays":5,"equipment":["Bike"]}`, string(rec.Profile))
	require.Empty(t, rec.TrainingPlan)

	resp, body = env.api(t, http.MethodGet, "/api/workoutplans", "", env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, created.ID.String())

	t.Run("other users get 404", func(t *testing.T) {
		other, err := env.store.UpsertUserByEmail(context.Background(), db.UpsertUserByEmailParams{Email: "bob@example.com"})
		require.NoError(t, err)
		tok, _, err := env.server.Tokens.Issue(other.ID)
		require.NoError(t, err)

		resp, _ := env.api(t, http.MethodGet, "/api/workoutplans/"+created.ID.String(), "", tok)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp, _ = env.api(t, http.MethodGet, "/api/workoutplans/not-a-uuid", "", tok)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid profile is rejected before queueing", func(t *testing.T) {
		resp, _ := env.api(t, http.MethodPost, "/api/workoutplans", `{"goal":"","level":"beginner","availableDays":3}`, env.token)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Len(t, env.queue.tasks, 1)
	})

	t.Run("queue failure marks the plan failed", func(t *testing.T) {
		env.queue.err = errors.New("redis down")
		resp, _ := env.api(t, http.MethodPost, "/api/workoutplans", `{"goal":"strength","level":"beginner","availableDays":2}`, env.token)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		plans, err := env.store.ListWorkoutPlansByUser(context.Background(), db.ListWorkoutPlansByUserParams{UserID: env.user.ID, Limit: 1})
		require.NoError(t, err)
		require.Equal(t, db.PlanStatusFailed, plans[0].Status)
	})
}

func TestAsyncWithoutQueue(t *testing.T) {
	env := newTestEnv(t, func(o *ServerOptions) { o.Queue = nil })
	resp, _ := env.api(t, http.MethodPost, "/api/workoutplans", `{"goal":"strength","level":"beginner","availableDays":2}`, env.token)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Zero(t, env.store.planCount())
}

func TestQueuedGenerationRateLimit(t *testing.T) {
	env := newTestEnv(t, func(o *ServerOptions) { o.Limiter = appmw.NewLimiter(rate.Every(time.Hour), 1) })
	body := `{"goal":"strength","level":"beginner","availableDays":2}`

	resp, _ := env.api(t, http.MethodPost, "/api/workoutplans", body, env.token)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp, _ = env.api(t, http.MethodPost, "/api/workoutplans", body, env.token)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// the inline route is never throttled
	for range 3 {
		resp, _ = env.api(t, http.MethodPost, "/api/generate-workoutplan", body, env.token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestPlansAndSubscribe(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.api(t, http.MethodGet, "/api/plans", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var plans struct {
		Plans []billing.Plan `json:"plans"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &plans))
	require.Len(t, plans.Plans, 3)

	resp, body = env.api(t, http.MethodPost, "/api/subscribe", `{"planType":"month"}`, env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"planType":"month","priceId":"price_m","status":"pending"}`, body)

	resp, body = env.api(t, http.MethodPost, "/api/subscribe", `{"planType":"decade"}`, env.token)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.JSONEq(t, `{"error":"Invalid plan type"}`, body)

	resp, body = env.api(t, http.MethodGet, "/subscribe", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "$9.99 / month")
	require.Contains(t, body, "Sign in to subscribe")
}

func TestIssueToken(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.api(t, http.MethodPost, "/api/token", "", env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	id, err := env.server.Tokens.Parse(got.Token)
	require.NoError(t, err)
	require.Equal(t, env.user.ID, id)
}

func TestPagesRedirectAnonymous(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.api(t, http.MethodGet, "/workoutplan", "", "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/sign-in", resp.Header.Get("Location"))
}

var hrefRe = regexp.MustCompile(`href="([^"]+)"`)

func TestMagicLinkSignInAndPlanForm(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, err := c.PostForm(env.srv.URL+"/auth/magic-link", url.Values{"email": {"Grace@Example.com"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "grace@example.com", env.mail.to)

	m := hrefRe.FindStringSubmatch(env.mail.html)
	require.Len(t, m, 2)
	link, err := url.Parse(m[1])
	require.NoError(t, err)
	require.Equal(t, "/auth/verify", link.Path)

	resp, err = c.Get(env.srv.URL + link.RequestURI())
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/workoutplan", resp.Header.Get("Location"))

	resp, err = c.Get(env.srv.URL + "/workoutplan")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(page), "AI Workout Plan Generator")
	require.Contains(t, string(page), "Please generate a workout plan to see it here.")

	resp, err = c.PostForm(env.srv.URL+"/workoutplan", url.Values{
		"goal": {"strength"}, "level": {"beginner"}, "availableDays": {"2"}, "equipment": {"Barbell, Rack"},
	})
	require.NoError(t, err)
	page, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(page), "Squat 3x5")
	require.Contains(t, string(page), "Day 2")
	require.Contains(t, string(page), "No workout planned for this day.")
	require.NotContains(t, string(page), "Day 3")
	require.Equal(t, []string{"Barbell", "Rack"}, env.planner.got[0].Equipment)

	resp, err = c.Post(env.srv.URL+"/sign-out", "", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, err = c.Get(env.srv.URL + "/profile")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestMagicLinkRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.api(t, http.MethodGet, "/auth/verify?token=forged.token", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c := env.client(t)
	resp, err := c.PostForm(env.srv.URL+"/auth/magic-link", url.Values{"email": {"not an email"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func fakeIdP(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"idp-42","email":"ada@example.com","name":"Ada Lovelace","picture":"https://img.example.com/ada.png"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuthSignIn(t *testing.T) {
	idp := fakeIdP(t)
	env := newTestEnv(t, func(o *ServerOptions) {
		o.Provider = auth.NewProvider(auth.ProviderConfig{
			ClientID:    "client",
			AuthURL:     idp.URL + "/authorize",
			TokenURL:    idp.URL + "/token",
			UserInfoURL: idp.URL + "/userinfo",
			Scopes:      []string{"openid", "email"},
			RedirectURL: "http://app.test/auth/callback",
		})
	})
	c := env.client(t)

	resp, err := c.Get(env.srv.URL + "/auth/start?return_to=/subscribe")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/authorize", loc.Path)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	resp, err = c.Get(env.srv.URL + "/auth/callback?code=good-code&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/subscribe", resp.Header.Get("Location"))

	resp, err = c.Get(env.srv.URL + "/profile")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(page), "Ada Lovelace")
	require.Contains(t, string(page), "https://img.example.com/ada.png")

	u, err := env.store.GetUser(context.Background(), env.user.ID)
	require.NoError(t, err)
	require.Equal(t, "idp-42", u.ProviderSubject.String, "existing account is linked by email")

	t.Run("tampered state", func(t *testing.T) {
		resp, err := c.Get(env.srv.URL + "/auth/callback?code=good-code&state=bogus")
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("denied at provider", func(t *testing.T) {
		resp, err := c.Get(env.srv.URL + "/auth/callback?error=access_denied")
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestOAuthDisabled(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.api(t, http.MethodGet, "/auth/start", "", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSafeReturn(t *testing.T) {
	require.Equal(t, "/subscribe", safeReturn("/subscribe"))
	require.Equal(t, "/workoutplan", safeReturn(""))
	require.Equal(t, "/workoutplan", safeReturn("https://evil.example.com"))
	require.Equal(t, "/workoutplan", safeReturn("//evil.example.com"))
}
