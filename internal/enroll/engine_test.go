package enroll

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider plays both the identity provider and the resource provider
// for end-to-end engine runs. Every login issues a fresh sequential token
// so the tests can tell which credential the submit used.
type fakeProvider struct {
	t *testing.T

	mu           sync.Mutex
	enrollFrom   func() time.Time
	logins       int
	lessonHits   int
	enrollHits   int
	enrollTokens []string
	enrollStatus int

	srv *httptest.Server
}

func newFakeProvider(t *testing.T, enrollFrom func() time.Time) *fakeProvider {
	p := &fakeProvider{
		t:            t,
		enrollFrom:   enrollFrom,
		enrollStatus: http.StatusCreated,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/Account/Login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprintf(w, loginFormPage, "csrf-1")
			return
		}

		p.mu.Lock()
		p.logins++
		token := fmt.Sprintf("tok-%d", p.logins)
		p.mu.Unlock()

		http.Redirect(w, r, "/redirect.html#access_token="+token, http.StatusFound)
	})

	mux.HandleFunc("/redirect.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/Lessons/12345", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.lessonHits++
		from := p.enrollFrom()
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":{"id":12345,"enrollmentFrom":%q}}`, from.Format(time.RFC3339))
	})

	mux.HandleFunc("/Lessons/12345/Enrollment", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.enrollHits++
		p.enrollTokens = append(p.enrollTokens, r.Header.Get("Authorization"))
		status := p.enrollStatus
		p.mu.Unlock()

		w.WriteHeader(status)
		if status == http.StatusCreated {
			w.Write([]byte(`{"data":{"placeNumber":1}}`))
		} else {
			w.Write([]byte(`{"errors":["lesson is fully booked"]}`))
		}
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) engine(clock *fakeClock) *Engine {
	engine := NewEngine(Config{
		LoginURL:      p.srv.URL + "/Account/Login",
		APIBaseURL:    p.srv.URL,
		RefreshMargin: 60 * time.Second,
		PollInterval:  100 * time.Millisecond,
	})
	engine.now = clock.now
	engine.sleep = clock.sleep
	return engine
}

const lessonLocator = "https://schalter.example.org/tn/lessons/12345"

func TestEngine_Run_LongWait(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	deadline := base.Add(2 * time.Hour)

	clock := &fakeClock{current: base}
	provider := newFakeProvider(t, func() time.Time { return deadline })
	engine := provider.engine(clock)

	outcome, err := engine.Run(context.Background(), testLogger(), testCredentials(), lessonLocator)
	require.NoError(t, err)
	assert.True(t, outcome.Enrolled)

	// One coarse sleep of deadline minus the margin, then only fine
	// slices of at most one poll interval.
	require.NotEmpty(t, clock.sleeps)
	assert.Equal(t, 2*time.Hour-60*time.Second, clock.sleeps[0])
	for _, d := range clock.sleeps[1:] {
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}

	// Exactly one refresh: two logins, two lesson fetches.
	assert.Equal(t, 2, provider.logins)
	assert.Equal(t, 2, provider.lessonHits)

	// The submit fires once, with the refreshed token.
	require.Equal(t, 1, provider.enrollHits)
	assert.Equal(t, "Bearer tok-2", provider.enrollTokens[0])
}

func TestEngine_Run_ShortWait(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	deadline := base.Add(30 * time.Second)

	clock := &fakeClock{current: base}
	provider := newFakeProvider(t, func() time.Time { return deadline })
	engine := provider.engine(clock)

	outcome, err := engine.Run(context.Background(), testLogger(), testCredentials(), lessonLocator)
	require.NoError(t, err)
	assert.True(t, outcome.Enrolled)

	// No coarse sleep inside the margin: every slice is fine-grained.
	for _, d := range clock.sleeps {
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}

	// Immediate refresh, but no second lesson fetch on the short path.
	assert.Equal(t, 2, provider.logins)
	assert.Equal(t, 1, provider.lessonHits)

	require.Equal(t, 1, provider.enrollHits)
	assert.Equal(t, "Bearer tok-2", provider.enrollTokens[0])
}

func TestEngine_Run_DeadlinePassed(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	deadline := base.Add(-10 * time.Minute)

	clock := &fakeClock{current: base}
	provider := newFakeProvider(t, func() time.Time { return deadline })
	engine := provider.engine(clock)

	outcome, err := engine.Run(context.Background(), testLogger(), testCredentials(), lessonLocator)
	require.NoError(t, err)
	assert.True(t, outcome.Enrolled)

	// No refresh, no wait: the original credential fires immediately.
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 1, provider.logins)
	assert.Equal(t, 1, provider.lessonHits)

	require.Equal(t, 1, provider.enrollHits)
	assert.Equal(t, "Bearer tok-1", provider.enrollTokens[0])
}

func TestEngine_Run_Rejected(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	clock := &fakeClock{current: base}
	provider := newFakeProvider(t, func() time.Time { return base.Add(-time.Minute) })
	provider.enrollStatus = http.StatusUnprocessableEntity
	engine := provider.engine(clock)

	outcome, err := engine.Run(context.Background(), testLogger(), testCredentials(), lessonLocator)
	require.NoError(t, err)

	assert.False(t, outcome.Enrolled)
	assert.Contains(t, outcome.Message, "422")
	assert.Contains(t, outcome.Message, "fully booked")
}

func TestEngine_Run_LoginWithoutToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Account/Login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprintf(w, loginFormPage, "csrf-1")
			return
		}
		http.Redirect(w, r, "/redirect.html", http.StatusFound)
	})
	mux.HandleFunc("/redirect.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	var lessonHits int
	mux.HandleFunc("/Lessons/", func(w http.ResponseWriter, r *http.Request) {
		lessonHits++
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewEngine(Config{
		LoginURL:   srv.URL + "/Account/Login",
		APIBaseURL: srv.URL,
	})

	_, err := engine.Run(context.Background(), testLogger(), testCredentials(), lessonLocator)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, lessonHits, "authentication must fail before any lesson is resolved")
}
