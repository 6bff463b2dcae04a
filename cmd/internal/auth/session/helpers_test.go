package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coursehub/cmd/internal/clock"
	"coursehub/cmd/security/token"
)

const testSecret = "session-test-secret-0123456789abcdef"

var testStart = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type harness struct {
	cfg       Config
	clock     *clock.Fake
	store     *MemoryStore
	codec     *token.Codec
	svc       *Service
	validator *Validator
	metrics   *recordingMetrics
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Lifetime = 2 * time.Hour
	cfg.InactivityTimeout = 30 * time.Minute
	cfg.ActivityUpdateInterval = time.Minute
	cfg.RetentionWindow = 24 * time.Hour
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, nil)
}

// newHarnessWithStore builds a harness whose validator and service use wrap(store) when wrap is non-nil.
func newHarnessWithStore(t *testing.T, wrap func(*MemoryStore) Store) *harness {
	t.Helper()
	return buildHarness(t, testStart, 30*time.Second, wrap)
}

func buildHarness(t *testing.T, start time.Time, leeway time.Duration, wrap func(*MemoryStore) Store) *harness {
	t.Helper()

	h := &harness{
		cfg:     testConfig(),
		clock:   clock.NewFake(start),
		store:   NewMemoryStore(),
		metrics: &recordingMetrics{counts: map[Reason]int{}},
	}
	codec, err := token.New(token.Config{Secret: testSecret, Issuer: "coursehub-test", Leeway: leeway}, h.clock)
	if err != nil {
		t.Fatalf("token codec: %v", err)
	}
	h.codec = codec

	var st Store = h.store
	if wrap != nil {
		st = wrap(h.store)
	}
	opts := []Option{WithClock(h.clock), WithLogger(discardLogger()), WithMetrics(h.metrics)}
	h.svc = NewService(h.cfg, st, codec, opts...)
	h.validator = NewValidator(h.cfg, st, codec, opts...)
	return h
}

func (h *harness) login(t *testing.T, principalID string) (string, Session) {
	t.Helper()
	raw, sess, err := h.svc.CreateSession(context.Background(), principalID, "student", ClientMeta{
		Address: "203.0.113.7",
		Agent:   "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
	})
	if err != nil {
		t.Fatalf("create session for %s: %v", principalID, err)
	}
	return raw, sess
}

func (h *harness) validate(t *testing.T, raw string) Result {
	t.Helper()
	res, err := h.validator.Validate(context.Background(), raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return res
}

func (h *harness) get(t *testing.T, id string) Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get session %s: %v", id, err)
	}
	return s
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[Reason]int
	swept  int64
	purged int64
}

func (m *recordingMetrics) ObserveValidation(r Reason) {
	m.mu.Lock()
	m.counts[r]++
	m.mu.Unlock()
}

func (m *recordingMetrics) AddSwept(n int64) {
	m.mu.Lock()
	m.swept += n
	m.mu.Unlock()
}

func (m *recordingMetrics) AddPurged(n int64) {
	m.mu.Lock()
	m.purged += n
	m.mu.Unlock()
}

func (m *recordingMetrics) count(r Reason) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[r]
}

func (m *recordingMetrics) purgedTotal() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purged
}

// countingStore counts activity writes and deactivations.
type countingStore struct {
	Store
	touches      atomic.Int64
	deactivation atomic.Int64
}

func (s *countingStore) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	s.touches.Add(1)
	return s.Store.Touch(ctx, id, at)
}

func (s *countingStore) Deactivate(ctx context.Context, id string, now time.Time, reason DeactivationReason) error {
	s.deactivation.Add(1)
	return s.Store.Deactivate(ctx, id, now, reason)
}

// barrierStore holds every FindActive caller until n lookups have completed.
type barrierStore struct {
	Store
	wg *sync.WaitGroup
}

func (s *barrierStore) FindActive(ctx context.Context, tok, ownerID string) (Session, error) {
	sess, err := s.Store.FindActive(ctx, tok, ownerID)
	s.wg.Done()
	s.wg.Wait()
	return sess, err
}

// closingStore deactivates the session right after it is looked up,
// as a concurrent logout would.
type closingStore struct {
	Store
	now func() time.Time
}

func (s *closingStore) FindActive(ctx context.Context, tok, ownerID string) (Session, error) {
	sess, err := s.Store.FindActive(ctx, tok, ownerID)
	if err == nil {
		_ = s.Store.Deactivate(ctx, sess.ID, s.now(), ReasonLogout)
	}
	return sess, err
}

// stubVerifier returns fixed claims.
type stubVerifier struct {
	claims token.Claims
	err    error
}

func (v stubVerifier) Verify(string) (token.Claims, error) { return v.claims, v.err }

// scriptedIssuer hands out the queued tokens in order.
type scriptedIssuer struct {
	mu     sync.Mutex
	tokens []string
}

func (s *scriptedIssuer) Issue(principalID, role string, lifetime time.Duration) (string, token.Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := s.tokens[0]
	s.tokens = s.tokens[1:]
	return raw, token.Claims{PrincipalID: principalID, Role: role}, nil
}
