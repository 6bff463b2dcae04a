package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

// storeFactory returns a fresh store plus an owner-id generator valid for that backend.
type storeFactory func(t *testing.T) (Store, func() string)

// runStoreContract exercises the Store behavior every backend must share.
// Timestamps are whole milliseconds so MongoDB round-trips them exactly.
func runStoreContract(t *testing.T, newStore storeFactory) {
	base := time.Now().UTC().Truncate(time.Millisecond)

	mk := func(owner string, lastActivity, expiry time.Time) Session {
		id := ulid.Make().String()
		return Session{
			ID:             id,
			OwnerID:        owner,
			Token:          "tok-" + id,
			ClientAddress:  "198.51.100.1",
			ClientAgent:    "contract-test",
			DeviceSummary:  "test device",
			CreatedAt:      lastActivity,
			LastActivity:   lastActivity,
			AbsoluteExpiry: expiry,
			IsActive:       true,
		}
	}
	mustCreate := func(t *testing.T, st Store, sessions ...Session) {
		t.Helper()
		for _, s := range sessions {
			if err := st.Create(context.Background(), s); err != nil {
				t.Fatalf("create %s: %v", s.ID, err)
			}
		}
	}
	mustGet := func(t *testing.T, st Store, id string) Session {
		t.Helper()
		s, err := st.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		return s
	}
	mustTouch := func(t *testing.T, st Store, id string, at time.Time, want bool) {
		t.Helper()
		ok, err := st.Touch(context.Background(), id, at)
		if err != nil {
			t.Fatalf("touch %s: %v", id, err)
		}
		if ok != want {
			t.Fatalf("touch %s at %s matched=%v, want %v", id, at, ok, want)
		}
	}

	t.Run("create and lookups", func(t *testing.T) {
		st, owner := newStore(t)
		ctx := context.Background()
		u1, u2 := owner(), owner()

		s := mk(u1, base, base.Add(time.Hour))
		mustCreate(t, st, s)

		got, err := st.FindActive(ctx, s.Token, u1)
		if err != nil {
			t.Fatalf("find active: %v", err)
		}
		if got.ID != s.ID || !got.IsActive {
			t.Fatalf("found %s active:%v, want active %s", got.ID, got.IsActive, s.ID)
		}
		if !got.LastActivity.Equal(base) {
			t.Fatalf("LastActivity = %s, want %s", got.LastActivity, base)
		}
		if got.DeviceSummary != "test device" {
			t.Fatalf("DeviceSummary = %q", got.DeviceSummary)
		}

		if _, err := st.FindActive(ctx, s.Token, u2); !errors.Is(err, ErrNotFound) {
			t.Fatalf("owner mismatch: expected ErrNotFound, got %v", err)
		}
		if _, err := st.FindActive(ctx, "tok-missing", u1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("unknown token: expected ErrNotFound, got %v", err)
		}
		if _, err := st.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
		}

		dup := mk(u1, base, base.Add(time.Hour))
		dup.Token = s.Token
		if err := st.Create(ctx, dup); !errors.Is(err, ErrDuplicateToken) {
			t.Fatalf("duplicate token: expected ErrDuplicateToken, got %v", err)
		}
	})

	t.Run("touch is monotonic and requires active", func(t *testing.T) {
		st, owner := newStore(t)
		ctx := context.Background()
		s := mk(owner(), base, base.Add(time.Hour))
		mustCreate(t, st, s)

		mustTouch(t, st, s.ID, base.Add(5*time.Minute), true)
		mustTouch(t, st, s.ID, base.Add(2*time.Minute), true)

		if got := mustGet(t, st, s.ID).LastActivity; !got.Equal(base.Add(5 * time.Minute)) {
			t.Fatalf("LastActivity moved backwards to %s", got)
		}

		if err := st.Deactivate(ctx, s.ID, base.Add(6*time.Minute), ReasonLogout); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		mustTouch(t, st, s.ID, base.Add(7*time.Minute), false)
		mustTouch(t, st, "missing", base, false)
	})

	t.Run("deactivate keeps first time and reason", func(t *testing.T) {
		st, owner := newStore(t)
		ctx := context.Background()
		s := mk(owner(), base, base.Add(time.Hour))
		mustCreate(t, st, s)

		first := base.Add(time.Minute)
		if err := st.DeactivateByToken(ctx, s.Token, first, ReasonLogout); err != nil {
			t.Fatalf("deactivate by token: %v", err)
		}
		if err := st.Deactivate(ctx, s.ID, base.Add(2*time.Minute), ReasonClosed); err != nil {
			t.Fatalf("second deactivate: %v", err)
		}
		if err := st.DeactivateByToken(ctx, "tok-unknown", first, ReasonLogout); err != nil {
			t.Fatalf("deactivate unknown token: %v", err)
		}

		got := mustGet(t, st, s.ID)
		if got.IsActive {
			t.Fatalf("session still active")
		}
		if got.DeactivatedAt == nil || !got.DeactivatedAt.Equal(first) {
			t.Fatalf("DeactivatedAt = %v, want %s", got.DeactivatedAt, first)
		}
		if got.DeactivationReason != ReasonLogout {
			t.Fatalf("reason = %q, want %q", got.DeactivationReason, ReasonLogout)
		}
	})

	t.Run("list active ordering and close others", func(t *testing.T) {
		st, owner := newStore(t)
		ctx := context.Background()
		u1, u2 := owner(), owner()

		s1 := mk(u1, base.Add(1*time.Minute), base.Add(time.Hour))
		s2 := mk(u1, base.Add(3*time.Minute), base.Add(time.Hour))
		s3 := mk(u1, base.Add(2*time.Minute), base.Add(time.Hour))
		other := mk(u2, base, base.Add(time.Hour))
		mustCreate(t, st, s1, s2, s3, other)

		list, err := st.ListActive(ctx, u1)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("list has %d entries, want 3", len(list))
		}
		if list[0].ID != s2.ID || list[1].ID != s3.ID || list[2].ID != s1.ID {
			t.Fatalf("order = [%s %s %s], want [%s %s %s]", list[0].ID, list[1].ID, list[2].ID, s2.ID, s3.ID, s1.ID)
		}

		n, err := st.DeactivateAllExcept(ctx, u1, s2.Token, base.Add(4*time.Minute), ReasonClosedOther)
		if err != nil {
			t.Fatalf("close others: %v", err)
		}
		if n != 2 {
			t.Fatalf("closed %d, want 2", n)
		}

		list, err = st.ListActive(ctx, u1)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 || list[0].ID != s2.ID {
			t.Fatalf("list after close others = %+v, want only %s", list, s2.ID)
		}

		if _, err := st.FindActive(ctx, other.Token, u2); err != nil {
			t.Fatalf("other owners must be untouched: %v", err)
		}

		n, err = st.DeactivateAllExcept(ctx, u1, s2.Token, base.Add(5*time.Minute), ReasonClosedOther)
		if err != nil {
			t.Fatalf("close others again: %v", err)
		}
		if n != 0 {
			t.Fatalf("second close others closed %d, want 0", n)
		}
	})

	t.Run("deactivate stale uses inclusive cutoffs", func(t *testing.T) {
		st, owner := newStore(t)
		ctx := context.Background()
		u := owner()
		now := base.Add(time.Hour)
		cutoff := now.Add(-30 * time.Minute)

		fresh := mk(u, cutoff.Add(time.Millisecond), now.Add(time.Hour))
		idleAtCutoff := mk(u, cutoff, now.Add(time.Hour))
		expiredNow := mk(u, now, now)
		mustCreate(t, st, fresh, idleAtCutoff, expiredNow)

		n, err := st.DeactivateStale(ctx, now, cutoff)
		if err != nil {
			t.Fatalf("deactivate stale: %v", err)
		}
		if n != 2 {
			t.Fatalf("deactivated %d, want 2", n)
		}

		if got := mustGet(t, st, idleAtCutoff.ID).DeactivationReason; got != ReasonStale {
			t.Fatalf("idle reason = %q, want %q", got, ReasonStale)
		}
		if got := mustGet(t, st, expiredNow.ID).DeactivationReason; got != ReasonExpired {
			t.Fatalf("expired reason = %q, want %q", got, ReasonExpired)
		}
		if !mustGet(t, st, fresh.ID).IsActive {
			t.Fatalf("fresh session deactivated")
		}

		n, err = st.DeactivateStale(ctx, now, cutoff)
		if err != nil {
			t.Fatalf("second deactivate stale: %v", err)
		}
		if n != 0 {
			t.Fatalf("second sweep deactivated %d, want 0", n)
		}
	})

	t.Run("purge deletes by absolute expiry only", func(t *testing.T) {
		st, owner := newStore(t)
		ctx := context.Background()
		u := owner()

		old := mk(u, base.Add(-48*time.Hour), base.Add(-25*time.Hour))
		recent := mk(u, base.Add(-2*time.Hour), base.Add(-time.Hour))
		mustCreate(t, st, old, recent)

		n, err := st.Purge(ctx, base.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if n != 1 {
			t.Fatalf("purged %d, want 1", n)
		}

		if _, err := st.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("old record: expected ErrNotFound, got %v", err)
		}
		mustGet(t, st, recent.ID)
	})
}

func sequentialOwners(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) (Store, func() string) {
		return NewMemoryStore(), sequentialOwners("owner")
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	if err := st.Create(ctx, Session{ID: "s1", OwnerID: "u1", Token: "t1", LastActivity: now, AbsoluteExpiry: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.Deactivate(ctx, "s1", now, ReasonLogout); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	a, err := st.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	*a.DeactivatedAt = now.Add(time.Hour)
	a.IsActive = true

	b, err := st.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.IsActive || !b.DeactivatedAt.Equal(now) {
		t.Fatalf("caller mutation leaked into the store: active:%v at:%v", b.IsActive, b.DeactivatedAt)
	}
}

func TestMemoryStore_HonorsContext(t *testing.T) {
	st := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := st.Get(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Get: expected context.Canceled, got %v", err)
	}
	if _, err := st.DeactivateStale(ctx, time.Now(), time.Now()); !errors.Is(err, context.Canceled) {
		t.Fatalf("DeactivateStale: expected context.Canceled, got %v", err)
	}
}
