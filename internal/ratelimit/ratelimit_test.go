package ratelimit_test

import (
	"testing"
	"time"

	"github.com/flemzord/threadpilot/internal/ratelimit"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestLimiter_AdmitsUpToLimit(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(60*time.Second, 10)

	for i := range 10 {
		now := epoch.Add(time.Duration(i) * 100 * time.Millisecond)
		if !l.Admit("U123", now) {
			t.Fatalf("request %d within limit denied", i+1)
		}
	}

	if l.Admit("U123", epoch.Add(time.Second)) {
		t.Error("11th request within the window admitted, want denied")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(60*time.Second, 10)

	for range 10 {
		l.Admit("U123", epoch)
	}
	if l.Admit("U123", epoch.Add(59*time.Second)) {
		t.Error("request inside the window admitted over limit")
	}

	// All prior timestamps are now outside the trailing window.
	if !l.Admit("U123", epoch.Add(61*time.Second)) {
		t.Error("request after the window slid denied")
	}
}

func TestLimiter_IdentitiesIndependent(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(60*time.Second, 2)

	l.Admit("alice", epoch)
	l.Admit("alice", epoch)
	if l.Admit("alice", epoch) {
		t.Error("alice admitted over limit")
	}
	if !l.Admit("bob", epoch) {
		t.Error("bob denied because of alice's traffic")
	}
}

func TestLimiter_DenialNotRecorded(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(10*time.Second, 1)

	l.Admit("U1", epoch)
	// Hammering while denied must not push the admission time out.
	for i := 1; i <= 9; i++ {
		l.Admit("U1", epoch.Add(time.Duration(i)*time.Second))
	}
	if !l.Admit("U1", epoch.Add(11*time.Second)) {
		t.Error("denied requests extended the window")
	}
}

func TestNewLimiter_Defaults(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(0, 0)

	for i := range ratelimit.DefaultLimit {
		if !l.Admit("u", epoch.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("request %d denied under default limit", i+1)
		}
	}
	if l.Admit("u", epoch.Add(30*time.Second)) {
		t.Error("request over default limit admitted")
	}
}
