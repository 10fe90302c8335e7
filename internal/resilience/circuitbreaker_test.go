package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/lberthe/gideon/internal/resilience"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:         "test",
		MaxFailures:  3,
		ResetTimeout: time.Hour,
	})

	for i := range 3 {
		if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("Execute #%d: err=%v, want errBoom", i, err)
		}
	}
	if got := cb.State(); got != resilience.StateOpen {
		t.Fatalf("State after %d failures=%v, want open", 3, got)
	}

	// Open breaker rejects without calling fn.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Execute while open: err=%v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("Execute while open called fn, want rejection without a call")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:        "test",
		MaxFailures: 3,
	})

	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return errBoom })

	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State=%v, want closed (success reset the streak)", got)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  2,
	})

	cb.Execute(func() error { return errBoom })
	if got := cb.State(); got != resilience.StateOpen {
		t.Fatalf("State=%v, want open", got)
	}

	time.Sleep(15 * time.Millisecond)
	if got := cb.State(); got != resilience.StateHalfOpen {
		t.Fatalf("State after reset timeout=%v, want half-open", got)
	}

	// Enough successful probes close the breaker.
	for range 2 {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe Execute: err=%v, want nil", err)
		}
	}
	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State after successful probes=%v, want closed", got)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
	})

	cb.Execute(func() error { return errBoom })
	time.Sleep(15 * time.Millisecond)

	if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("probe Execute: err=%v, want errBoom", err)
	}
	if got := cb.State(); got != resilience.StateOpen {
		t.Errorf("State after failed probe=%v, want open", got)
	}
}

func TestCircuitBreaker_BenignErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	benign := errors.New("benign outcome")
	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:        "test",
		MaxFailures: 2,
		Benign:      func(err error) bool { return errors.Is(err, benign) },
	})

	// Benign errors are returned but never counted.
	for range 10 {
		if err := cb.Execute(func() error { return benign }); !errors.Is(err, benign) {
			t.Fatalf("Execute: err=%v, want benign error passed through", err)
		}
	}
	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State after benign errors=%v, want closed", got)
	}

	// A benign error also resets a failure streak.
	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return benign })
	cb.Execute(func() error { return errBoom })
	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State=%v, want closed (benign error reset the streak)", got)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})

	cb.Execute(func() error { return errBoom })
	if got := cb.State(); got != resilience.StateOpen {
		t.Fatalf("State=%v, want open", got)
	}

	cb.Reset()
	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State after Reset=%v, want closed", got)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Errorf("Execute after Reset: err=%v, want nil", err)
	}
}
