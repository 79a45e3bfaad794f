package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recorder) observe(_ string, s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func equalStatuses(a, b []Status) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGateway_Success(t *testing.T) {
	rec := &recorder{}
	calls := 0
	g := New("double", func(_ context.Context, n int) (int, error) {
		calls++
		return n * 2, nil
	}, rec.observe)

	if !g.IsIdle() {
		t.Fatalf("initial status = %v, want idle", g.Status())
	}

	var order []string
	got, err := g.Mutate(context.Background(), 21,
		OnSuccess(func(v int) { order = append(order, "success") }),
		OnError[int](func(error) { order = append(order, "error") }),
		OnSettled[int](func() { order = append(order, "settled") }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("Mutate = %d, want 42", got)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	want := []Status{StatusPending, StatusSuccess, StatusSettled}
	if !equalStatuses(rec.statuses, want) {
		t.Errorf("transitions = %v, want %v", rec.statuses, want)
	}
	if !g.IsSettled() {
		t.Errorf("final status = %v, want settled", g.Status())
	}
	if data, ok := g.Data(); !ok || data != 42 {
		t.Errorf("Data() = %d, %v; want 42, true", data, ok)
	}
	if g.Err() != nil {
		t.Errorf("Err() = %v, want nil", g.Err())
	}
	if len(order) != 2 || order[0] != "success" || order[1] != "settled" {
		t.Errorf("callbacks = %v, want [success settled]", order)
	}
}

func TestGateway_ErrorAbsorbed(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("store unavailable")
	g := New("fail", func(context.Context, string) (int, error) {
		return 0, boom
	}, rec.observe)

	var gotErr error
	_, err := g.Mutate(context.Background(), "x", OnError[int](func(e error) { gotErr = e }))
	if err != nil {
		t.Fatalf("error should be absorbed without ThrowError, got %v", err)
	}
	if !errors.Is(g.Err(), boom) {
		t.Errorf("Err() = %v, want %v", g.Err(), boom)
	}
	if !errors.Is(gotErr, boom) {
		t.Errorf("OnError received %v, want %v", gotErr, boom)
	}
	if _, ok := g.Data(); ok {
		t.Error("Data() should be empty after a failure")
	}

	want := []Status{StatusPending, StatusError, StatusSettled}
	if !equalStatuses(rec.statuses, want) {
		t.Errorf("transitions = %v, want %v", rec.statuses, want)
	}
}

func TestGateway_ThrowError(t *testing.T) {
	boom := errors.New("boom")
	g := New("fail", func(context.Context, string) (int, error) {
		return 0, boom
	}, nil)

	settled := false
	_, err := g.Mutate(context.Background(), "x",
		ThrowError[int](),
		OnSettled[int](func() { settled = true }),
	)
	if !errors.Is(err, boom) {
		t.Fatalf("Mutate error = %v, want %v", err, boom)
	}
	if !settled {
		t.Error("OnSettled not called on failure")
	}
	if !g.IsSettled() {
		t.Errorf("status = %v, want settled", g.Status())
	}
}

func TestGateway_NewCallClearsPreviousOutcome(t *testing.T) {
	fail := true
	g := New("flaky", func(context.Context, struct{}) (string, error) {
		if fail {
			return "", errors.New("nope")
		}
		return "ok", nil
	}, nil)

	_, _ = g.Mutate(context.Background(), struct{}{})
	if g.Err() == nil {
		t.Fatal("expected recorded error")
	}

	fail = false
	_, _ = g.Mutate(context.Background(), struct{}{})
	if g.Err() != nil {
		t.Errorf("Err() = %v after success, want nil", g.Err())
	}
	if data, ok := g.Data(); !ok || data != "ok" {
		t.Errorf("Data() = %q, %v", data, ok)
	}
}

func TestGateway_PendingDuringCall(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	g := New("slow", func(context.Context, int) (int, error) {
		close(entered)
		<-release
		return 1, nil
	}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = g.Mutate(context.Background(), 0)
	}()

	<-entered
	if !g.IsPending() {
		t.Errorf("status during call = %v, want pending", g.Status())
	}
	close(release)
	<-done
	if !g.IsSettled() {
		t.Errorf("status after call = %v, want settled", g.Status())
	}
}

func TestStatus_String(t *testing.T) {
	if StatusPending.String() != "pending" || Status(99).String() != "unknown" {
		t.Error("unexpected Status.String output")
	}
}
