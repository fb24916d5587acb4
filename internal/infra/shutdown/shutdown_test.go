package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestNewHandler(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if h.hooks == nil {
		t.Error("hooks should be initialized")
	}
	if h.logger == nil {
		t.Error("logger should default to a discard logger")
	}

	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

// recordHooks registers three hooks that append their index to the returned slice.
func recordHooks(h *Handler) (*[]int, *sync.Mutex) {
	order := make([]int, 0)
	var mu sync.Mutex
	for i := 1; i <= 3; i++ {
		h.OnShutdown("hook", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	return &order, &mu
}

func waitResult(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
		return nil
	}
}

func TestHandler_Wait_WithSignal(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	order, mu := recordHooks(h)

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Wait()
	}()

	// Give Wait time to set up signal handler
	time.Sleep(50 * time.Millisecond)
	syscall.Kill(syscall.Getpid(), syscall.SIGINT)

	if err := waitResult(t, errCh); err != nil {
		t.Errorf("Wait() returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(*order) != 3 || (*order)[0] != 3 || (*order)[1] != 2 || (*order)[2] != 1 {
		t.Errorf("hooks called in wrong order: %v, want [3 2 1]", *order)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Wait completes")
	}
}

func TestHandler_Trigger(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	order, mu := recordHooks(h)

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Wait()
	}()

	h.Trigger("listener failed")
	h.Trigger("second call is ignored")

	if err := waitResult(t, errCh); err != nil {
		t.Errorf("Wait() returned error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(*order) != 3 {
		t.Errorf("expected 3 hooks called, got %d", len(*order))
	}
}

func TestHandler_Wait_HookErrors(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	errA := errors.New("close listener")
	errB := errors.New("flush uploads")
	var ran bool

	h.OnShutdown("first", func(ctx context.Context) error {
		ran = true
		return errA
	})
	h.OnShutdown("second", func(ctx context.Context) error {
		return errB
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Wait()
	}()
	h.Trigger("test")

	err := waitResult(t, errCh)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Wait() = %v, want both hook errors", err)
	}
	if !ran {
		t.Error("a failing hook stopped the remaining hooks")
	}
}

func TestHandler_HookDeadline(t *testing.T) {
	h := NewHandler(50*time.Millisecond, nil)

	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Wait()
	}()
	h.Trigger("test")

	if err := waitResult(t, errCh); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	var wg sync.WaitGroup
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown("noop", func(ctx context.Context) error {
				return nil
			})
		}()
	}

	wg.Wait()

	h.mu.Lock()
	if len(h.hooks) != numGoroutines {
		t.Errorf("expected %d hooks, got %d", numGoroutines, len(h.hooks))
	}
	h.mu.Unlock()
}

func TestHandler_Ready(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	if err := h.Ready(); err != nil {
		t.Fatalf("Ready() before shutdown = %v", err)
	}

	readyDuringHook := make(chan error, 1)
	h.OnShutdown("drain-check", func(context.Context) error {
		readyDuringHook <- h.Ready()
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()
	h.Trigger("test")

	if err := waitResult(t, errCh); err != nil {
		t.Fatalf("Wait() returned error: %v", err)
	}
	if err := <-readyDuringHook; !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Ready() during shutdown = %v, want ErrShuttingDown", err)
	}
}
