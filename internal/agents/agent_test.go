package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
)

func testBase(t *testing.T, cfg Config, events *EventBus, validate func(map[string]any) error, run runFunc) *BaseAgent {
	t.Helper()
	if validate == nil {
		validate = func(map[string]any) error { return nil }
	}
	if events == nil {
		events = NewEventBus()
	}
	return newBase("test_agent", cfg, logger.NewNop(), events, validate, run)
}

func testCtx() *domain.AgentContext {
	return &domain.AgentContext{SessionID: "s1", Timestamp: time.Now()}
}

func TestExecuteSuccessFirstAttempt(t *testing.T) {
	a := testBase(t, Config{}, nil, nil, func(context.Context, map[string]any, *domain.AgentContext) (any, error) {
		return "ok", nil
	})
	res := a.Execute(context.Background(), nil, testCtx())
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	if res.Data != "ok" {
		t.Fatalf("expected data ok, got %v", res.Data)
	}
	if res.Meta.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", res.Meta.Attempts)
	}
	if a.Status() != StatusIdle {
		t.Fatalf("expected idle after success, got %s", a.Status())
	}
}

func TestExecuteRetriesExactlyMaxAttempts(t *testing.T) {
	calls := 0
	a := testBase(t, Config{MaxRetries: 3, BaseDelay: time.Millisecond}, nil, nil,
		func(context.Context, map[string]any, *domain.AgentContext) (any, error) {
			calls++
			return nil, Errf(CodeLLM, "backend unavailable")
		})
	res := a.Execute(context.Background(), nil, testCtx())
	if res.Success {
		t.Fatal("expected failure")
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
	if res.Meta.Attempts != 3 {
		t.Fatalf("expected attempts=3 in meta, got %d", res.Meta.Attempts)
	}
	if a.Status() != StatusError {
		t.Fatalf("expected error status, got %s", a.Status())
	}
}

func TestExecuteRecoversOnLaterAttempt(t *testing.T) {
	calls := 0
	a := testBase(t, Config{MaxRetries: 3, BaseDelay: time.Millisecond}, nil, nil,
		func(context.Context, map[string]any, *domain.AgentContext) (any, error) {
			calls++
			if calls < 2 {
				return nil, Errf(CodeParsing, "garbled output")
			}
			return 42, nil
		})
	res := a.Execute(context.Background(), nil, testCtx())
	if !res.Success || res.Meta.Attempts != 2 {
		t.Fatalf("expected success on attempt 2, got success=%v attempts=%d", res.Success, res.Meta.Attempts)
	}
}

func TestExecuteInvalidInputFailsFast(t *testing.T) {
	calls := 0
	var events []Event
	bus := NewEventBus()
	bus.Subscribe(func(e Event) { events = append(events, e) })
	a := testBase(t, Config{MaxRetries: 3, BaseDelay: time.Millisecond}, bus,
		func(map[string]any) error { return Errf(CodeInvalidInput, "url is required") },
		func(context.Context, map[string]any, *domain.AgentContext) (any, error) {
			calls++
			return nil, nil
		})
	res := a.Execute(context.Background(), nil, testCtx())
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Err.Code != CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %s", res.Err.Code)
	}
	if calls != 0 {
		t.Fatalf("capability must not run on invalid input, ran %d times", calls)
	}
	if len(events) != 0 {
		t.Fatalf("no events expected on validation failure, got %d", len(events))
	}
	if a.Status() != StatusIdle {
		t.Fatalf("status must stay idle, got %s", a.Status())
	}
}

func TestExecuteNonRetryableErrorStopsEarly(t *testing.T) {
	calls := 0
	a := testBase(t, Config{MaxRetries: 5, BaseDelay: time.Millisecond}, nil, nil,
		func(context.Context, map[string]any, *domain.AgentContext) (any, error) {
			calls++
			return nil, Errf(CodeInvalidInput, "bad payload discovered mid-run")
		})
	res := a.Execute(context.Background(), nil, testCtx())
	if res.Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Fatalf("non-retryable error must stop after 1 attempt, got %d", calls)
	}
}

func TestExecuteTimeoutBoundsAttempt(t *testing.T) {
	a := testBase(t, Config{Timeout: 30 * time.Millisecond, MaxRetries: 1}, nil, nil,
		func(ctx context.Context, _ map[string]any, _ *domain.AgentContext) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
	start := time.Now()
	res := a.Execute(context.Background(), nil, testCtx())
	elapsed := time.Since(start)
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if res.Err.Code != CodeTimeout {
		t.Fatalf("expected TIMEOUT_ERROR, got %s", res.Err.Code)
	}
	if elapsed > time.Second {
		t.Fatalf("execute did not respect timeout budget, took %s", elapsed)
	}
}

func TestExecuteEventSequence(t *testing.T) {
	var got []EventType
	bus := NewEventBus()
	bus.Subscribe(func(e Event) { got = append(got, e.Type) })

	ok := testBase(t, Config{}, bus, nil, func(context.Context, map[string]any, *domain.AgentContext) (any, error) {
		return "fine", nil
	})
	ok.Execute(context.Background(), nil, testCtx())
	if len(got) != 2 || got[0] != EventStarted || got[1] != EventCompleted {
		t.Fatalf("expected started,completed got %v", got)
	}

	got = nil
	bad := testBase(t, Config{MaxRetries: 1}, bus, nil, func(context.Context, map[string]any, *domain.AgentContext) (any, error) {
		return nil, Errf(CodeLLM, "nope")
	})
	bad.Execute(context.Background(), nil, testCtx())
	if len(got) != 2 || got[0] != EventStarted || got[1] != EventError {
		t.Fatalf("expected started,error got %v", got)
	}
}

func TestEventBusRegistrationOrder(t *testing.T) {
	bus := NewEventBus()
	var order []int
	bus.Subscribe(func(Event) { order = append(order, 1) })
	bus.Subscribe(func(Event) { order = append(order, 2) })
	bus.Subscribe(func(Event) { order = append(order, 3) })
	bus.publish(Event{Agent: "x", Type: EventStarted})
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected subscribers in registration order, got %v", order)
	}
}

func TestExecutePanicBecomesClassifiedFailure(t *testing.T) {
	calls := 0
	a := testBase(t, Config{MaxRetries: 2, BaseDelay: time.Millisecond}, nil, nil,
		func(context.Context, map[string]any, *domain.AgentContext) (any, error) {
			calls++
			panic("capability bug")
		})
	res := a.Execute(context.Background(), nil, testCtx())
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Err.Code != CodeUnknown {
		t.Fatalf("expected UNKNOWN_ERROR for panic, got %s", res.Err.Code)
	}
	if calls != 2 {
		t.Fatalf("panic must stay retryable within budget, got %d calls", calls)
	}
	if a.Status() != StatusError {
		t.Fatalf("expected error status, got %s", a.Status())
	}
}

func TestExecuteContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	a := testBase(t, Config{MaxRetries: 5, BaseDelay: time.Hour}, nil, nil,
		func(context.Context, map[string]any, *domain.AgentContext) (any, error) {
			calls++
			cancel()
			return nil, Errf(CodeNetwork, "connection refused")
		})
	res := a.Execute(ctx, nil, testCtx())
	if res.Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Fatalf("expected no retry after cancellation, got %d calls", calls)
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got.Code != CodeTimeout {
		t.Fatalf("deadline expected TIMEOUT_ERROR, got %s", got.Code)
	}
	if got := Classify(context.Canceled); got.Code != CodeTimeout {
		t.Fatalf("cancellation expected TIMEOUT_ERROR, got %s", got.Code)
	}
	orig := Errf(CodeParsing, "bad json")
	if got := Classify(orig); got != orig {
		t.Fatalf("classified error must pass through unchanged")
	}
	if got := Classify(errors.New("mystery")); got.Code != CodeUnknown {
		t.Fatalf("expected UNKNOWN_ERROR, got %s", got.Code)
	}
}

func TestTruncateMiddle(t *testing.T) {
	s := "aaaaaaaaaabbbbbbbbbb"
	got := truncateMiddle(s, 10, 0.7)
	if len(got) <= 10 && got != s {
		t.Fatalf("expected marker-joined head+tail, got %q", got)
	}
	if got[:7] != "aaaaaaa" {
		t.Fatalf("head not preserved: %q", got)
	}
	if got[len(got)-3:] != "bbb" {
		t.Fatalf("tail not preserved: %q", got)
	}
	if truncateMiddle("short", 100, 0.7) != "short" {
		t.Fatal("under-budget text must pass through")
	}
}

func TestTruncationKeepsValidUTF8(t *testing.T) {
	s := strings.Repeat("日本語テキスト", 40)
	for _, budget := range []int{7, 50, 100, 333} {
		if got := truncateMiddle(s, budget, 0.7); !utf8.ValidString(got) {
			t.Fatalf("truncateMiddle(budget=%d) split a rune: %q", budget, got)
		}
		got := capBytes(s, budget)
		if !utf8.ValidString(got) {
			t.Fatalf("capBytes(n=%d) split a rune: %q", budget, got)
		}
		if len(got) > budget {
			t.Fatalf("capBytes(n=%d) returned %d bytes", budget, len(got))
		}
	}
	if capBytes("ascii", 3) != "asc" {
		t.Fatal("ascii cap must slice exactly")
	}
}

func TestLastTurns(t *testing.T) {
	turns := []int{1, 2, 3, 4, 5}
	got := lastTurns(turns, 2)
	if len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Fatalf("expected last two turns, got %v", got)
	}
	if len(lastTurns(turns, 10)) != 5 {
		t.Fatal("window larger than history must return everything")
	}
}
