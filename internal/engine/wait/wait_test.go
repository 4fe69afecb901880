package wait_test

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tavily-register/internal/engine/locator"
	"tavily-register/internal/engine/locator/htmldoc"
	"tavily-register/internal/engine/wait"
)

func TestUntilImmediateSuccess(t *testing.T) {
	var calls int32
	start := time.Now()
	ok := wait.Until(context.Background(), wait.Options{Timeout: time.Second}, func(context.Context) bool {
		atomic.AddInt32(&calls, 1)
		return true
	})
	assert.True(t, ok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestUntilEventualSuccess(t *testing.T) {
	var calls int32
	ok := wait.Until(context.Background(), wait.Options{
		MinInterval: time.Millisecond,
		Timeout:     time.Second,
	}, func(context.Context) bool {
		return atomic.AddInt32(&calls, 1) >= 3
	})
	assert.True(t, ok)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestUntilTimeout(t *testing.T) {
	timeout := 50 * time.Millisecond
	start := time.Now()
	ok := wait.Until(context.Background(), wait.Options{
		MinInterval: 5 * time.Millisecond,
		Timeout:     timeout,
	}, func(context.Context) bool { return false })
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, timeout)
	// The final sleep is clamped to the remaining budget, so the loop
	// never overshoots by more than one max interval.
	assert.Less(t, elapsed, timeout+2*time.Second)
}

func TestUntilBackoffReducesPolls(t *testing.T) {
	var calls int32
	wait.Until(context.Background(), wait.Options{
		MinInterval: 10 * time.Millisecond,
		MaxInterval: 40 * time.Millisecond,
		Timeout:     200 * time.Millisecond,
	}, func(context.Context) bool {
		atomic.AddInt32(&calls, 1)
		return false
	})
	// 10+20+40+40+... covers 200ms in ~7 polls; a fixed 10ms interval
	// would take ~20.
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(10))
}

func TestUntilCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		done <- wait.Until(ctx, wait.Options{Timeout: time.Minute}, func(context.Context) bool {
			return false
		})
	}()
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Until did not observe cancellation")
	}
}

func TestElementLocated(t *testing.T) {
	page := `<input type="email" name="email">`
	docFn := func(context.Context) (locator.Document, error) {
		return htmldoc.Parse(page)
	}

	assert.True(t, wait.ElementLocated(docFn, locator.IntentEmailField)(context.Background()))
	assert.False(t, wait.ElementLocated(docFn, locator.IntentTokenDisplay)(context.Background()))

	failing := func(context.Context) (locator.Document, error) {
		return nil, errors.New("detached")
	}
	assert.False(t, wait.ElementLocated(failing, locator.IntentEmailField)(context.Background()))
}

func TestTextPresent(t *testing.T) {
	text := func(context.Context) (string, error) {
		return "Please VERIFY your email", nil
	}
	assert.True(t, wait.TextPresent(text, "verify your email")(context.Background()))
	assert.False(t, wait.TextPresent(text, "welcome back")(context.Background()))
}

func TestURLMatches(t *testing.T) {
	re := regexp.MustCompile(`app\.tavily\.com/home`)
	url := "https://app.tavily.com/home"
	assert.True(t, wait.URLMatches(func() string { return url }, re)(context.Background()))
	url = "https://app.tavily.com/signup"
	assert.False(t, wait.URLMatches(func() string { return url }, re)(context.Background()))
}

func TestAny(t *testing.T) {
	yes := func(context.Context) bool { return true }
	no := func(context.Context) bool { return false }

	require.True(t, wait.Any(no, yes)(context.Background()))
	require.False(t, wait.Any(no, no)(context.Background()))
	require.False(t, wait.Any()(context.Background()))
}
