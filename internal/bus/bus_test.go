package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(_ context.Context, msg *Message) (any, error) {
	return msg.Body, nil
}

func TestBus_RegisterTwiceFails(t *testing.T) {
	b := New()

	require.NoError(t, b.Register("echo", echo))
	err := b.Register("echo", echo)
	assert.ErrorIs(t, err, ErrAddressInUse)

	assert.Error(t, b.Register("", echo))
	assert.Error(t, b.Register("nil", nil))
}

func TestBus_Unregister(t *testing.T) {
	b := New()
	require.NoError(t, b.Register("echo", echo))

	assert.True(t, b.Unregister("echo"))
	assert.False(t, b.Unregister("echo"))

	// The address can be bound again once freed
	assert.NoError(t, b.Register("echo", echo))
}

func TestBus_UnboundAddress(t *testing.T) {
	b := New()

	start := time.Now()
	_, err := b.Request(context.Background(), "nowhere", "hi", nil)
	require.Error(t, err)

	assert.Equal(t, CodeAddressNotFound, CodeOf(err))
	assert.ErrorIs(t, err, ErrAddressNotFound)
	assert.Less(t, time.Since(start), time.Second, "unbound address must fail immediately")

	err = b.Publish(context.Background(), "nowhere", "hi", nil)
	assert.Equal(t, CodeAddressNotFound, CodeOf(err))
}

func TestBus_RequestReply(t *testing.T) {
	b := New()
	require.NoError(t, b.Register("double", func(_ context.Context, msg *Message) (any, error) {
		return msg.Body.(int) * 2, nil
	}))

	got, err := RequestAs[int](context.Background(), b, "double", 21, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestBus_MetadataReachesHandler(t *testing.T) {
	b := New()
	require.NoError(t, b.Register("whoami", func(_ context.Context, msg *Message) (any, error) {
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, "whoami", msg.Address)
		return msg.Metadata.Get("user-id"), nil
	}))

	got, err := RequestAs[string](context.Background(), b, "whoami", nil, Metadata{"user-id": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	got, err = RequestAs[string](context.Background(), b, "whoami", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBus_HandlerFailureCodes(t *testing.T) {
	b := New()
	cause := errors.New("db down")
	require.NoError(t, b.Register("typed", func(context.Context, *Message) (any, error) {
		return nil, Fail(CodeStorage, "storage unavailable", cause)
	}))
	require.NoError(t, b.Register("plain", func(context.Context, *Message) (any, error) {
		return nil, cause
	}))

	_, err := b.Request(context.Background(), "typed", nil, nil)
	assert.Equal(t, CodeStorage, CodeOf(err))
	assert.ErrorIs(t, err, cause)

	var re *ReplyError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "storage unavailable", re.Message)

	_, err = b.Request(context.Background(), "plain", nil, nil)
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestBus_TimeoutDoesNotCancelHandler(t *testing.T) {
	b := New()

	release := make(chan struct{})
	var completed atomic.Bool
	handlerCtxErr := make(chan error, 1)

	require.NoError(t, b.Register("slow", func(ctx context.Context, _ *Message) (any, error) {
		<-release
		handlerCtxErr <- ctx.Err()
		completed.Store(true)
		return "done", nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Request(ctx, "slow", nil, nil)
	require.Error(t, err)
	assert.Equal(t, CodeTimeout, CodeOf(err))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The handler is still running after the caller gave up
	assert.False(t, completed.Load())
	close(release)

	require.NoError(t, b.Drain(context.Background()))
	assert.True(t, completed.Load())
	assert.NoError(t, <-handlerCtxErr, "handler context must be detached from the caller's deadline")
}

func TestBus_DefaultTimeoutApplies(t *testing.T) {
	b := New(WithTimeout(30 * time.Millisecond))

	release := make(chan struct{})
	require.NoError(t, b.Register("stuck", func(context.Context, *Message) (any, error) {
		<-release
		return nil, nil
	}))

	_, err := b.Request(context.Background(), "stuck", nil, nil)
	assert.Equal(t, CodeTimeout, CodeOf(err))

	close(release)
	require.NoError(t, b.Drain(context.Background()))
}

func TestBus_SaturatedRequestsQueue(t *testing.T) {
	b := New(WithMaxInFlight(1))

	var running, peak atomic.Int32
	require.NoError(t, b.Register("work", func(context.Context, *Message) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return "ok", nil
	}))

	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := b.Request(context.Background(), "work", nil, nil)
			errs <- err
		}()
	}
	for i := 0; i < 5; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, int32(1), peak.Load())
}

func TestBus_PanicBecomesInternalFailure(t *testing.T) {
	b := New()
	require.NoError(t, b.Register("boom", func(context.Context, *Message) (any, error) {
		panic("kaboom")
	}))

	_, err := b.Request(context.Background(), "boom", nil, nil)
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestBus_Publish(t *testing.T) {
	b := New()
	got := make(chan string, 1)
	require.NoError(t, b.Register("notify", func(_ context.Context, msg *Message) (any, error) {
		got <- msg.Body.(string)
		return nil, nil
	}))

	require.NoError(t, b.Publish(context.Background(), "notify", "hello", nil))

	select {
	case body := <-got:
		assert.Equal(t, "hello", body)
	case <-time.After(time.Second):
		t.Fatal("published message was not delivered")
	}
	require.NoError(t, b.Drain(context.Background()))
}

func TestRequestAs_TypeMismatch(t *testing.T) {
	b := New()
	require.NoError(t, b.Register("echo", echo))

	_, err := RequestAs[int](context.Background(), b, "echo", "not an int", nil)
	assert.Equal(t, CodeInternal, CodeOf(err))

	got, err := RequestAs[*int](context.Background(), b, "echo", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(0), CodeOf(nil))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("x")))
	assert.Equal(t, CodeTimeout, CodeOf(Fail(CodeTimeout, "late", nil)))
	assert.Equal(t, "Timeout", CodeTimeout.String())
}
