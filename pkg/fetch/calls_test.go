package fetch

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/go-fetch/pkg/request"
)

func TestInFlightCalls(t *testing.T) {
	t.Parallel()
	calls := newInFlightCalls()

	ctx1, cancel1 := context.WithCancelCause(context.Background())
	ctx2, cancel2 := context.WithCancelCause(context.Background())
	unregister1 := calls.register(cancel1)
	calls.register(cancel2)
	assert.Equal(t, 2, calls.len())

	unregister1()
	assert.Equal(t, 1, calls.len())

	calls.cancelAll()
	assert.Equal(t, 0, calls.len())
	assert.NoError(t, ctx1.Err())
	assert.ErrorIs(t, context.Cause(ctx2), context.Canceled)

	// Nothing to cancel
	calls.cancelAll()
	cancel1(nil)
}

func TestFetch_CallsUnregistered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sender := request.SenderFunc(func(ctx context.Context, req *request.Request) (*request.Response, error) {
		if req.URL == "/slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return request.NewResponse(http.StatusOK, nil), nil
	})
	f := New(WithDefaults(NewDefaults()), WithSender(sender))

	_, err := f.Get(ctx, "/", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, f.calls.len())

	_, err = f.Get(ctx, "/slow", nil, WithTimeout(time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, 0, f.calls.len())
}
