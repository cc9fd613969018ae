package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestinationResolver_ResolveCaches(t *testing.T) {
	factory := newRecordingFactory()
	resolver := NewDestinationResolver(factory, nil)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "orders")
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, "orders")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "orders", first.Name())
	assert.False(t, first.CreatedAt().IsZero())
	assert.Equal(t, 1, factory.created("orders"))
	assert.Equal(t, []string{"orders"}, resolver.Destinations())
}

func TestDestinationResolver_ConcurrentFirstResolution(t *testing.T) {
	factory := newRecordingFactory()
	factory.delay = 20 * time.Millisecond
	resolver := NewDestinationResolver(factory, nil)

	const callers = 50
	results := make([]*Destination, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			dest, err := resolver.Resolve(context.Background(), "fresh")
			assert.NoError(t, err)
			results[i] = dest
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, factory.created("fresh"))
	for _, dest := range results {
		assert.Same(t, results[0], dest)
	}
}

func TestDestinationResolver_AllowList(t *testing.T) {
	factory := newRecordingFactory()
	resolver := NewDestinationResolver(factory, []string{"foo", "bar"})

	_, err := resolver.Resolve(context.Background(), "foo")
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), "baz")
	assert.ErrorIs(t, err, ErrDestinationNotFound)
	assert.NotErrorIs(t, err, ErrEndpointCreation)
	assert.Zero(t, factory.created("baz"))

	_, err = resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrDestinationNotFound)
}

func TestDestinationResolver_CreationFailure(t *testing.T) {
	boom := errors.New("broker down")
	factory := newRecordingFactory()
	factory.createErrors["orders"] = boom
	resolver := NewDestinationResolver(factory, nil)

	_, err := resolver.Resolve(context.Background(), "orders")
	assert.ErrorIs(t, err, ErrEndpointCreation)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDestinationNotFound)

	delete(factory.createErrors, "orders")
	dest, err := resolver.Resolve(context.Background(), "orders")
	require.NoError(t, err, "failed creations are retried")
	assert.Equal(t, "orders", dest.Name())
	assert.Equal(t, 2, factory.created("orders"))
}

func TestDestinationResolver_CancelledCallerDoesNotBlockCreation(t *testing.T) {
	var seen context.Context
	resolver := NewDestinationResolver(EndpointFactoryFunc(func(ctx context.Context, name string) (Endpoint, error) {
		seen = ctx
		return &recordingEndpoint{}, nil
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := resolver.Resolve(ctx, "orders")
	require.NoError(t, err)
	assert.NoError(t, seen.Err())
}

func TestDestinationResolver_Send(t *testing.T) {
	factory := newRecordingFactory()
	resolver := NewDestinationResolver(factory, nil)

	dest, err := resolver.Resolve(context.Background(), "orders")
	require.NoError(t, err)

	msg := NewMessage("x", nil)
	require.NoError(t, resolver.Send(context.Background(), dest, msg))
	assert.Equal(t, []*Message{msg}, factory.messages("orders"))
}
