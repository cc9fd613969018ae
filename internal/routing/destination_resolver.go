package routing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Endpoint sends messages to one physical destination
type Endpoint interface {
	Send(ctx context.Context, msg *Message) error
}

// EndpointFactory creates the endpoint behind a destination name. It is called
// at most once per name.
type EndpointFactory interface {
	CreateEndpoint(ctx context.Context, name string) (Endpoint, error)
}

type EndpointFactoryFunc func(ctx context.Context, name string) (Endpoint, error)

func (f EndpointFactoryFunc) CreateEndpoint(ctx context.Context, name string) (Endpoint, error) {
	return f(ctx, name)
}

// Destination is a resolved, cached endpoint
type Destination struct {
	name      string
	endpoint  Endpoint
	createdAt time.Time
}

func (d *Destination) Name() string {
	return d.name
}

func (d *Destination) Endpoint() Endpoint {
	return d.endpoint
}

func (d *Destination) CreatedAt() time.Time {
	return d.createdAt
}

// DestinationResolver creates destinations on first use and caches them for
// the life of the process. Concurrent first resolutions of one name share a
// single creation, so every caller gets the same *Destination.
type DestinationResolver struct {
	factory EndpointFactory
	allowed map[string]struct{}

	mu           sync.RWMutex
	destinations map[string]*Destination
	group        singleflight.Group
}

// NewDestinationResolver restricts creation to allowed when it is non-empty
func NewDestinationResolver(factory EndpointFactory, allowed []string) *DestinationResolver {
	r := &DestinationResolver{
		factory:      factory,
		destinations: make(map[string]*Destination),
	}
	if len(allowed) > 0 {
		r.allowed = make(map[string]struct{}, len(allowed))
		for _, name := range allowed {
			r.allowed[name] = struct{}{}
		}
	}
	return r
}

// Resolve returns the destination for name. It fails with ErrDestinationNotFound
// for names outside the allow-list and with ErrEndpointCreation when the
// factory fails. Failed creations are not cached.
func (r *DestinationResolver) Resolve(ctx context.Context, name string) (*Destination, error) {
	if dest := r.lookup(name); dest != nil {
		return dest, nil
	}

	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrDestinationNotFound)
	}
	if r.allowed != nil {
		if _, ok := r.allowed[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrDestinationNotFound, name)
		}
	}

	// one caller's cancellation must not fail the others waiting on this name
	createCtx := context.WithoutCancel(ctx)
	value, err, _ := r.group.Do(name, func() (interface{}, error) {
		if dest := r.lookup(name); dest != nil {
			return dest, nil
		}

		endpoint, err := r.factory.CreateEndpoint(createCtx, name)
		if err != nil {
			return nil, err
		}

		dest := &Destination{name: name, endpoint: endpoint, createdAt: time.Now()}
		r.mu.Lock()
		r.destinations[name] = dest
		r.mu.Unlock()
		return dest, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrEndpointCreation, name, err)
	}
	return value.(*Destination), nil
}

func (r *DestinationResolver) Send(ctx context.Context, dest *Destination, msg *Message) error {
	return dest.endpoint.Send(ctx, msg)
}

func (r *DestinationResolver) lookup(name string) *Destination {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.destinations[name]
}

// Destinations returns the names created so far, sorted
func (r *DestinationResolver) Destinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.destinations))
	for name := range r.destinations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
