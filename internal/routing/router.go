package routing

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"message-router/internal/common/logging"
)

// Config is the immutable router configuration. Script wins over Expression.
type Config struct {
	Expression         string
	Script             string
	RefreshDelay       time.Duration
	Variables          map[string]string
	Mappings           map[string]string
	DefaultDestination string
	ResolutionRequired bool
}

// Stats counts messages by outcome. Dispatched counts sends, so a fanned-out
// message adds one per destination.
type Stats struct {
	Received   int64 `json:"received"`
	Dispatched int64 `json:"dispatched"`
	Discarded  int64 `json:"discarded"`
	Failed     int64 `json:"failed"`
}

// Router is safe for concurrent use
type Router struct {
	config     Config
	evaluator  Evaluator
	normalizer *PayloadNormalizer
	mappings   *MappingTable
	resolver   *DestinationResolver
	script     *ScriptSource
	logger     logging.Logger

	received   atomic.Int64
	dispatched atomic.Int64
	discarded  atomic.Int64
	failed     atomic.Int64
}

// NewRouter picks the script evaluator when config.Script is set and starts
// its reload job; otherwise it compiles config.Expression (or DefaultExpression).
func NewRouter(config Config, resolver *DestinationResolver, logger logging.Logger) (*Router, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	r := &Router{
		config:   config,
		mappings: NewMappingTable(config.Mappings),
		resolver: resolver,
		logger:   logger.WithFields(logging.String("component", "router")),
	}

	if config.Script != "" {
		source, err := NewScriptSource(config.Script, config.RefreshDelay, r.logger)
		if err != nil {
			return nil, err
		}
		if err := source.Start(); err != nil {
			return nil, err
		}
		r.script = source
		r.evaluator = NewScriptEvaluator(source, config.Variables)
	} else {
		evaluator, err := NewExpressionEvaluator(config.Expression)
		if err != nil {
			return nil, err
		}
		r.evaluator = evaluator
		r.normalizer = &PayloadNormalizer{}
	}

	r.logger.Info("Router configured",
		logging.String("evaluator", r.evaluator.Kind()),
		logging.Int("mappings", r.mappings.Len()),
		logging.String("default_destination", config.DefaultDestination),
		logging.Bool("resolution_required", config.ResolutionRequired),
	)
	return r, nil
}

// Handle routes one message. It returns an *EvaluationError, an
// *UnresolvableDestinationError (strict mode only) or a *DispatchError.
// Nothing is sent when resolution fails in strict mode.
func (r *Router) Handle(ctx context.Context, msg *Message) error {
	r.received.Add(1)
	logger := r.logger.WithContext(ctx)

	if r.normalizer != nil {
		msg = r.normalizer.Normalize(msg)
	}

	keys, err := r.evaluator.Evaluate(msg)
	if err != nil {
		r.failed.Add(1)
		return err
	}

	destinations, err := r.resolveAll(ctx, logger, keys)
	if err != nil {
		r.failed.Add(1)
		return err
	}

	if len(destinations) == 0 {
		if r.config.DefaultDestination == "" {
			if r.config.ResolutionRequired {
				r.failed.Add(1)
				return &UnresolvableDestinationError{}
			}
			r.discarded.Add(1)
			logger.Debug("Message discarded, no route", logging.Strings("route_keys", keys))
			return nil
		}

		dest, err := r.resolver.Resolve(ctx, r.config.DefaultDestination)
		if err != nil {
			r.failed.Add(1)
			return &UnresolvableDestinationError{Destination: r.config.DefaultDestination, Cause: err}
		}
		destinations = []*Destination{dest}
	}

	return r.dispatch(ctx, logger, destinations, msg)
}

// resolveAll maps and resolves every key. Keys that map to the same
// destination are dispatched once, in first-seen order.
func (r *Router) resolveAll(ctx context.Context, logger logging.Logger, keys []string) ([]*Destination, error) {
	type mapped struct{ key, name string }
	targets := lo.UniqBy(
		lo.Map(keys, func(key string, _ int) mapped { return mapped{key: key, name: r.mappings.Resolve(key)} }),
		func(m mapped) string { return m.name },
	)

	destinations := make([]*Destination, 0, len(targets))
	for _, target := range targets {
		dest, err := r.resolver.Resolve(ctx, target.name)
		if err != nil {
			if r.config.ResolutionRequired {
				return nil, &UnresolvableDestinationError{Key: target.key, Destination: target.name, Cause: err}
			}

			fields := []logging.Field{logging.String("route_key", target.key), logging.String("destination", target.name)}
			if stderrors.Is(err, ErrEndpointCreation) {
				logger.Warn("Route discarded, destination could not be created", append(fields, logging.Err(err))...)
			} else {
				logger.Debug("Route discarded, destination not resolvable", fields...)
			}
			continue
		}
		destinations = append(destinations, dest)
	}
	return destinations, nil
}

// dispatch attempts every send; one failure does not skip the rest
func (r *Router) dispatch(ctx context.Context, logger logging.Logger, destinations []*Destination, msg *Message) error {
	var (
		failures map[string]error
		combined error
	)
	for _, dest := range destinations {
		if err := r.resolver.Send(ctx, dest, msg); err != nil {
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[dest.Name()] = err
			combined = multierr.Append(combined, err)
			logger.Warn("Dispatch failed", logging.String("destination", dest.Name()), logging.Err(err))
			continue
		}
		r.dispatched.Add(1)
		logger.Debug("Message dispatched", logging.String("destination", dest.Name()))
	}

	if failures != nil {
		r.failed.Add(1)
		return newDispatchError(failures, combined)
	}
	return nil
}

func (r *Router) Stats() Stats {
	return Stats{
		Received:   r.received.Load(),
		Dispatched: r.dispatched.Load(),
		Discarded:  r.discarded.Load(),
		Failed:     r.failed.Load(),
	}
}

func (r *Router) Evaluator() Evaluator {
	return r.evaluator
}

func (r *Router) Resolver() *DestinationResolver {
	return r.resolver
}

// Close stops the script reload job, if any
func (r *Router) Close() error {
	if r.script != nil {
		r.script.Stop()
	}
	return nil
}
