package loader

import (
	"context"
	"fmt"

	"github.com/conneroisu/isle/internal/errors"
)

var (
	// ErrNextCalledTwice is returned when a hook invokes next more than once.
	ErrNextCalledTwice = errors.NewInternalError("NEXT_CALLED_TWICE", "hook called next more than once", nil)

	// ErrMissingShortCircuit is returned when a hook ends the chain without
	// calling next and without setting ShortCircuit.
	ErrMissingShortCircuit = errors.NewInternalError("MISSING_SHORT_CIRCUIT", "hook returned without calling next or short-circuiting", nil)
)

// Chain is an ordered set of hooks in front of a fallback. Once built it is
// safe for concurrent use.
type Chain struct {
	resolvers []ResolveHook
	loaders   []LoadHook
	fallback  Fallback
	observer  Observer
}

// NewChain builds a chain. Hooks run in the order given: earlier hooks see
// the original specifier first and may redirect it before later ones.
func NewChain(fallback Fallback, hooks ...Hook) (*Chain, error) {
	if fallback == nil {
		return nil, fmt.Errorf("loader: nil fallback")
	}

	c := &Chain{fallback: fallback}
	for _, h := range hooks {
		r, isResolver := h.(ResolveHook)
		l, isLoader := h.(LoadHook)
		if !isResolver && !isLoader {
			return nil, fmt.Errorf("loader: hook %q implements neither Resolve nor Load", h.Name())
		}
		if isResolver {
			c.resolvers = append(c.resolvers, r)
		}
		if isLoader {
			c.loaders = append(c.loaders, l)
		}
	}
	return c, nil
}

// SetObserver reports every hook invocation to o. It must be called before
// the chain is shared.
func (c *Chain) SetObserver(o Observer) {
	c.observer = o
}

// Resolve runs the resolve chain for req.
func (c *Chain) Resolve(ctx context.Context, req LoadRequest) (HookResult, error) {
	res, err := c.resolveAt(0)(ctx, req)
	if err != nil {
		return HookResult{}, err
	}
	if res.ResolvedURL == "" {
		return HookResult{}, errors.NewResolutionError(req.Specifier, req.Parent.ParentURL,
			fmt.Errorf("chain produced an empty url"))
	}
	return res, nil
}

// Load runs the load chain for req.
func (c *Chain) Load(ctx context.Context, req ModuleRequest) (HookResult, error) {
	res, err := c.loadAt(0)(ctx, req)
	if err != nil {
		return HookResult{}, err
	}
	if res.Format == "" {
		return HookResult{}, errors.NewTransformError("NO_FORMAT", req.URL, "load chain produced no format", nil)
	}
	return res, nil
}

// Import resolves specifier relative to parentURL and loads the result.
func (c *Chain) Import(ctx context.Context, specifier, parentURL string) (Module, error) {
	resolved, err := c.Resolve(ctx, LoadRequest{
		Specifier: specifier,
		Parent:    ResolutionContext{ParentURL: parentURL},
	})
	if err != nil {
		return Module{}, err
	}

	loaded, err := c.Load(ctx, ModuleRequest{URL: resolved.ResolvedURL, Format: resolved.Format})
	if err != nil {
		return Module{}, err
	}

	return Module{URL: resolved.ResolvedURL, Format: loaded.Format, Source: loaded.Source}, nil
}

func (c *Chain) resolveAt(i int) ResolveFunc {
	if i >= len(c.resolvers) {
		return c.fallback.Resolve
	}
	hook := c.resolvers[i]

	return func(ctx context.Context, req LoadRequest) (HookResult, error) {
		if err := ctx.Err(); err != nil {
			return HookResult{}, err
		}

		calls := 0
		var nextErr error
		next := func(ctx context.Context, req LoadRequest) (HookResult, error) {
			calls++
			if calls > 1 {
				nextErr = ErrNextCalledTwice
				return HookResult{}, nextErr
			}
			return c.resolveAt(i+1)(ctx, req)
		}

		res, err := hook.Resolve(ctx, req, next)
		err = c.settle(hook.Name(), PhaseResolve, res, err, calls, nextErr)
		if err != nil {
			return HookResult{}, err
		}
		return res, nil
	}
}

func (c *Chain) loadAt(i int) LoadFunc {
	if i >= len(c.loaders) {
		return c.fallback.Load
	}
	hook := c.loaders[i]

	return func(ctx context.Context, req ModuleRequest) (HookResult, error) {
		if err := ctx.Err(); err != nil {
			return HookResult{}, err
		}

		calls := 0
		var nextErr error
		next := func(ctx context.Context, req ModuleRequest) (HookResult, error) {
			calls++
			if calls > 1 {
				nextErr = ErrNextCalledTwice
				return HookResult{}, nextErr
			}
			return c.loadAt(i+1)(ctx, req)
		}

		res, err := hook.Load(ctx, req, next)
		err = c.settle(hook.Name(), PhaseLoad, res, err, calls, nextErr)
		if err != nil {
			return HookResult{}, err
		}
		return res, nil
	}
}

// settle applies the chain contract to one hook's outcome. A second call to
// next fails the request even if the hook swallowed that error.
func (c *Chain) settle(name string, phase Phase, res HookResult, err error, calls int, nextErr error) error {
	switch {
	case nextErr != nil:
		err = fmt.Errorf("hook %s: %w", name, nextErr)
	case err == nil && calls == 0 && !res.ShortCircuit:
		err = fmt.Errorf("hook %s: %w", name, ErrMissingShortCircuit)
	}

	if c.observer != nil {
		c.observer.HookInvoked(name, phase, err)
	}
	return err
}
