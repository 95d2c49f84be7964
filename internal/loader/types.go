// Package loader implements the hook chain that every module of the server
// module graph passes through: an ordered pipeline of resolve and load
// interceptors in front of a filesystem fallback.
//
// A hook receives the request and a next function invoking the rest of the
// chain. It may call next zero times (replacing resolution or loading, in
// which case it must short-circuit), once (pass-through or transform), and
// never more than once. The first error aborts the module; nothing is cached.
package loader

import (
	"context"
)

// ModuleFormat tells the consumer how to interpret a loaded source.
type ModuleFormat string

const (
	FormatModule  ModuleFormat = "module"
	FormatJSON    ModuleFormat = "json"
	FormatCSS     ModuleFormat = "css"
	FormatBuiltin ModuleFormat = "builtin"
)

// ResolutionContext describes where a specifier was found.
type ResolutionContext struct {
	ParentURL  string
	Conditions []string
}

// LoadRequest is one module reference, produced once per import site.
type LoadRequest struct {
	Specifier string
	Parent    ResolutionContext
}

// ModuleRequest asks for the source of an already resolved URL.
type ModuleRequest struct {
	URL    string
	Format ModuleFormat
}

// HookResult is what a hook, or the fallback, hands back. Resolve hooks fill
// ResolvedURL, load hooks fill Source.
type HookResult struct {
	Format       ModuleFormat
	ShortCircuit bool
	Source       string
	ResolvedURL  string
}

// Module is a fully resolved and loaded module.
type Module struct {
	URL    string
	Format ModuleFormat
	Source string
}

// ResolveFunc invokes the remainder of the resolve chain.
type ResolveFunc func(ctx context.Context, req LoadRequest) (HookResult, error)

// LoadFunc invokes the remainder of the load chain.
type LoadFunc func(ctx context.Context, req ModuleRequest) (HookResult, error)

// Hook is anything registered on a Chain. It must implement ResolveHook,
// LoadHook, or both.
type Hook interface {
	Name() string
}

// ResolveHook intercepts specifier resolution.
type ResolveHook interface {
	Hook
	Resolve(ctx context.Context, req LoadRequest, next ResolveFunc) (HookResult, error)
}

// LoadHook intercepts source loading.
type LoadHook interface {
	Hook
	Load(ctx context.Context, req ModuleRequest, next LoadFunc) (HookResult, error)
}

// Fallback terminates both chains.
type Fallback interface {
	Resolve(ctx context.Context, req LoadRequest) (HookResult, error)
	Load(ctx context.Context, req ModuleRequest) (HookResult, error)
}

// Phase names a chain for observers.
type Phase string

const (
	PhaseResolve Phase = "resolve"
	PhaseLoad    Phase = "load"
)

// Observer is told about every hook invocation. It must be safe for
// concurrent use.
type Observer interface {
	HookInvoked(hook string, phase Phase, err error)
}
