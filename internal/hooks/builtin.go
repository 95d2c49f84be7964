package hooks

import (
	"context"

	"github.com/conneroisu/isle/internal/island"
	"github.com/conneroisu/isle/internal/loader"
)

// IslandModule is the specifier generated universal stubs import wrap from.
const IslandModule = "isle:island"

// BuiltinHook serves the island runtime module.
type BuiltinHook struct{}

func (BuiltinHook) Name() string { return "builtin" }

func (BuiltinHook) Resolve(ctx context.Context, req loader.LoadRequest, next loader.ResolveFunc) (loader.HookResult, error) {
	if req.Specifier != IslandModule {
		return next(ctx, req)
	}
	return loader.HookResult{
		ResolvedURL:  IslandModule,
		Format:       loader.FormatBuiltin,
		ShortCircuit: true,
	}, nil
}

func (BuiltinHook) Load(ctx context.Context, req loader.ModuleRequest, next loader.LoadFunc) (loader.HookResult, error) {
	if req.URL != IslandModule {
		return next(ctx, req)
	}
	return loader.HookResult{
		Source:       island.ClientModuleSource,
		Format:       loader.FormatBuiltin,
		ShortCircuit: true,
	}, nil
}
