package hooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/loader"
)

// ClassRewriteMap maps original class names to scoped ones in the order
// they were first seen.
type ClassRewriteMap = orderedmap.OrderedMap[string, string]

// AssetSink persists generated browser assets.
type AssetSink interface {
	WriteAsset(ctx context.Context, rel string, content []byte) error
}

var classSelector = regexp.MustCompile(`\.(-?[_a-zA-Z][_a-zA-Z0-9-]*)`)

// Prefix returns the class prefix for a stylesheet at a source-relative path.
func Prefix(rel string) string {
	sum := sha256.Sum256([]byte(rel))
	return "c" + hex.EncodeToString(sum[:])[:10] + "_"
}

// ScopeCSS prefixes every class selector in src.
//
// The scan is a regular expression, not a CSS parser: any `.name` token is
// rewritten, including ones inside comments, strings and url() arguments
// such as `url(bg.png)`.
func ScopeCSS(prefix, src string) (string, *ClassRewriteMap) {
	classes := orderedmap.New[string, string]()
	out := classSelector.ReplaceAllStringFunc(src, func(tok string) string {
		name := tok[1:]
		scoped := prefix + name
		if _, ok := classes.Get(name); !ok {
			classes.Set(name, scoped)
		}
		return "." + scoped
	})
	return out, classes
}

// PrefixRegistry remembers which stylesheet owns each prefix in a build.
type PrefixRegistry struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewPrefixRegistry returns an empty registry.
func NewPrefixRegistry() *PrefixRegistry {
	return &PrefixRegistry{owners: make(map[string]string)}
}

// Claim returns the prefix for rel, failing when another file already owns it.
func (r *PrefixRegistry) Claim(rel string) (string, error) {
	prefix := Prefix(rel)

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[prefix]; ok && owner != rel {
		return "", errors.NewTransformError("PREFIX_COLLISION", rel,
			"class prefix "+prefix+" already used by "+owner, nil)
	}
	r.owners[prefix] = rel
	return prefix, nil
}

// CSSHook scopes class names in CSS modules and replaces them with their
// class map.
type CSSHook struct {
	project  Project
	suffix   string
	sink     AssetSink
	registry *PrefixRegistry
}

// NewCSSHook returns a hook matching files ending in suffix.
func NewCSSHook(project Project, suffix string, sink AssetSink, registry *PrefixRegistry) *CSSHook {
	return &CSSHook{project: project, suffix: suffix, sink: sink, registry: registry}
}

func (h *CSSHook) Name() string { return "css-scoping" }

func (h *CSSHook) Load(ctx context.Context, req loader.ModuleRequest, next loader.LoadFunc) (loader.HookResult, error) {
	if _, ok := matchSuffix(req.URL, []string{h.suffix}); !ok {
		return next(ctx, req)
	}

	res, err := next(ctx, req)
	if err != nil {
		return loader.HookResult{}, err
	}

	rel, err := h.project.Rel(req.URL)
	if err != nil {
		return loader.HookResult{}, err
	}
	prefix, err := h.registry.Claim(rel)
	if err != nil {
		return loader.HookResult{}, err
	}

	scoped, classes := ScopeCSS(prefix, res.Source)
	if err := h.sink.WriteAsset(ctx, rel, []byte(scoped)); err != nil {
		return loader.HookResult{}, errors.NewTransformError("ASSET_WRITE", req.URL, "cannot persist scoped stylesheet", err)
	}

	table, err := json.Marshal(classes)
	if err != nil {
		return loader.HookResult{}, errors.NewTransformError("CLASS_MAP", req.URL, "cannot encode class map", err)
	}

	return loader.HookResult{
		Source:       "export default " + string(table) + ";\n",
		Format:       loader.FormatModule,
		ShortCircuit: true,
	}, nil
}
