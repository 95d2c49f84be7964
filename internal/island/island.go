// Package island frames server-rendered components so a browser-side
// scanner can find them and hydrate them with the same props.
//
// A wrapped component renders as
//
//	<!--start--><!--{"path":...,"props":...}-->MARKUP<!--end--><script type="module" data-isle-boot>...</script>
//
// The bootstrap script tags its parent element with data-isle-container and
// removes itself.
package island

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

const (
	MarkerStart   = "<!--start-->"
	MarkerEnd     = "<!--end-->"
	ContainerAttr = "data-isle-container"
	BootAttr      = "data-isle-boot"
)

// bootstrapBody runs once per island. Module scripts execute in document
// order, so the first remaining boot script is the running one as long as
// every earlier boot script ran. Module scripts have no currentScript to
// find themselves by. A boot script that never executes, such as markup
// inserted through innerHTML, stays in the DOM; every later island then
// tags that script's parent and removes it instead of its own. Islands must
// reach the page as parsed HTML.
const bootstrapBody = `{const s=document.querySelector("script[` + BootAttr + `]");` +
	`if(s){s.parentElement&&s.parentElement.setAttribute("` + ContainerAttr + `","");s.remove();}}`

// BootstrapScript follows every island's end marker.
const BootstrapScript = `<script type="module" ` + BootAttr + `>` + bootstrapBody + `</script>`

// Wrap renders component(props) inside island markers. Metadata is encoded
// and the component rendered before anything reaches the writer, so a
// failure leaves the writer untouched.
func Wrap[P any](path string, component func(P) templ.Component, props P) templ.Component {
	return WrapNamed(path, "", component, props)
}

// WrapNamed is Wrap with a component name recorded in the metadata.
func WrapNamed[P any](path, name string, component func(P) templ.Component, props P) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		meta, err := EncodeMetadata(ComponentMetadata{Path: path, Props: props, Name: name})
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		buf.WriteString(MarkerStart)
		buf.WriteString("<!--")
		buf.WriteString(meta)
		buf.WriteString("-->")
		if err := component(props).Render(ctx, &buf); err != nil {
			return err
		}
		buf.WriteString(MarkerEnd)
		buf.WriteString(BootstrapScript)

		_, err = w.Write(buf.Bytes())
		return err
	})
}
