package island

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Marker is one island found in a rendered document.
type Marker struct {
	Metadata ComponentMetadata
	// Payload is the metadata comment exactly as it appeared.
	Payload string
	// HTML is the markup between the metadata comment and the end marker.
	HTML string
}

type openMarker struct {
	index    int
	haveMeta bool
	inner    bytes.Buffer
}

// Extract scans an HTML document for island markers and returns them in
// document order. Islands may nest; an inner island also appears in the
// HTML of every island around it.
func Extract(r io.Reader) ([]Marker, error) {
	z := html.NewTokenizer(r)

	var (
		out   []Marker
		stack []*openMarker
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				break
			}
			return nil, z.Err()
		}

		raw := string(z.Raw())
		comment, isComment := commentText(tt, raw)

		switch {
		case isComment && len(stack) > 0 && !stack[len(stack)-1].haveMeta:
			top := stack[len(stack)-1]
			meta, err := DecodeMetadata(comment)
			if err != nil {
				return nil, fmt.Errorf("island %d: %w", top.index, err)
			}
			out[top.index].Metadata = meta
			out[top.index].Payload = comment
			top.haveMeta = true
			appendRaw(stack[:len(stack)-1], raw)

		case len(stack) > 0 && !stack[len(stack)-1].haveMeta:
			return nil, fmt.Errorf("island %d: start marker not followed by metadata", stack[len(stack)-1].index)

		case isComment && comment == "start":
			appendRaw(stack, raw)
			out = append(out, Marker{})
			stack = append(stack, &openMarker{index: len(out) - 1})

		case isComment && comment == "end":
			if len(stack) == 0 {
				return nil, fmt.Errorf("end marker without a start marker")
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out[top.index].HTML = top.inner.String()
			appendRaw(stack, raw)

		default:
			appendRaw(stack, raw)
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("%d island(s) without an end marker", len(stack))
	}
	return out, nil
}

// commentText returns the literal content of a comment token. The tokenizer's
// own Text unescapes entities, which would alter the payload.
func commentText(tt html.TokenType, raw string) (string, bool) {
	if tt != html.CommentToken {
		return "", false
	}
	s := strings.TrimPrefix(raw, "<!--")
	s = strings.TrimSuffix(s, "-->")
	return s, true
}

func appendRaw(frames []*openMarker, raw string) {
	for _, f := range frames {
		if f.haveMeta {
			f.inner.WriteString(raw)
		}
	}
}
