package render

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// SVGNamespace is set on standalone SVG documents.
const SVGNamespace = "http://www.w3.org/2000/svg"

// Attr is one element attribute. Attributes keep insertion order.
type Attr struct {
	Name  string
	Value string
}

// Element is a node in the rendered SVG/HTML tree.
type Element struct {
	Tag      string
	Attrs    []Attr
	Text     string
	Children []*Element
}

// El creates an element; attrs are name/value pairs.
func El(tag string, attrs ...string) *Element {
	e := &Element{Tag: tag}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Set(attrs[i], attrs[i+1])
	}
	return e
}

// Append adds child and returns it.
func (e *Element) Append(child *Element) *Element {
	e.Children = append(e.Children, child)
	return child
}

// Set sets an attribute, replacing an existing value.
func (e *Element) Set(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// Get returns an attribute value.
func (e *Element) Get(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// HasClass reports whether class is one of e's classes.
func (e *Element) HasClass(class string) bool {
	v, _ := e.Get("class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// Find returns the first descendant (or e itself) with the tag and, when
// class is not empty, the class.
func (e *Element) Find(tag, class string) *Element {
	if e.matches(tag, class) {
		return e
	}
	for _, c := range e.Children {
		if found := c.Find(tag, class); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant (or e itself) matching tag and class in
// document order.
func (e *Element) FindAll(tag, class string) []*Element {
	var out []*Element
	e.walk(func(n *Element) {
		if n.matches(tag, class) {
			out = append(out, n)
		}
	})
	return out
}

func (e *Element) matches(tag, class string) bool {
	return (tag == "" || e.Tag == tag) && (class == "" || e.HasClass(class))
}

func (e *Element) walk(fn func(*Element)) {
	fn(e)
	for _, c := range e.Children {
		c.walk(fn)
	}
}

// Encode writes e and its subtree as markup.
func (e *Element) Encode(enc *xml.Encoder) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Tag}}
	for _, a := range e.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if e.Text != "" {
		if err := enc.EncodeToken(xml.CharData(e.Text)); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := c.Encode(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// WriteHTML writes root as an HTML fragment.
func WriteHTML(w io.Writer, root *Element) error {
	enc := xml.NewEncoder(w)
	if err := root.Encode(enc); err != nil {
		return eris.Wrap(err, "render: encode html")
	}
	if err := enc.Flush(); err != nil {
		return eris.Wrap(err, "render: flush html")
	}
	return nil
}

// WriteSVG writes the first svg element under root as a standalone document.
func WriteSVG(w io.Writer, root *Element) error {
	svg := root.Find("svg", "")
	if svg == nil {
		return eris.New("render: no svg element")
	}
	doc := *svg
	doc.Attrs = append([]Attr{{Name: "xmlns", Value: SVGNamespace}}, svg.Attrs...)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return eris.Wrap(err, "render: write svg header")
	}
	enc := xml.NewEncoder(w)
	if err := doc.Encode(enc); err != nil {
		return eris.Wrap(err, "render: encode svg")
	}
	if err := enc.Flush(); err != nil {
		return eris.Wrap(err, "render: flush svg")
	}
	return nil
}
