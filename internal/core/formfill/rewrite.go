package formfill

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	perr "campaigncollector/internal/platform/errors"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Method selects inputs
type Method string

// Target methods
const (
	ByName          Method = "name"
	ByClass         Method = "class"
	ByParentClass   Method = "parentClass"
	ByDataAttribute Method = "dataAttribute"
)

// ParseMethod validates a method name; unknown names fall back to ByName
func ParseMethod(s string) Method {
	switch m := Method(strings.TrimSpace(s)); m {
	case ByName, ByClass, ByParentClass, ByDataAttribute:
		return m
	}
	return ByName
}

// Targeting selects inputs for a selector value
type Targeting struct {
	Methods       []Method
	DataAttribute string
}

func (t Targeting) withDefaults() Targeting {
	if len(t.Methods) == 0 {
		t.Methods = []Method{ByName}
	}
	if t.DataAttribute == "" {
		t.DataAttribute = DefaultDataAttribute
	}
	return t
}

// Rewrite copies the HTML from r to w with matching inputs' value attributes set
// jsonField/jsonValue target the full-snapshot input and are skipped when empty.
// It returns the number of inputs written.
func Rewrite(r io.Reader, w io.Writer, values map[string]string, jsonField, jsonValue string, t Targeting) (int, error) {
	t = t.withDefaults()
	src, err := io.ReadAll(r)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "formfill: read html")
	}

	all := values
	if jsonField != "" && jsonValue != "" {
		all = make(map[string]string, len(values)+1)
		for k, v := range values {
			all[k] = v
		}
		all[jsonField] = jsonValue
	}

	nodes, err := parse(src)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "formfill: parse html")
	}
	n := 0
	for _, node := range nodes {
		n += walk(node, all, t)
	}
	for _, node := range nodes {
		if err := html.Render(w, node); err != nil {
			return n, perr.Wrap(err, perr.ErrorCodeUnknown, "formfill: render html")
		}
	}
	return n, nil
}

// full documents are parsed as such; anything else is a body fragment
func parse(src []byte) ([]*html.Node, error) {
	head := strings.ToLower(strings.TrimSpace(string(src[:min(len(src), 64)])))
	if strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html") {
		doc, err := html.Parse(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		return []*html.Node{doc}, nil
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(bytes.NewReader(src), body)
}

func walk(n *html.Node, values map[string]string, t Targeting) int {
	count := 0
	if n.Type == html.ElementNode && n.DataAtom == atom.Input {
		if v, ok := match(n, values, t); ok {
			setAttr(n, "value", v)
			count++
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count += walk(c, values, t)
	}
	return count
}

// match tries methods in order, returning the first selector that hits
func match(n *html.Node, values map[string]string, t Targeting) (string, bool) {
	for _, m := range t.Methods {
		switch m {
		case ByName:
			if v, ok := values[attr(n, "name")]; ok {
				return v, true
			}
		case ByClass:
			for _, c := range strings.Fields(attr(n, "class")) {
				if v, ok := values[c]; ok {
					return v, true
				}
			}
		case ByParentClass:
			for p := n.Parent; p != nil; p = p.Parent {
				if p.Type != html.ElementNode {
					continue
				}
				for _, c := range strings.Fields(attr(p, "class")) {
					if v, ok := values[c]; ok {
						return v, true
					}
				}
			}
		case ByDataAttribute:
			if v, ok := values[attr(n, t.DataAttribute)]; ok {
				return v, true
			}
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
