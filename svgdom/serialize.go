package svgdom

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/benoitkugler/svgbridge/host"
)

var _ host.Serializer = XMLSerializer{}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\t", "&#9;", "\n", "&#10;", "\r", "&#13;")
)

// XMLSerializer serializes nodes of this package.
type XMLSerializer struct{}

// Serialize implements host.Serializer. Only nodes built
// by this package are accepted.
func (XMLSerializer) Serialize(s host.Scene) ([]byte, error) {
	n, ok := s.(*Node)
	if !ok {
		return nil, fmt.Errorf("svgdom: can't serialize foreign node %T", s)
	}
	var buf bytes.Buffer
	if err := n.WriteXML(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteXML writes the subtree rooted at n as self-contained text:
// attributes are written in order and without any elision, and
// the namespace declarations inherited from the ancestors of n
// are repeated on n. A root <svg> without default namespace
// receives the SVG one.
func (n *Node) WriteXML(w io.Writer) error {
	if n.Kind != ElementNode {
		_, err := io.WriteString(w, n.leafString())
		return err
	}
	root := *n
	root.Attr = append(n.inheritedNamespaces(), n.Attr...)
	var sb strings.Builder
	root.write(&sb)
	_, err := io.WriteString(w, sb.String())
	return err
}

// String returns the serialized subtree.
func (n *Node) String() string {
	var sb strings.Builder
	_ = n.WriteXML(&sb)
	return sb.String()
}

func (n *Node) leafString() string {
	if n.Kind == CommentNode {
		return "<!--" + n.Text + "-->"
	}
	return textEscaper.Replace(n.Text)
}

func (n *Node) write(sb *strings.Builder) {
	if n.Kind != ElementNode {
		sb.WriteString(n.leafString())
		return
	}
	name := qualified(n.Name)
	sb.WriteByte('<')
	sb.WriteString(name)
	for _, a := range n.Attr {
		sb.WriteByte(' ')
		sb.WriteString(qualified(a.Name))
		sb.WriteString(`="`)
		sb.WriteString(attrEscaper.Replace(a.Value))
		sb.WriteByte('"')
	}
	if len(n.Children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteByte('>')
	for _, c := range n.Children {
		c.write(sb)
	}
	sb.WriteString("</")
	sb.WriteString(name)
	sb.WriteByte('>')
}

func isNamespaceDecl(a xml.Attr) (prefix string, ok bool) {
	if a.Name.Space == "" && a.Name.Local == "xmlns" {
		return "", true
	}
	if a.Name.Space == "xmlns" {
		return a.Name.Local, true
	}
	return "", false
}

// usedPrefixes returns the prefixes used by element
// and attribute names of the subtree.
func (n *Node) usedPrefixes(into map[string]bool) {
	if n.Kind != ElementNode {
		return
	}
	if p := n.Name.Space; p != "" {
		into[p] = true
	}
	for _, a := range n.Attr {
		if p := a.Name.Space; p != "" && p != "xmlns" && p != "xml" {
			into[p] = true
		}
	}
	for _, c := range n.Children {
		c.usedPrefixes(into)
	}
}

// inheritedNamespaces returns the declarations n needs to be
// self-contained and does not carry itself.
func (n *Node) inheritedNamespaces() []xml.Attr {
	declared := map[string]bool{}
	for _, a := range n.Attr {
		if p, ok := isNamespaceDecl(a); ok {
			declared[p] = true
		}
	}
	used := map[string]bool{}
	n.usedPrefixes(used)
	used[""] = true // default namespace

	isSVG := n.Name.Space == "" && n.Name.Local == "svg"
	if !declared[""] && isSVG {
		used[""] = false
		declared[""] = true
		out := []xml.Attr{namespaceDecl("", svgNamespace)}
		return append(out, n.ancestorDecls(used, declared)...)
	}
	return n.ancestorDecls(used, declared)
}

func (n *Node) ancestorDecls(used, declared map[string]bool) []xml.Attr {
	var out []xml.Attr
	for p, u := range used {
		if !u || declared[p] {
			continue
		}
		if v, ok := n.lookupNamespace(p); ok {
			out = append(out, namespaceDecl(p, v))
		}
	}
	// deterministic output: default namespace first, then by prefix
	sort.Slice(out, func(i, j int) bool { return qualified(out[i].Name) < qualified(out[j].Name) })
	return out
}

// lookupNamespace searches the ancestors of n for the declaration of prefix.
func (n *Node) lookupNamespace(prefix string) (string, bool) {
	for anc := n.parent; anc != nil; anc = anc.parent {
		for _, a := range anc.Attr {
			if p, ok := isNamespaceDecl(a); ok && p == prefix {
				return a.Value, true
			}
		}
	}
	return "", false
}

func namespaceDecl(prefix, value string) xml.Attr {
	if prefix == "" {
		return xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: value}
	}
	return xml.Attr{Name: xml.Name{Space: "xmlns", Local: prefix}, Value: value}
}
