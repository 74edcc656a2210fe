// Implements a minimal in-memory document made of SVG (or XHTML) nodes.
// It plays the part of the DOM for the bridge: elements are found
// by their id attribute, receive pointer captures and may be
// serialized back to text.
package svgdom

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/benoitkugler/svgbridge/host"
	"golang.org/x/net/html/charset"
)

var (
	_ host.Directory = (*Document)(nil)
	_ host.Scene     = (*Node)(nil)
)

const svgNamespace = "http://www.w3.org/2000/svg"

// Kind distinguishes element, text and comment nodes.
type Kind uint8

const (
	ElementNode Kind = iota
	TextNode
	CommentNode
)

// Node is one node of the document tree.
// Names keep their raw prefix in Name.Space (for instance "xlink"),
// so that serialization gives back the names as authored.
type Node struct {
	Kind     Kind
	Name     xml.Name
	Attr     []xml.Attr
	Children []*Node
	Text     string // for text and comment nodes

	parent *Node
	doc    *Document
}

// NewElement returns a detached element node.
func NewElement(local string, attrs ...xml.Attr) *Node {
	return &Node{Kind: ElementNode, Name: xml.Name{Local: local}, Attr: attrs}
}

// Attr is a convenience constructor for unprefixed attributes.
func Attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// Append adds children to n and returns n.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		n.Children = append(n.Children, c)
	}
	return n
}

// AppendText adds a text child to n and returns n.
func (n *Node) AppendText(text string) *Node {
	return n.Append(&Node{Kind: TextNode, Text: text})
}

func (n *Node) Parent() *Node { return n.parent }

// Tag returns the local name of the element.
func (n *Node) Tag() string { return n.Name.Local }

// Get returns the value of the unprefixed attribute `name`.
func (n *Node) Get(name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// ID returns the id attribute, or an empty string.
func (n *Node) ID() string {
	id, _ := n.Get("id")
	return id
}

// SetPointerCapture routes the pointer to n in its document.
// Detached nodes ignore the call.
func (n *Node) SetPointerCapture(pointerID int) {
	if n.doc == nil {
		return
	}
	n.doc.setCapture(pointerID, n)
}

// ReleasePointerCapture releases the pointer if n holds it.
func (n *Node) ReleasePointerCapture(pointerID int) {
	if n.doc == nil {
		return
	}
	n.doc.releaseCapture(pointerID, n)
}

// Document indexes a tree by element id and keeps
// the pointer capture table.
type Document struct {
	Root *Node

	byID map[string]*Node

	mu       sync.Mutex
	captures map[int]*Node // pointer id -> capturing element
}

// NewDocument adopts the tree rooted at root.
// When several elements share an id, the first one in
// document order wins, as getElementById does.
func NewDocument(root *Node) *Document {
	doc := &Document{Root: root, byID: make(map[string]*Node), captures: make(map[int]*Node)}
	doc.adopt(root, nil)
	return doc
}

func (doc *Document) adopt(n, parent *Node) {
	n.doc = doc
	n.parent = parent
	if n.Kind == ElementNode {
		if id := n.ID(); id != "" {
			if _, has := doc.byID[id]; !has {
				doc.byID[id] = n
			}
		}
	}
	for _, c := range n.Children {
		doc.adopt(c, n)
	}
}

// Node returns the element with the given id.
func (doc *Document) Node(id string) (*Node, bool) {
	n, ok := doc.byID[id]
	return n, ok
}

// ElementByID implements host.Directory.
func (doc *Document) ElementByID(id string) (host.Element, bool) {
	n, ok := doc.byID[id]
	if !ok {
		return nil, false
	}
	return n, true
}

// Parse reads a whole document. Attribute order, attribute values,
// prefixes, character data and comments are kept as authored.
// Non UTF-8 encodings declared in the prolog are supported.
func Parse(r io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Entity = xml.HTMLEntity

	var (
		root  *Node
		stack []*Node
	)
	for {
		t, err := decoder.RawToken()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		switch tok := t.(type) {
		case xml.StartElement:
			n := &Node{Kind: ElementNode, Name: tok.Name, Attr: append([]xml.Attr(nil), tok.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("svgdom: multiple root elements")
				}
				root = n
			} else {
				top := stack[len(stack)-1]
				top.Children = append(top.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("svgdom: unexpected end element </%s>", qualified(tok.Name))
			}
			top := stack[len(stack)-1]
			if top.Name != tok.Name {
				return nil, fmt.Errorf("svgdom: element <%s> closed by </%s>", qualified(top.Name), qualified(tok.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 { // whitespace around the root
				continue
			}
			top := stack[len(stack)-1]
			top.Children = append(top.Children, &Node{Kind: TextNode, Text: string(tok)})
		case xml.Comment:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			top.Children = append(top.Children, &Node{Kind: CommentNode, Text: string(tok)})
		}
	}
	if root == nil {
		return nil, errors.New("svgdom: empty document")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("svgdom: unclosed element <%s>", qualified(stack[len(stack)-1].Name))
	}
	return NewDocument(root), nil
}

// ParseFile reads the document stored in `filename`.
func ParseFile(filename string) (*Document, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}
