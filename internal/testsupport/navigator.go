package testsupport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"kctvfetch/internal/browser"
)

// Node is a canned DOM node for FakeNavigator.
type Node struct {
	Tag      string
	ID       string
	Classes  []string
	Text     string
	Attrs    map[string]string
	Children []*Node
}

// El builds a node. Attributes "id" and "class" are split out of attrs.
func El(tag string, attrs map[string]string, text string, children ...*Node) *Node {
	n := &Node{Tag: tag, Text: text, Attrs: map[string]string{}, Children: children}
	for k, v := range attrs {
		switch k {
		case "id":
			n.ID = v
		case "class":
			n.Classes = strings.Fields(v)
		}
		n.Attrs[k] = v
	}
	return n
}

// FakeNavigator serves canned pages keyed by URL. Pages missing from the map
// render as an empty document.
type FakeNavigator struct {
	mu          sync.Mutex
	Pages       map[string]*Node
	Navigations []string
	Nudges      int
	NavigateErr error
	current     *Node
}

// NewFakeNavigator returns a navigator over the given pages.
func NewFakeNavigator(pages map[string]*Node) *FakeNavigator {
	if pages == nil {
		pages = map[string]*Node{}
	}
	return &FakeNavigator{Pages: pages}
}

func (f *FakeNavigator) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigations = append(f.Navigations, url)
	if f.NavigateErr != nil {
		return f.NavigateErr
	}
	page, ok := f.Pages[url]
	if !ok {
		page = El("html", nil, "")
	}
	f.current = page
	return nil
}

func (f *FakeNavigator) Find(ctx context.Context, sel browser.Selector) (browser.Element, error) {
	return firstElement(f.FindAll(ctx, sel))
}

func (f *FakeNavigator) FindAll(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	f.mu.Lock()
	root := f.current
	f.mu.Unlock()
	if root == nil {
		return nil, fmt.Errorf("fake navigator: no page loaded")
	}
	return findAll(ctx, root, sel)
}

// WaitForPresence never blocks; a missing element times out immediately.
func (f *FakeNavigator) WaitForPresence(ctx context.Context, sel browser.Selector, timeout time.Duration) (browser.Element, error) {
	el, err := f.Find(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("%w: %s after %s", browser.ErrWaitTimeout, sel, timeout)
	}
	return el, nil
}

func (f *FakeNavigator) Nudge(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Nudges++
	return nil
}

// NavigationCount reports how many navigations were requested.
func (f *FakeNavigator) NavigationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Navigations)
}

type fakeElement struct {
	node *Node
}

func (e fakeElement) Text(context.Context) (string, error) {
	return innerText(e.node), nil
}

func (e fakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := e.node.Attrs[name]
	return v, ok, nil
}

func (e fakeElement) Find(ctx context.Context, sel browser.Selector) (browser.Element, error) {
	return firstElement(e.FindAll(ctx, sel))
}

func (e fakeElement) FindAll(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	if sel.Kind == browser.KindXPath {
		return nil, fmt.Errorf("%w: xpath inside element", browser.ErrUnsupportedSelector)
	}
	return findAll(ctx, e.node, sel)
}

func findAll(ctx context.Context, root *Node, sel browser.Selector) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sel.Kind == browser.KindXPath {
		return nil, fmt.Errorf("%w: fake navigator has no xpath", browser.ErrUnsupportedSelector)
	}
	var out []browser.Element
	var walk func(*Node)
	walk = func(n *Node) {
		for _, child := range n.Children {
			if matches(child, sel) {
				out = append(out, fakeElement{node: child})
			}
			walk(child)
		}
	}
	walk(root)
	return out, nil
}

func matches(n *Node, sel browser.Selector) bool {
	switch sel.Kind {
	case browser.KindClass:
		return hasClass(n, sel.Value)
	case browser.KindLinkText:
		return n.Tag == "a" && strings.TrimSpace(innerText(n)) == sel.Value
	case browser.KindCSS:
		return matchesCSS(n, sel.Value)
	default:
		return false
	}
}

// matchesCSS understands the simple tag, tag#id and tag.class forms.
func matchesCSS(n *Node, css string) bool {
	tag, rest := css, ""
	if i := strings.IndexAny(css, "#."); i >= 0 {
		tag, rest = css[:i], css[i:]
	}
	if tag != "" && tag != n.Tag {
		return false
	}
	switch {
	case rest == "":
		return true
	case strings.HasPrefix(rest, "#"):
		return n.ID == rest[1:]
	default:
		return hasClass(n, rest[1:])
	}
}

func hasClass(n *Node, class string) bool {
	for _, c := range n.Classes {
		if c == class {
			return true
		}
	}
	return false
}

func innerText(n *Node) string {
	var b strings.Builder
	b.WriteString(n.Text)
	for _, child := range n.Children {
		b.WriteString(innerText(child))
	}
	return b.String()
}

func firstElement(elements []browser.Element, err error) (browser.Element, error) {
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, browser.ErrNoSuchElement
	}
	return elements[0], nil
}
