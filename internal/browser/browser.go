// Package browser exposes the page-navigation capability the resolver walks
// the archive site with. The production implementation drives a headless
// Chrome through chromedp; tests use the canned-DOM fake in testsupport.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kctvfetch/internal/services"
)

// Kind identifies how a selector value is interpreted.
type Kind int

const (
	// KindClass matches elements carrying a CSS class.
	KindClass Kind = iota
	// KindLinkText matches anchors whose trimmed visible text equals the value.
	KindLinkText
	// KindCSS matches a CSS selector path.
	KindCSS
	// KindXPath matches an XPath expression. Document scope only.
	KindXPath
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindLinkText:
		return "link-text"
	case KindCSS:
		return "css"
	case KindXPath:
		return "xpath"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Selector locates elements on a page.
type Selector struct {
	Kind  Kind
	Value string
}

func (s Selector) String() string { return s.Kind.String() + "=" + s.Value }

// ClassName selects elements by CSS class.
func ClassName(name string) Selector { return Selector{Kind: KindClass, Value: name} }

// LinkText selects anchors by their exact visible text.
func LinkText(text string) Selector { return Selector{Kind: KindLinkText, Value: text} }

// CSS selects elements by CSS selector path.
func CSS(path string) Selector { return Selector{Kind: KindCSS, Value: path} }

// XPath selects elements by XPath expression.
func XPath(expr string) Selector { return Selector{Kind: KindXPath, Value: expr} }

var (
	// ErrNoSuchElement reports that Find matched nothing.
	ErrNoSuchElement = fmt.Errorf("%w: no such element", services.ErrNotFound)
	// ErrWaitTimeout reports that WaitForPresence gave up.
	ErrWaitTimeout = fmt.Errorf("%w: element did not appear", services.ErrTimeout)
	// ErrUnsupportedSelector reports a selector kind the scope cannot evaluate.
	ErrUnsupportedSelector = errors.New("unsupported selector for scope")
)

// Element is a node on the current page. Elements become stale after the next
// navigation.
type Element interface {
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Find(ctx context.Context, sel Selector) (Element, error)
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
}

// Navigator drives a single browser tab.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	Find(ctx context.Context, sel Selector) (Element, error)
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
	WaitForPresence(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)
	// Nudge moves the pointer over the page so lazily initialised players load.
	Nudge(ctx context.Context) error
}
