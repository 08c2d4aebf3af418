package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"kctvfetch/internal/logging"
	"kctvfetch/internal/services"
)

const (
	nudgeX = 10
	nudgeY = 10
)

// Options configures a browser session.
type Options struct {
	Binary            string
	Headless          bool
	Flags             []string
	NavigationTimeout time.Duration
	Logger            *slog.Logger
}

// Session is a chromedp-backed Navigator owning one browser process and tab.
type Session struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	navTimeout  time.Duration
	logger      *slog.Logger
}

// Open launches the browser and returns a ready tab. The browser lives until
// Close is called; ctx only bounds the launch.
func Open(ctx context.Context, opts Options) (*Session, error) {
	logger := logging.NewComponentLogger(opts.Logger, "browser")

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if binary := strings.TrimSpace(opts.Binary); binary != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(binary))
	}
	for _, flag := range opts.Flags {
		allocOpts = append(allocOpts, chromedp.Flag(flag, true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithDebugf(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	session := &Session{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		navTimeout:  opts.NavigationTimeout,
		logger:      logger,
	}
	if session.navTimeout <= 0 {
		session.navTimeout = time.Minute
	}

	launchCtx, cancel := session.bind(ctx, 0)
	defer cancel()
	if err := chromedp.Run(launchCtx); err != nil {
		session.Close()
		return nil, services.Wrap(services.ErrExternalTool, "browser", "launch", "Failed to start browser", err)
	}
	logger.Debug("browser started", logging.Bool("headless", opts.Headless), logging.String("binary", opts.Binary))
	return session, nil
}

// Close terminates the tab and the browser process.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

// bind derives an operation context from the tab that is also cancelled when
// the caller's ctx ends.
func (s *Session) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(s.tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		opCtx, cancelTimeout = context.WithTimeout(opCtx, timeout)
		return opCtx, func() {
			cancelTimeout()
			stop()
			cancel()
		}
	}
	return opCtx, func() {
		stop()
		cancel()
	}
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return classify(ctx, "navigate", fmt.Errorf("navigate %s: %w", url, err))
	}
	s.logger.Debug("navigated", logging.String("url", url))
	return nil
}

// Find returns the first document-scoped match without waiting.
func (s *Session) Find(ctx context.Context, sel Selector) (Element, error) {
	return first(s.FindAll(ctx, sel))
}

// FindAll returns every document-scoped match without waiting.
func (s *Session) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	return s.query(ctx, sel, nil)
}

// WaitForPresence blocks until sel attaches to the document or timeout elapses.
func (s *Session) WaitForPresence(ctx context.Context, sel Selector, timeout time.Duration) (Element, error) {
	query, by, err := compile(sel, nil)
	if err != nil {
		return nil, err
	}
	opCtx, cancel := s.bind(ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(opCtx, chromedp.Nodes(query, &nodes, by)); err != nil {
		if ctx.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrWaitTimeout, sel, timeout)
		}
		return nil, classify(ctx, "wait", err)
	}
	elements := s.wrap(nodes)
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, sel)
	}
	return elements[0], nil
}

// Nudge moves the mouse to a fixed offset inside the viewport.
func (s *Session) Nudge(ctx context.Context) error {
	opCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.MouseEvent(input.MouseMoved, nudgeX, nudgeY)); err != nil {
		return classify(ctx, "nudge", err)
	}
	return nil
}

func (s *Session) query(ctx context.Context, sel Selector, scope *cdp.Node) ([]Element, error) {
	query, by, err := compile(sel, scope)
	if err != nil {
		return nil, err
	}
	opts := []chromedp.QueryOption{by, chromedp.AtLeast(0)}
	if scope != nil {
		opts = append(opts, chromedp.FromNode(scope))
	}

	opCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(opCtx, chromedp.Nodes(query, &nodes, opts...)); err != nil {
		return nil, classify(ctx, "query", fmt.Errorf("query %s: %w", sel, err))
	}
	elements := s.wrap(nodes)
	if sel.Kind != KindLinkText {
		return elements, nil
	}
	matched := make([]Element, 0, len(elements))
	for _, el := range elements {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == sel.Value {
			matched = append(matched, el)
		}
	}
	return matched, nil
}

func (s *Session) wrap(nodes []*cdp.Node) []Element {
	elements := make([]Element, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, &element{session: s, node: node})
	}
	return elements
}

// compile maps a selector onto a chromedp query and strategy.
func compile(sel Selector, scope *cdp.Node) (string, chromedp.QueryOption, error) {
	value := strings.TrimSpace(sel.Value)
	if value == "" {
		return "", nil, fmt.Errorf("%w: empty %s selector", ErrUnsupportedSelector, sel.Kind)
	}
	switch sel.Kind {
	case KindClass:
		return "." + value, chromedp.ByQueryAll, nil
	case KindCSS:
		return value, chromedp.ByQueryAll, nil
	case KindLinkText:
		return "a", chromedp.ByQueryAll, nil
	case KindXPath:
		if scope != nil {
			return "", nil, fmt.Errorf("%w: xpath inside element", ErrUnsupportedSelector)
		}
		return value, chromedp.BySearch, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedSelector, sel.Kind)
	}
}

func classify(ctx context.Context, operation string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("browser %s: %w", operation, ctxErr)
	}
	return services.Wrap(services.ErrExternalTool, "browser", operation, "Browser operation failed", err)
}

func first(elements []Element, err error) (Element, error) {
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, ErrNoSuchElement
	}
	return elements[0], nil
}

type element struct {
	session *Session
	node    *cdp.Node
}

func (e *element) Text(ctx context.Context) (string, error) {
	opCtx, cancel := e.session.bind(ctx, e.session.navTimeout)
	defer cancel()
	var text string
	if err := chromedp.Run(opCtx, chromedp.Text([]cdp.NodeID{e.node.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", classify(ctx, "text", err)
	}
	return text, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	opCtx, cancel := e.session.bind(ctx, e.session.navTimeout)
	defer cancel()
	var (
		value string
		ok    bool
	)
	if err := chromedp.Run(opCtx, chromedp.AttributeValue([]cdp.NodeID{e.node.NodeID}, name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, classify(ctx, "attribute", err)
	}
	return value, ok, nil
}

func (e *element) Find(ctx context.Context, sel Selector) (Element, error) {
	return first(e.FindAll(ctx, sel))
}

func (e *element) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	return e.session.query(ctx, sel, e.node)
}
