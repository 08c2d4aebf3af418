// Package resolver walks the archive site to find the direct media URL of a
// day's full broadcast.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/browser"
	"kctvfetch/internal/config"
	"kctvfetch/internal/logging"
	"kctvfetch/internal/services"
)

var (
	// ErrBroadcastNotFound means no full broadcast is listed for the date.
	ErrBroadcastNotFound = fmt.Errorf("%w: broadcast not found", services.ErrNotFound)
	// ErrMediaElementTimeout means the article page never attached its player.
	ErrMediaElementTimeout = fmt.Errorf("%w: media element did not appear", services.ErrTimeout)
	// ErrMediaSourceMissing means the player carried no usable source URL.
	ErrMediaSourceMissing = fmt.Errorf("%w: media element has no source", services.ErrExternalTool)
)

// Options tunes resolver behaviour beyond the site table.
type Options struct {
	// Nudge moves the pointer after loading the article page.
	Nudge bool
}

// Resolver maps a date to a MediaLocation through two page loads: the search
// results page and the article page.
type Resolver struct {
	nav    browser.Navigator
	site   config.Site
	opts   Options
	logger *slog.Logger
}

// New constructs a resolver. site is copied and never modified.
func New(nav browser.Navigator, site config.Site, opts Options, logger *slog.Logger) *Resolver {
	return &Resolver{
		nav:    nav,
		site:   site,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "resolver"),
	}
}

// SearchURL renders the search results address for date.
func (r *Resolver) SearchURL(date broadcast.Date) string {
	return strings.ReplaceAll(r.site.SearchURL, config.SearchDatePlaceholder, date.Format(r.site.SearchDateLayout))
}

// Resolve returns the media URL for date or ErrBroadcastNotFound.
func (r *Resolver) Resolve(ctx context.Context, date broadcast.Date) (broadcast.MediaLocation, error) {
	ctx = services.WithStage(services.WithDate(ctx, date.Time()), "resolve")
	logger := logging.WithContext(ctx, r.logger)

	searchURL := r.SearchURL(date)
	logger.Info("searching archive", logging.String("url", searchURL))
	if err := r.nav.Navigate(ctx, searchURL); err != nil {
		return broadcast.MediaLocation{}, err
	}

	article, err := r.findFullBroadcast(ctx)
	if err != nil {
		return broadcast.MediaLocation{}, err
	}
	if article == nil {
		return broadcast.MediaLocation{}, fmt.Errorf("%w for %s", ErrBroadcastNotFound, date)
	}

	articleURL, err := r.articleURL(ctx, article, date)
	if err != nil {
		return broadcast.MediaLocation{}, err
	}
	logger.Info("found full broadcast article", logging.String("url", articleURL))

	mediaURL, err := r.mediaURL(ctx, articleURL, logger)
	if err != nil {
		return broadcast.MediaLocation{}, err
	}
	logger.Info("media url resolved",
		logging.String("url", mediaURL),
		logging.String(logging.FieldEventType, "media_resolved"),
	)
	return broadcast.MediaLocation{URL: mediaURL, Date: date}, nil
}

// findFullBroadcast returns the first article labelled as the full broadcast,
// or nil when none is.
func (r *Resolver) findFullBroadcast(ctx context.Context) (browser.Element, error) {
	articles, err := r.nav.FindAll(ctx, browser.ClassName(r.site.ArticleClass))
	if err != nil {
		return nil, err
	}
	for _, article := range articles {
		label, err := article.Find(ctx, browser.ClassName(r.site.LabelClass))
		if errors.Is(err, browser.ErrNoSuchElement) {
			continue
		}
		if err != nil {
			return nil, err
		}
		text, err := label.Text(ctx)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == r.site.LabelText {
			return article, nil
		}
	}
	return nil, nil
}

func (r *Resolver) articleURL(ctx context.Context, article browser.Element, date broadcast.Date) (string, error) {
	linkText := date.Format(r.site.LinkDateLayout)
	link, err := article.Find(ctx, browser.LinkText(linkText))
	if errors.Is(err, browser.ErrNoSuchElement) {
		return "", fmt.Errorf("%w: no link titled %q", ErrBroadcastNotFound, linkText)
	}
	if err != nil {
		return "", err
	}
	href, ok, err := link.Attribute(ctx, r.site.LinkAttribute)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(href) == "" {
		return "", fmt.Errorf("%w: link %q has no %s", ErrBroadcastNotFound, linkText, r.site.LinkAttribute)
	}
	return resolveReference(r.site.BaseURL, href)
}

func (r *Resolver) mediaURL(ctx context.Context, articleURL string, logger *slog.Logger) (string, error) {
	if err := r.nav.Navigate(ctx, articleURL); err != nil {
		return "", err
	}
	if r.opts.Nudge {
		if err := r.nav.Nudge(ctx); err != nil {
			logging.WarnWithContext(logger, "pointer nudge failed", "browser_nudge_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "player may not initialise"),
			)
		}
	}

	wait := time.Duration(r.site.PlayerWaitSeconds) * time.Second
	player, err := r.nav.WaitForPresence(ctx, browser.CSS(r.site.PlayerSelector), wait)
	if errors.Is(err, browser.ErrWaitTimeout) {
		return "", fmt.Errorf("%w: %s not attached within %s", ErrMediaElementTimeout, r.site.PlayerSelector, wait)
	}
	if err != nil {
		return "", err
	}

	source, err := player.Find(ctx, browser.CSS(r.site.SourceSelector))
	if errors.Is(err, browser.ErrNoSuchElement) {
		return "", fmt.Errorf("%w: no %s child", ErrMediaSourceMissing, r.site.SourceSelector)
	}
	if err != nil {
		return "", err
	}
	src, ok, err := source.Attribute(ctx, r.site.SourceAttribute)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(src) == "" {
		return "", fmt.Errorf("%w: empty %s", ErrMediaSourceMissing, r.site.SourceAttribute)
	}
	return resolveReference(articleURL, src)
}

func resolveReference(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "resolve", "parse base url", "Invalid base URL", err)
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "resolve", "parse link", "Invalid link on archive page", err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
