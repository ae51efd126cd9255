package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/formfill/field"
)

// Tab is one page opened for a fill pass.
type Tab struct {
	Page *rod.Page
	URL  string

	router  *rod.HijackRouter
	release func()
}

// OpenTab starts Chrome if needed, opens a tab (stealth unless LevelPlain)
// and navigates to pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b, release, err := mgr.lease(ctx)
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if mgr.cfg.Stealth >= LevelHeadless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		release()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	tab := &Tab{Page: page, URL: pageURL, release: release}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		tab.router = blockResources(page, mgr.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		tab.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return tab, nil
}

// Document returns the fill.Document of the tab.
func (t *Tab) Document() *Document { return NewDocument(t.Page) }

// Descriptors scrapes the form controls of the tab.
func (t *Tab) Descriptors(ctx context.Context) ([]field.Descriptor, error) {
	return Scrape(ctx, t.Page)
}

// HTML serialises the current DOM.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Close stops request interception, closes the tab and returns its lease.
func (t *Tab) Close() error {
	if t.release != nil {
		defer t.release()
	}
	if t.router != nil {
		t.router.Stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
