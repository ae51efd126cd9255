package formfill

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hazyhaar/formfill/field"
	"github.com/hazyhaar/formfill/formfill/internal/browser"
	"github.com/hazyhaar/formfill/htmldoc"
	"github.com/hazyhaar/formfill/internal/safeurl"
	"github.com/hazyhaar/formfill/profile"
)

// ErrBadURL is returned by FillURL for a URL Chrome should not open: not
// absolute http(s), or a private address unless browser.allow_private is set.
var ErrBadURL = errors.New("formfill: refused url")

// FillHTML fills the form controls of the HTML read from r and writes the
// resulting document to w. When resp is non-nil it is reconciled as is and
// neither the profile store nor the model is consulted.
func (s *Service) FillHTML(ctx context.Context, r io.Reader, w io.Writer, profileID string, resp *field.Response) (*Pass, error) {
	doc, err := htmldoc.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("formfill: %w", err)
	}
	descs := doc.Descriptors()

	var p *Pass
	if resp != nil {
		p, err = s.Reconcile(ctx, descs, *resp)
	} else {
		p, err = s.Plan(ctx, descs, profileID)
	}
	if err != nil {
		return nil, err
	}
	s.apply(ctx, doc, p, 0)

	if w != nil {
		if err := doc.Render(w); err != nil {
			return p, fmt.Errorf("formfill: render: %w", err)
		}
	}
	return p, nil
}

// FillURL opens pageURL in the shared Chrome, scrapes its form and fills it.
// The tab is closed when the pass is done; nothing is submitted.
func (s *Service) FillURL(ctx context.Context, pageURL, profileID string) (*Pass, error) {
	u, err := safeurl.Check(pageURL, s.cfg.Browser.AllowPrivate)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrBadURL, pageURL, err)
	}

	tab, err := browser.OpenTab(ctx, s.browserManager(), u.String())
	if err != nil {
		return nil, fmt.Errorf("formfill: %w", err)
	}
	defer tab.Close()

	descs, err := tab.Descriptors(ctx)
	if err != nil {
		return nil, fmt.Errorf("formfill: %w", err)
	}
	p, err := s.Plan(ctx, descs, profileID)
	if err != nil {
		return nil, err
	}
	p.URL = u.String()
	s.apply(ctx, tab.Document(), p, s.cfg.Fill.Delay)
	return p, nil
}

// ImportProfile reads a résumé file and stores it as a new profile. An
// empty name keeps the one derived from the file.
func (s *Service) ImportProfile(ctx context.Context, path, name string) (*profile.Profile, error) {
	if s.profiles == nil {
		return nil, ErrNoProfile
	}
	p, err := s.importer.Import(ctx, path)
	if err != nil {
		return nil, err
	}
	if name != "" {
		p.Name = name
	}
	if err := s.profiles.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
