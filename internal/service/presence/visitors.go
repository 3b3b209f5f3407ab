package presence

import (
	"context"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/ids"
	"github.com/custompc-tech/storefront/backend/internal/model/presence"
)

// Visit is one page view reported by a browser.
type Visit struct {
	VisitorID string `json:"visitorId"`
	Page      string `json:"page"`
	Referrer  string `json:"referrer"`
	UserAgent string `json:"userAgent"`
	Language  string `json:"language"`
	// LastVisit comes from the last-visit cookie, zero on a first visit.
	LastVisit int64 `json:"lastVisit"`
}

// TrackVisit records a page view and returns the updated visitor. A visit
// without an id starts a new visitor.
func (s *Service) TrackVisit(ctx context.Context, in Visit) (presence.Visitor, error) {
	now := s.clock.Now()
	nowMs := clock.Millis(now)

	var existing *presence.Visitor
	if in.VisitorID != "" {
		visitors, err := s.store.Visitors(ctx)
		if err != nil {
			return presence.Visitor{}, err
		}
		for i := range visitors {
			if visitors[i].VisitorID == in.VisitorID {
				existing = &visitors[i]
				break
			}
		}
	} else {
		in.VisitorID = ids.New(ids.PrefixVisitor, now)
	}

	v := presence.Visitor{
		VisitorID:    in.VisitorID,
		Pages:        []string{},
		SessionStart: nowMs,
		IsReturning:  in.LastVisit > 0,
	}
	if existing != nil {
		v = *existing
		v.IsReturning = true
		if nowMs-v.LastUpdated >= presence.VisitorWindow.Milliseconds() {
			v.SessionStart = nowMs
		}
	}

	if in.Page != "" && !v.HasPage(in.Page) {
		v.Pages = append(v.Pages, in.Page)
	}
	if in.Page != "" {
		v.LastPage = in.Page
	}
	if in.Referrer != "" {
		v.Referrer = in.Referrer
	}
	if in.UserAgent != "" {
		v.UserAgent = in.UserAgent
	}
	if in.Language != "" {
		v.Language = in.Language
	}
	v.LastUpdated = nowMs

	if err := s.store.TrackVisitor(ctx, v); err != nil {
		return presence.Visitor{}, err
	}
	return v, nil
}

// ActiveVisitors returns visitors seen within presence.VisitorWindow.
func (s *Service) ActiveVisitors(ctx context.Context) ([]presence.Visitor, error) {
	visitors, err := s.store.Visitors(ctx)
	if err != nil {
		return nil, err
	}
	return presence.FilterActiveVisitors(visitors, s.clock.Now()), nil
}
