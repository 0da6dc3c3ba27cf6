package domain

import (
	"fmt"
	"math"
	"strings"
)

// StatGroup names the counter map a stat lives in.
type StatGroup string

const (
	StatGroupEngagement StatGroup = "engagementStats"
	StatGroupShare      StatGroup = "shareStats"
)

// StatPath addresses a single counter, e.g. engagementStats.views.
type StatPath struct {
	Group StatGroup
	Field string
}

// String renders the dotted document field path.
func (p StatPath) String() string {
	return string(p.Group) + "." + p.Field
}

// EngagementEvent is a viewer interaction reported by the public catalog page.
type EngagementEvent string

const (
	EngagementView           EngagementEvent = "view"
	EngagementItemClick      EngagementEvent = "itemClick"
	EngagementCallClick      EngagementEvent = "callClick"
	EngagementWhatsappClick  EngagementEvent = "whatsappClick"
	EngagementDirectionClick EngagementEvent = "directionClick"
)

// ParseEngagementEvent accepts the event name or its counter field name
// ("view" and "views" are equivalent).
func ParseEngagementEvent(raw string) (EngagementEvent, error) {
	trimmed := strings.TrimSpace(raw)
	for _, event := range []EngagementEvent{EngagementView, EngagementItemClick, EngagementCallClick, EngagementWhatsappClick, EngagementDirectionClick} {
		if strings.EqualFold(trimmed, string(event)) || strings.EqualFold(trimmed, event.StatPath().Field) {
			return event, nil
		}
	}
	return "", fmt.Errorf("unknown engagement event %q", raw)
}

// StatPath returns the counter incremented for the event.
func (e EngagementEvent) StatPath() StatPath {
	field := string(e) + "s"
	if e == EngagementView {
		field = "views"
	}
	return StatPath{Group: StatGroupEngagement, Field: field}
}

// ShareChannel is an outbound distribution channel.
type ShareChannel string

const (
	ShareWhatsapp ShareChannel = "whatsapp"
	ShareFacebook ShareChannel = "facebook"
	ShareTwitter  ShareChannel = "twitter"
	ShareCopy     ShareChannel = "copy"
)

// ParseShareChannel validates a channel name.
func ParseShareChannel(raw string) (ShareChannel, error) {
	switch ch := ShareChannel(strings.ToLower(strings.TrimSpace(raw))); ch {
	case ShareWhatsapp, ShareFacebook, ShareTwitter, ShareCopy:
		return ch, nil
	}
	return "", fmt.Errorf("unknown share channel %q", raw)
}

// StatPath returns the counter incremented for the channel.
func (c ShareChannel) StatPath() StatPath {
	return StatPath{Group: StatGroupShare, Field: string(c)}
}

// ConversionRate is ctas/views*100 rounded to one decimal. It is 0 when there are no views.
func ConversionRate(views, ctas int64) float64 {
	if views <= 0 {
		return 0
	}
	return math.Round(float64(ctas)/float64(views)*1000) / 10
}

// CTAClicks counts the call-to-action interactions used as conversions.
func (s EngagementStats) CTAClicks() int64 {
	return s.WhatsappClicks + s.CallClicks
}

// Total sums the share counters.
func (s ShareStats) Total() int64 {
	return s.Whatsapp + s.Facebook + s.Twitter + s.Copy
}

// AnalyticsSummary aggregates counters across one or more catalogs.
type AnalyticsSummary struct {
	CatalogCount    int
	Views           int64
	ItemClicks      int64
	CTAClicks       int64
	DirectionClicks int64
	Shares          ShareStats
	ConversionRate  float64
}

// Summarize totals the counters of the given catalogs.
func Summarize(catalogs []Catalog) AnalyticsSummary {
	var summary AnalyticsSummary
	for _, catalog := range catalogs {
		summary.CatalogCount++
		summary.Views += catalog.EngagementStats.Views
		summary.ItemClicks += catalog.EngagementStats.ItemClicks
		summary.CTAClicks += catalog.EngagementStats.CTAClicks()
		summary.DirectionClicks += catalog.EngagementStats.DirectionClicks
		summary.Shares.Whatsapp += catalog.ShareStats.Whatsapp
		summary.Shares.Facebook += catalog.ShareStats.Facebook
		summary.Shares.Twitter += catalog.ShareStats.Twitter
		summary.Shares.Copy += catalog.ShareStats.Copy
	}
	summary.ConversionRate = ConversionRate(summary.Views, summary.CTAClicks)
	return summary
}
