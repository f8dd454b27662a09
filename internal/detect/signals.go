// Package detect turns raw page content into structured technology signals:
// chat widgets, booking systems, and OTA integrations. Extraction is a pure
// function of its inputs so fixtures can be tested without a live fetch.
package detect

import (
	"sort"
	"strings"
)

// TagSet is a deduplicated set of detection tags.
type TagSet map[string]struct{}

// NewTagSet creates a TagSet from the given tags.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Add inserts a tag.
func (s TagSet) Add(tag string) { s[tag] = struct{}{} }

// Has reports whether the tag is present.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Union merges other into s.
func (s TagSet) Union(other TagSet) {
	for t := range other {
		s[t] = struct{}{}
	}
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Join returns the sorted tags joined by sep.
func (s TagSet) Join(sep string) string {
	return strings.Join(s.Sorted(), sep)
}

// Details holds the per-page boolean/count flags derived from simple keyword
// presence checks.
type Details struct {
	HasOnlineBooking     bool `json:"has_online_booking"`
	HasContactForm       bool `json:"has_contact_form"`
	MentionsCommission   bool `json:"mentions_commission"`
	HasChatUI            bool `json:"has_live_chat_ui"`
	HasBookingWidgets    bool `json:"has_booking_widgets"`
	ExternalBookingLinks int  `json:"external_booking_links"`
}

// PageContent is the raw material for one page's extraction.
type PageContent struct {
	HTML               string
	Text               string
	URL                string
	NetworkRequestURLs []string
}

// PageSignals is the per-page detection output. Only its union across a
// site's visited pages survives aggregation.
type PageSignals struct {
	HasChatbot      bool
	ChatbotTypes    TagSet
	BookingTech     TagSet
	OTADependencies TagSet
	Details         Details
}

// NewPageSignals returns empty per-page signals with allocated tag sets.
func NewPageSignals() PageSignals {
	return PageSignals{
		ChatbotTypes:    NewTagSet(),
		BookingTech:     NewTagSet(),
		OTADependencies: NewTagSet(),
	}
}

// Result is the site-level aggregate across all visited pages.
type Result struct {
	HasChatbot      bool    `json:"has_chatbot"`
	ChatbotTypes    TagSet  `json:"-"`
	BookingTech     TagSet  `json:"-"`
	OTADependencies TagSet  `json:"-"`
	Details         Details `json:"analysis_details"`
	PagesAnalyzed   int     `json:"pages_analyzed"`
}

// NewResult returns an empty aggregate.
func NewResult() *Result {
	return &Result{
		ChatbotTypes:    NewTagSet(),
		BookingTech:     NewTagSet(),
		OTADependencies: NewTagSet(),
	}
}

// Fold merges one page's signals into the aggregate: a chatbot on any page
// counts, tag sets are unioned. Details are taken from the root page only,
// which the crawler handles separately.
func (r *Result) Fold(ps PageSignals) {
	if ps.HasChatbot {
		r.HasChatbot = true
	}
	r.ChatbotTypes.Union(ps.ChatbotTypes)
	r.BookingTech.Union(ps.BookingTech)
	r.OTADependencies.Union(ps.OTADependencies)
	r.PagesAnalyzed++
}

// HasBookingCapability reports whether any booking technology was detected
// or the site advertises online booking.
func (r *Result) HasBookingCapability() bool {
	return len(r.BookingTech) > 0 || r.Details.HasOnlineBooking
}
