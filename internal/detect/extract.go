package detect

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tourscan/internal/patterns"
)

// Extractor runs the tiered detection passes over page content. It compiles
// every behavioral regex once at construction; Extract itself allocates
// nothing shared and is safe for concurrent use.
type Extractor struct {
	tables *patterns.Tables

	chatUI       []*regexp.Regexp
	chatJS       []*regexp.Regexp
	floating     []*regexp.Regexp
	bookingForm  []*regexp.Regexp
	bookingAPI   []*regexp.Regexp
	pricing      []*regexp.Regexp
	availability []*regexp.Regexp
	hrefRe       *regexp.Regexp
}

// NewExtractor compiles the behavioral indicators from the given tables.
func NewExtractor(t *patterns.Tables) (*Extractor, error) {
	e := &Extractor{
		tables: t,
		hrefRe: regexp.MustCompile(`(?i)href="(https?://[^"]+)"`),
	}

	for _, group := range []struct {
		dst *[]*regexp.Regexp
		src []string
	}{
		{&e.chatUI, t.ChatUIRegexes},
		{&e.chatJS, t.ChatJSRegexes},
		{&e.floating, t.FloatingButtonRegexes},
		{&e.bookingForm, t.BookingFormRegexes},
		{&e.bookingAPI, t.BookingAPIRegexes},
		{&e.pricing, t.PricingRegexes},
		{&e.availability, t.AvailabilityRegexes},
	} {
		for _, expr := range group.src {
			re, err := regexp.Compile(`(?i)` + expr)
			if err != nil {
				return nil, eris.Wrapf(err, "detect: compile indicator %q", expr)
			}
			*group.dst = append(*group.dst, re)
		}
	}

	return e, nil
}

// Extract runs all detection tiers over one page. Tiers compose by logical
// OR: enabling an additional tier can only add tags, never remove one.
func (e *Extractor) Extract(pc PageContent) PageSignals {
	combined := strings.ToLower(pc.HTML) + " " + strings.ToLower(pc.Text)

	sig := NewPageSignals()

	// Tier 1: known signatures.
	if matchProviders(e.tables.Chatbot, combined, sig.ChatbotTypes) {
		sig.HasChatbot = true
	}
	matchProviders(e.tables.Booking, combined, sig.BookingTech)
	matchProviders(e.tables.OTA, combined, sig.OTADependencies)

	// Tier 2: behavioral scoring. The chatbot pass only runs when no known
	// provider matched; it can only flip HasChatbot on.
	if !sig.HasChatbot {
		if evidence, likely := e.chatbotBehavioral(pc.HTML, pc.Text); likely {
			sig.HasChatbot = true
			for _, ev := range evidence {
				sig.ChatbotTypes.Add(ev)
			}
		}
	}
	e.bookingBehavioral(pc.HTML, sig.BookingTech)
	e.otaBehavioral(pc, sig.OTADependencies)

	// Tier 3: network requests.
	chatNet, bookingNet, otaNet := e.networkTags(pc.NetworkRequestURLs)
	sig.ChatbotTypes.Union(chatNet)
	sig.BookingTech.Union(bookingNet)
	sig.OTADependencies.Union(otaNet)
	if len(chatNet) > 0 {
		sig.HasChatbot = true
	}

	sig.Details = e.details(pc, combined)

	return sig
}

// matchProviders records the provider tag for every provider with at least
// one keyword present in content. Returns true if anything matched.
func matchProviders(providers map[string][]string, content string, tags TagSet) bool {
	matched := false
	for provider, keywords := range providers {
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				tags.Add(provider)
				matched = true
				break
			}
		}
	}
	return matched
}

// details computes the simple keyword-presence flags plus the external
// booking link count.
func (e *Extractor) details(pc PageContent, combined string) Details {
	htmlLower := strings.ToLower(pc.HTML)
	return Details{
		HasOnlineBooking:     containsAny(combined, e.tables.OnlineBookingPhrases),
		HasContactForm:       containsAny(combined, e.tables.ContactFormPhrases),
		MentionsCommission:   containsAny(combined, e.tables.CommissionPhrases),
		HasChatUI:            containsAny(htmlLower, e.tables.ChatUISelectors),
		HasBookingWidgets:    containsAny(htmlLower, e.tables.BookingWidgetSelectors),
		ExternalBookingLinks: len(e.externalBookingLinks(pc)),
	}
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
