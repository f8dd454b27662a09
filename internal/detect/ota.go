package detect

import (
	"net/url"
	"strings"
)

// otaBehavioral adds OTA-dependency tags that don't come from a known
// provider signature: external booking redirects, OTA-style pricing
// phrasing, and availability language without a direct booking path.
func (e *Extractor) otaBehavioral(pc PageContent, tags TagSet) {
	if len(e.externalBookingLinks(pc)) >= 2 {
		tags.Add("external_booking_redirects")
	}

	pricingMatches := 0
	for _, re := range e.pricing {
		if re.MatchString(pc.Text) {
			pricingMatches++
		}
	}
	if pricingMatches >= 2 {
		tags.Add("ota_style_pricing")
	}

	hasAvailability := false
	for _, re := range e.availability {
		if re.MatchString(pc.Text) {
			hasAvailability = true
			break
		}
	}
	hasDirectBooking := containsAny(strings.ToLower(pc.HTML), e.tables.DirectBookingKeywords)
	if hasAvailability && !hasDirectBooking {
		tags.Add("availability_only_no_direct_booking")
	}
}

// externalBookingLinks returns the hrefs of anchors that point off-domain
// and contain a booking-like keyword. An unparseable page URL yields zero
// links rather than an error.
func (e *Extractor) externalBookingLinks(pc PageContent) []string {
	pageURL, err := url.Parse(pc.URL)
	if err != nil || pageURL.Host == "" {
		return nil
	}

	var links []string
	for _, m := range e.hrefRe.FindAllStringSubmatch(pc.HTML, -1) {
		href := m[1]
		target, err := url.Parse(href)
		if err != nil || target.Host == "" || target.Host == pageURL.Host {
			continue
		}
		if containsAny(strings.ToLower(href), e.tables.ExternalLinkKeywords) {
			links = append(links, href)
		}
	}
	return links
}
