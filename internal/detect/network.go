package detect

import (
	"net/url"
	"strings"
)

// networkTags classifies same-session resource request URLs against the
// per-category domain keyword lists. Each distinct responding host
// contributes one deduplicated network_<host> tag per category.
func (e *Extractor) networkTags(requestURLs []string) (chat, booking, ota TagSet) {
	chat = NewTagSet()
	booking = NewTagSet()
	ota = NewTagSet()

	for _, raw := range requestURLs {
		lower := strings.ToLower(raw)
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			continue
		}
		tag := "network_" + parsed.Host

		if containsAny(lower, e.tables.ChatbotNetworkKeywords) {
			chat.Add(tag)
		}
		if containsAny(lower, e.tables.BookingNetworkKeywords) {
			booking.Add(tag)
		}
		if containsAny(lower, e.tables.OTANetworkKeywords) {
			ota.Add(tag)
		}
	}
	return chat, booking, ota
}
