package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tourscan/internal/patterns"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(patterns.Default())
	require.NoError(t, err)
	return e
}

func TestExtract_KnownChatbotSignature(t *testing.T) {
	e := newTestExtractor(t)

	ps := e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: `<html><head><script src="https://v2.zopim.com/?abc123"></script></head><body>Welcome</body></html>`,
		Text: "Welcome",
	})

	assert.True(t, ps.HasChatbot)
	assert.True(t, ps.ChatbotTypes.Has("zendesk"))
}

func TestExtract_KnownBookingSignature(t *testing.T) {
	e := newTestExtractor(t)

	ps := e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: `<html><body><script src="https://fareharbor.com/embeds/script/calendar/"></script>Tours daily</body></html>`,
		Text: "Tours daily",
	})

	assert.False(t, ps.HasChatbot)
	assert.True(t, ps.BookingTech.Has("fareharbor"))
}

func TestExtract_KnownOTASignature(t *testing.T) {
	e := newTestExtractor(t)

	ps := e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: `<html><body><a href="https://www.viator.com/tours/12345">Find us on Viator</a></body></html>`,
		Text: "Find us on Viator",
	})

	assert.True(t, ps.OTADependencies.Has("viator"))
}

func TestExtract_BehavioralChatbotBelowThreshold(t *testing.T) {
	e := newTestExtractor(t)

	// A couple of weak structural hints score below the threshold.
	ps := e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: `<html><body><div class="chat-area"></div></body></html>`,
		Text: "plain page",
	})

	assert.False(t, ps.HasChatbot)
	assert.Empty(t, ps.ChatbotTypes)
}

func TestExtract_BehavioralChatbotAboveThreshold(t *testing.T) {
	e := newTestExtractor(t)

	// Structural hints plus an invitation phrase plus a JS hook stack up
	// past the score threshold without any known vendor signature.
	html := `<html><body>
		<div class="chat-launcher"></div>
		<div class="chat-bubble"></div>
		<div id="chat-box"></div>
		<button onclick="openChat()">Need help?</button>
	</body></html>`
	ps := e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: html,
		Text: "Questions? Chat with us anytime.",
	})

	assert.True(t, ps.HasChatbot)
	assert.True(t, ps.ChatbotTypes.Has("js_chat_function"))
	assert.True(t, ps.ChatbotTypes.Has("chat_text: 'chat with us'"))
}

func TestExtract_BehavioralSkippedWhenSignatureFound(t *testing.T) {
	e := newTestExtractor(t)

	html := `<html><body>
		<script src="https://widget.intercom.io/widget/abc"></script>
		<div class="chat-launcher"></div><div class="chat-bubble"></div>
		<button onclick="openChat()">Need help?</button>
	</body></html>`
	ps := e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: html,
		Text: "Chat with us",
	})

	assert.True(t, ps.HasChatbot)
	assert.True(t, ps.ChatbotTypes.Has("intercom"))
	assert.False(t, ps.ChatbotTypes.Has("js_chat_function"))
}

func TestExtract_BehavioralBookingForm(t *testing.T) {
	e := newTestExtractor(t)

	// Three structural indicators: a book-action form, a date input, and a
	// guest selector. No known provider anywhere.
	html := `<html><body>
		<form action="/book" method="post">
			<input type="date" name="travel-date">
			<select name="guests"><option>2</option></select>
		</form>
	</body></html>`
	ps := e.Extract(PageContent{URL: "https://example.com", HTML: html, Text: "Plan your trip"})

	assert.True(t, ps.BookingTech.Has("custom_booking_form"))
}

func TestExtract_BehavioralBookingFormBelowThreshold(t *testing.T) {
	e := newTestExtractor(t)

	// Only two structural indicators.
	html := `<html><body>
		<form action="/book" method="post">
			<input type="date" name="travel-date">
		</form>
	</body></html>`
	ps := e.Extract(PageContent{URL: "https://example.com", HTML: html, Text: "Plan your trip"})

	assert.False(t, ps.BookingTech.Has("custom_booking_form"))
}

func TestExtract_SignatureOnlyAddsTags(t *testing.T) {
	e := newTestExtractor(t)

	base := PageContent{
		URL: "https://example.com",
		HTML: `<html><body>
			<form action="/book" method="post">
				<input type="date" name="travel-date">
				<select name="guests"><option>2</option></select>
			</form>
		</body></html>`,
		Text: "Plan your trip",
	}
	before := e.Extract(base)

	enriched := base
	enriched.HTML = `<script src="https://widget.intercom.io/widget/abc"></script>` + base.HTML
	after := e.Extract(enriched)

	// Dropping a new signature into the page can only add tags.
	for _, tag := range before.ChatbotTypes.Sorted() {
		assert.True(t, after.ChatbotTypes.Has(tag), "lost chatbot tag %q", tag)
	}
	for _, tag := range before.BookingTech.Sorted() {
		assert.True(t, after.BookingTech.Has(tag), "lost booking tag %q", tag)
	}
	for _, tag := range before.OTADependencies.Sorted() {
		assert.True(t, after.OTADependencies.Has(tag), "lost ota tag %q", tag)
	}
	assert.True(t, after.HasChatbot)
	assert.True(t, after.ChatbotTypes.Has("intercom"))
}

func TestExtract_NetworkTags(t *testing.T) {
	e := newTestExtractor(t)

	ps := e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: "<html><body>hi</body></html>",
		Text: "hi",
		NetworkRequestURLs: []string{
			"https://js.intercomcdn.com/frame.js",
			"https://js.intercomcdn.com/shim.js",
			"https://cdn.checkfront.com/booking.js",
		},
	})

	assert.True(t, ps.HasChatbot)
	assert.True(t, ps.ChatbotTypes.Has("network_js.intercomcdn.com"))
	assert.True(t, ps.BookingTech.Has("network_cdn.checkfront.com"))

	// Duplicate request hosts collapse into one tag.
	count := 0
	for _, tag := range ps.ChatbotTypes.Sorted() {
		if strings.HasPrefix(tag, "network_") {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtract_Deterministic(t *testing.T) {
	e := newTestExtractor(t)

	pc := PageContent{
		URL:  "https://example.com",
		HTML: `<script src="https://fareharbor.com/embeds"></script><script src="https://www.peek.com/widget"></script>`,
		Text: "tours daily",
	}

	first := e.Extract(pc).BookingTech.Join("; ")
	for range 10 {
		assert.Equal(t, first, e.Extract(pc).BookingTech.Join("; "))
	}
}

func TestExtract_OTABehavioral_ExternalRedirects(t *testing.T) {
	e := newTestExtractor(t)

	html := `<html><body>
		<a href="https://partner.example-agency.net/reserve/1">Tour A</a>
		<a href="https://tickets.thirdparty.io/buy/2">Tickets</a>
	</body></html>`
	ps := e.Extract(PageContent{URL: "https://example.com", HTML: html, Text: "tours"})

	assert.True(t, ps.OTADependencies.Has("external_booking_redirects"))
	assert.Equal(t, 2, ps.Details.ExternalBookingLinks)
}

func TestExtract_OTABehavioral_SameHostLinksIgnored(t *testing.T) {
	e := newTestExtractor(t)

	html := `<html><body>
		<a href="https://example.com/reserve/a">Tour A</a>
		<a href="https://example.com/reserve/b">Tour B</a>
	</body></html>`
	ps := e.Extract(PageContent{URL: "https://example.com", HTML: html, Text: "tours"})

	assert.False(t, ps.OTADependencies.Has("external_booking_redirects"))
	assert.Equal(t, 0, ps.Details.ExternalBookingLinks)
}

func TestExtract_OTABehavioral_StylePricing(t *testing.T) {
	e := newTestExtractor(t)

	ps := e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: "<html><body></body></html>",
		Text: "Tours starting from $99. Price from $120 for adults.",
	})
	assert.True(t, ps.OTADependencies.Has("ota_style_pricing"))

	// A single pricing phrase is not OTA-style enough.
	ps = e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: "<html><body></body></html>",
		Text: "Tours starting from $99.",
	})
	assert.False(t, ps.OTADependencies.Has("ota_style_pricing"))
}

func TestExtract_OTABehavioral_AvailabilityWithoutDirectBooking(t *testing.T) {
	e := newTestExtractor(t)

	text := "Check availability for your preferred dates."
	ps := e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: "<html><body><p>Call us to arrange your tour.</p></body></html>",
		Text: text,
	})
	assert.True(t, ps.OTADependencies.Has("availability_only_no_direct_booking"))

	// The same availability language next to a direct booking path is fine.
	ps = e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: `<html><body><form action="/checkout"></form></body></html>`,
		Text: text,
	})
	assert.False(t, ps.OTADependencies.Has("availability_only_no_direct_booking"))
}

func TestExtract_Details(t *testing.T) {
	e := newTestExtractor(t)

	text := "Book online today or contact us. We pay commission to partners."
	ps := e.Extract(PageContent{
		URL:  "https://example.com",
		HTML: "<html><body>" + text + "</body></html>",
		Text: text,
	})

	assert.True(t, ps.Details.HasOnlineBooking)
	assert.True(t, ps.Details.HasContactForm)
	assert.True(t, ps.Details.MentionsCommission)
}

func TestResult_Fold(t *testing.T) {
	r := NewResult()
	r.Fold(PageSignals{
		ChatbotTypes:    NewTagSet(),
		BookingTech:     NewTagSet("fareharbor"),
		OTADependencies: NewTagSet(),
	})
	r.Fold(PageSignals{
		HasChatbot:      true,
		ChatbotTypes:    NewTagSet("intercom"),
		BookingTech:     NewTagSet("fareharbor", "custom_booking_form"),
		OTADependencies: NewTagSet("viator"),
	})

	assert.True(t, r.HasChatbot)
	assert.Equal(t, 2, r.PagesAnalyzed)
	assert.Equal(t, []string{"custom_booking_form", "fareharbor"}, r.BookingTech.Sorted())
	assert.True(t, r.HasBookingCapability())
}
