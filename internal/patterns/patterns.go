// Package patterns holds the curated keyword and indicator tables that drive
// signal detection. Tables are built once and injected into the extractor;
// nothing in this package mutates them after construction.
package patterns

// Tables groups every detection list by concern. Provider maps go from a
// provider tag (e.g. "zendesk") to the substrings that identify it in page
// content; the first matching keyword per provider is sufficient.
type Tables struct {
	Chatbot map[string][]string `yaml:"chatbot"`
	Booking map[string][]string `yaml:"booking"`
	OTA     map[string][]string `yaml:"ota"`

	// Network-tier domain keywords per category, matched against
	// resource-timing URLs.
	ChatbotNetworkKeywords []string `yaml:"chatbot_network_keywords"`
	BookingNetworkKeywords []string `yaml:"booking_network_keywords"`
	OTANetworkKeywords     []string `yaml:"ota_network_keywords"`

	// Behavioral chatbot indicators. Regex lists are compiled by the
	// extractor at construction.
	ChatUIRegexes         []string `yaml:"chat_ui_regexes"`
	ChatTextPhrases       []string `yaml:"chat_text_phrases"`
	ChatJSRegexes         []string `yaml:"chat_js_regexes"`
	FloatingButtonRegexes []string `yaml:"floating_button_regexes"`

	// Behavioral booking indicators.
	BookingFormRegexes []string `yaml:"booking_form_regexes"`
	CalendarKeywords   []string `yaml:"calendar_keywords"`
	PaymentKeywords    []string `yaml:"payment_keywords"`
	BookingAPIRegexes  []string `yaml:"booking_api_regexes"`

	// Behavioral OTA indicators.
	PricingRegexes        []string `yaml:"pricing_regexes"`
	AvailabilityRegexes   []string `yaml:"availability_regexes"`
	DirectBookingKeywords []string `yaml:"direct_booking_keywords"`
	ExternalLinkKeywords  []string `yaml:"external_link_keywords"`

	// Detail-flag keyword predicates.
	OnlineBookingPhrases   []string `yaml:"online_booking_phrases"`
	ContactFormPhrases     []string `yaml:"contact_form_phrases"`
	CommissionPhrases      []string `yaml:"commission_phrases"`
	ChatUISelectors        []string `yaml:"chat_ui_selectors"`
	BookingWidgetSelectors []string `yaml:"booking_widget_selectors"`

	// Dynamic-widget heuristics, evaluated against the live page via the
	// fetcher's selector queries rather than raw markup.
	DynamicChatSelectors    []string `yaml:"dynamic_chat_selectors"`
	DynamicChatKeywords     []string `yaml:"dynamic_chat_keywords"`
	DynamicBookingSelectors []string `yaml:"dynamic_booking_selectors"`
}

// Default returns the built-in tables.
func Default() *Tables {
	return &Tables{
		Chatbot: map[string][]string{
			"intercom":    {"intercom", "widget.intercom.io"},
			"zendesk":     {"zendesk", "zopim", "zdchat"},
			"drift":       {"drift.com", "js.driftt.com"},
			"tidio":       {"tidio", "code.tidio.co"},
			"tawk":        {"tawk.to", "embed.tawk.to"},
			"livechat":    {"livechatinc", "cdn.livechatinc.com"},
			"crisp":       {"crisp.chat", "client.crisp.chat"},
			"hubspot":     {"hubspot", "js.hs-analytics.net"},
			"freshchat":   {"freshchat", "wchat.freshchat.com"},
			"olark":       {"olark.com", "static.olark.com"},
			"smartsupp":   {"smartsupp.com"},
			"chatlio":     {"chatlio.com"},
			"pure_chat":   {"purechat.com"},
			"chat_widget": {"chat-widget", "chatwidget", "chat_widget"},
			"messenger":   {"messenger", "connect.facebook.net"},
		},
		Booking: map[string][]string{
			"fareharbor":       {"fareharbor.com", "fareharbor", "fh-button", "fh-widget"},
			"resd":             {"resd.com", "res-d.com", "resd-booking"},
			"woocommerce":      {"woocommerce", "wc-", "wp-content/plugins/woocommerce"},
			"shopify":          {"shopify", "cdn.shopify.com", "shop.app"},
			"bookeo":           {"bookeo.com", "bookeo"},
			"checkfront":       {"checkfront.com", "checkfront"},
			"peek":             {"peek.com", "bookwithpeek"},
			"rezdy":            {"rezdy.com", "rezdy"},
			"regiondo":         {"regiondo.com", "regiondo"},
			"trekksoft":        {"trekksoft.com", "trekksoft"},
			"bokun":            {"bokun.io", "bokun.com"},
			"viator":           {"viator.com", "viator"},
			"stripe":           {"stripe.com", "js.stripe.com"},
			"square":           {"squareup.com", "square"},
			"paypal":           {"paypal.com", "paypal"},
			"book_now":         {"book-now", "booknow", "reservation"},
			"calendar_booking": {"calendly.com", "acuityscheduling"},
		},
		OTA: map[string][]string{
			"getyourguide":  {"getyourguide.com", "getyourguide"},
			"viator":        {"viator.com", "viator"},
			"tripadvisor":   {"tripadvisor.com", "tripadvisor"},
			"expedia":       {"expedia.com", "expedia"},
			"airbnb":        {"airbnb.com", "airbnb"},
			"booking":       {"booking.com", "booking"},
			"klook":         {"klook.com", "klook"},
			"tiqets":        {"tiqets.com", "tiqets"},
			"headout":       {"headout.com", "headout"},
			"musement":      {"musement.com", "musement"},
			"citypass":      {"citypass.com", "citypass"},
			"gocity":        {"gocity.com", "smartdestinations"},
			"isango":        {"isango.com", "isango"},
			"attractiontix": {"attractiontix.com"},
			"veltra":        {"veltra.com", "veltra"},
		},
		ChatbotNetworkKeywords: []string{
			"chat", "support", "widget", "messenger", "livechat",
			"helpdesk", "zendesk", "intercom", "drift", "crisp",
			"tidio", "tawk", "olark", "freshchat", "purechat",
		},
		BookingNetworkKeywords: []string{
			"booking", "reserv", "ticket", "payment", "checkout",
			"stripe", "paypal", "square", "calendar",
		},
		OTANetworkKeywords: []string{
			"getyourguide", "viator", "tripadvisor", "expedia",
			"booking.com", "klook", "tiqets", "headout",
		},
		ChatUIRegexes: []string{
			`class="[^"]*chat[^"]*"`, `class="[^"]*message[^"]*"`,
			`class="[^"]*widget[^"]*"`, `class="[^"]*bubble[^"]*"`,
			`id="[^"]*chat[^"]*"`, `id="[^"]*message[^"]*"`,
			`<div[^>]*chat[^>]*>`, `<iframe[^>]*chat[^>]*>`,
			`data-[^=]*chat[^=]*=`, `aria-label="[^"]*chat[^"]*"`,
			`function[^{]*chat[^{]*\{`, `\.chat\s*\(`,
			`chat\s*:`, `chatbot`, `livechat`,
		},
		ChatTextPhrases: []string{
			"start chat", "chat with us", "live chat", "chat now",
			"send message", "type your message", "chat support",
			"online support", "ask us anything", "need help?",
			"how can we help", "chat bubble", "minimize chat",
		},
		ChatJSRegexes: []string{
			`onclick.*chat`, `onload.*chat`, `chat.*function`,
			`websocket`, `socket\.io`, `chat.*api`,
		},
		FloatingButtonRegexes: []string{
			`position:\s*fixed[^}]*bottom[^}]*right`,
			`position:\s*fixed[^}]*right[^}]*bottom`,
			`class="[^"]*float[^"]*"[^>]*chat`,
			`style="[^"]*z-index:\s*999[^"]*"`,
		},
		BookingFormRegexes: []string{
			`<form[^>]*book[^>]*>`, `<form[^>]*reserv[^>]*>`,
			`<form[^>]*ticket[^>]*>`, `input[^>]*date[^>]*`,
			`select[^>]*guest[^>]*>`, `select[^>]*person[^>]*>`,
			`input[^>]*quantity[^>]*>`, `button[^>]*book[^>]*>`,
		},
		CalendarKeywords: []string{
			"datepicker", "calendar-widget", "date-selector",
			"flatpickr", "pikaday", "datejs", "moment.js",
		},
		PaymentKeywords: []string{
			"payment-form", "credit-card", "card-number",
			"billing-address", "cvv", "expiry",
		},
		BookingAPIRegexes: []string{
			`api[/.]book`, `booking[/.]api`, `/reservation`,
			`ajax.*book`, `xhr.*reserv`,
		},
		PricingRegexes: []string{
			`from.*per person`, `starting from`, `price from`,
			`adult.*child.*price`, `group discount`,
		},
		AvailabilityRegexes: []string{
			`check availability`, `select date.*check`,
			`availability calendar`, `real.*time.*availability`,
		},
		DirectBookingKeywords: []string{"<form", "book now", "add to cart"},
		ExternalLinkKeywords:  []string{"book", "reserv", "ticket", "buy"},
		OnlineBookingPhrases: []string{
			"book online", "book now", "reserve now", "buy tickets", "purchase",
		},
		ContactFormPhrases: []string{
			"contact form", "contact us", "get in touch", "enquiry",
		},
		CommissionPhrases: []string{
			"commission", "booking fee", "service fee",
		},
		ChatUISelectors: []string{
			"chat-widget", "chat-bubble", "chat-button",
			"message-input", "chat-container", "live-chat",
		},
		BookingWidgetSelectors: []string{
			"booking-widget", "reservation-form", "book-now",
			"date-picker", "guest-selector", "booking-calendar",
		},
		DynamicChatSelectors: []string{
			`[class*="chat"]:not([class*="chart"])`, `[id*="chat"]:not([id*="chart"])`,
			`[class*="widget"]`, `[id*="widget"]`,
			`[class*="messenger"]`, `[id*="messenger"]`,
		},
		DynamicChatKeywords: []string{
			"start chat", "chat with", "live chat", "support chat",
			"help chat", "message us", "ask question", "need help",
		},
		DynamicBookingSelectors: []string{
			`[class*="book"]`, `[id*="book"]`,
			`[class*="reserv"]`, `[id*="reserv"]`,
			`form[action*="book"]`, `form[action*="reserv"]`,
		},
	}
}
