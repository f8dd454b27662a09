package detect

import (
	"fmt"
	"strings"
)

// chatbotScoreThreshold is the minimum accumulated indicator score before a
// page is considered to carry an unknown chat widget. Evidence below the
// threshold is discarded, not reported.
const chatbotScoreThreshold = 5

// chatbotBehavioral scores chat-related indicators in the raw markup and
// visible text. Structural indicators contribute their match count; text
// phrases add a flat +2, JS indicators +3, floating-button styles +2.
func (e *Extractor) chatbotBehavioral(html, text string) (evidence []string, likely bool) {
	score := 0

	for _, re := range e.chatUI {
		if n := len(re.FindAllStringIndex(html, -1)); n > 0 {
			score += n
			evidence = append(evidence, fmt.Sprintf("chat_ui_elements (%d found)", n))
		}
	}

	textLower := strings.ToLower(text)
	for _, phrase := range e.tables.ChatTextPhrases {
		if strings.Contains(textLower, phrase) {
			score += 2
			evidence = append(evidence, fmt.Sprintf("chat_text: '%s'", phrase))
		}
	}

	for _, re := range e.chatJS {
		if re.MatchString(html) {
			score += 3
			evidence = append(evidence, "js_chat_function")
		}
	}

	for _, re := range e.floating {
		if re.MatchString(html) {
			score += 2
			evidence = append(evidence, "floating_chat_button")
		}
	}

	if score < chatbotScoreThreshold {
		return nil, false
	}
	return evidence, true
}

// bookingBehavioral adds generic booking-system tags derived from page
// structure rather than known provider signatures.
func (e *Extractor) bookingBehavioral(html string, tags TagSet) {
	formMatches := 0
	for _, re := range e.bookingForm {
		if re.MatchString(html) {
			formMatches++
		}
	}
	if formMatches >= 3 {
		tags.Add("custom_booking_form")
	}

	htmlLower := strings.ToLower(html)
	if containsAny(htmlLower, e.tables.CalendarKeywords) {
		tags.Add("calendar_booking_widget")
	}
	if containsAny(htmlLower, e.tables.PaymentKeywords) {
		tags.Add("integrated_payment_system")
	}

	for _, re := range e.bookingAPI {
		if re.MatchString(html) {
			tags.Add("custom_booking_api")
			break
		}
	}
}
