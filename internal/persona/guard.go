package persona

import (
	"regexp"
	"strings"
)

var (
	cardCandidate  = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
	numericSecret  = regexp.MustCompile(`(?i)\b(otp|one[- ]time (?:password|passcode|code)|cvv|cvc|m?pin)\b(\s*(?:is|:|=|-|no\.?)?\s*)(\d[\d ]{1,8}\d)`)
	passwordSecret = regexp.MustCompile(`(?i)\b(password|passcode)\b(\s*(?:is|:|=)\s*)(\S+)`)
)

// Guard masks never-share values in a reply: Luhn-valid card numbers keep
// only their last four digits, and values following OTP, CVV, PIN or
// password labels are starred out. It reports whether anything changed.
func Guard(reply string) (string, bool) {
	out := cardCandidate.ReplaceAllStringFunc(reply, func(m string) string {
		digits := onlyDigits(m)
		if len(digits) < 13 || len(digits) > 19 || !luhnValid(digits) {
			return m
		}
		return strings.Repeat("X", len(digits)-4) + digits[len(digits)-4:]
	})
	out = numericSecret.ReplaceAllStringFunc(out, func(m string) string {
		parts := numericSecret.FindStringSubmatch(m)
		return parts[1] + parts[2] + strings.Repeat("*", len(onlyDigits(parts[3])))
	})
	out = passwordSecret.ReplaceAllStringFunc(out, func(m string) string {
		parts := passwordSecret.FindStringSubmatch(m)
		return parts[1] + parts[2] + "********"
	})
	return out, out != reply
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
