// Package extract pulls payment and phishing indicators out of free text.
package extract

import (
	"regexp"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
)

// RE2 classes are ASCII-only: \w, \d and \b never match Devanagari letters or
// digits, so handles and account numbers written in non-Latin script are not
// extracted.
var (
	upiPattern     = regexp.MustCompile(`\b[\w.-]+@[\w.-]+\b`)
	urlPattern     = regexp.MustCompile(`https?://[^\s]+`)
	accountPattern = regexp.MustCompile(`\b\d{9,18}\b`)
	ifscPattern    = regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`)
)

// Extract returns every match per category in order of appearance.
// Duplicates are kept. Long digit runs such as phone numbers also match the
// account pattern.
func Extract(text string) domain.ExtractedEntities {
	return domain.ExtractedEntities{
		UPIIDs:       findAll(upiPattern, text),
		URLs:         findAll(urlPattern, text),
		BankAccounts: findAll(accountPattern, text),
		IFSCCodes:    findAll(ifscPattern, text),
	}
}

func findAll(re *regexp.Regexp, text string) []string {
	matches := re.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}

// Merge returns the order-preserving union of a and b, deduplicated per category.
func Merge(a, b domain.ExtractedEntities) domain.ExtractedEntities {
	return domain.ExtractedEntities{
		UPIIDs:       union(a.UPIIDs, b.UPIIDs),
		URLs:         union(a.URLs, b.URLs),
		BankAccounts: union(a.BankAccounts, b.BankAccounts),
		IFSCCodes:    union(a.IFSCCodes, b.IFSCCodes),
	}
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
