// Package rules defines the extraction rule registry: per-source catalogs of
// predicate + extractor pairs that turn raw payment messages into structured
// fields. Rules are data; supporting a new bank or app is a catalog addition.
package rules

import (
	"regexp"
	"strings"

	"github.com/dhanwatch/dhanwatch/internal/model"
)

// Rule is one extraction rule. The predicate is a keyword set over the raw
// text; extractors are pre-compiled regexes whose first capture group yields
// the field value. Amount is the only required extractor.
type Rule struct {
	Amount    *regexp.Regexp
	Merchant  *regexp.Regexp
	Reference *regexp.Regexp
	Account   *regexp.Regexp
	Name      string
	Type      model.TransactionType
	Any       []string // predicate: at least one must appear (case-insensitive)
	All       []string // predicate: every entry must appear
}

// Extraction holds the raw field strings pulled out by a rule. AmountText is
// unparsed; the classifier owns numeric interpretation.
type Extraction struct {
	AmountText  string
	Merchant    string
	ReferenceID string
	Account     string
	Type        model.TransactionType
}

// Matches reports whether the rule's predicate fires on the given text.
func (r *Rule) Matches(text string) bool {
	lower := strings.ToLower(text)

	if len(r.Any) > 0 {
		hit := false
		for _, kw := range r.Any {
			if strings.Contains(lower, kw) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}

	for _, kw := range r.All {
		if !strings.Contains(lower, kw) {
			return false
		}
	}

	return len(r.Any) > 0 || len(r.All) > 0
}

// Extract runs the rule's extractors over the text. The boolean result is
// false when the required amount field could not be found.
func (r *Rule) Extract(text string) (Extraction, bool) {
	ext := Extraction{Type: r.Type}

	if r.Amount == nil {
		return ext, false
	}
	m := r.Amount.FindStringSubmatch(text)
	if len(m) < 2 {
		return ext, false
	}
	ext.AmountText = strings.TrimSpace(m[1])

	if r.Merchant != nil {
		if m := r.Merchant.FindStringSubmatch(text); len(m) >= 2 {
			ext.Merchant = cleanMerchant(m[1])
		}
	}
	if r.Reference != nil {
		if m := r.Reference.FindStringSubmatch(text); len(m) >= 2 {
			ext.ReferenceID = strings.TrimSpace(m[1])
		}
	}
	if r.Account != nil {
		if m := r.Account.FindStringSubmatch(text); len(m) >= 2 {
			ext.Account = strings.TrimSpace(m[1])
		}
	}

	return ext, true
}

// cleanMerchant normalizes a captured counterparty label.
func cleanMerchant(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".,:;")
	return strings.TrimSpace(s)
}
