package rules

import (
	"regexp"
	"strings"

	"github.com/dhanwatch/dhanwatch/internal/model"
)

// Shared extractors. Sender-specific catalogs override these only when a
// bank's format deviates.
var (
	reAmount = regexp.MustCompile(`(?i)(?:₹|rs\.?|inr)\s*([0-9][0-9.,]*)`)

	reMerchantTo   = regexp.MustCompile(`(?i)\bto\s+(?:vpa\s+)?([a-z0-9&@'._ -]+?)(?:\s+(?:using|via|on|upi|ref)\b|[.!,]|$)`)
	reMerchantFrom = regexp.MustCompile(`(?i)\bfrom\s+(?:vpa\s+)?([a-z0-9&@'._ -]+?)(?:\s+(?:using|via|on|upi|ref)\b|[.!,]|$)`)
	reMerchantAt   = regexp.MustCompile(`(?i)\b(?:at|to)\s+(?:vpa\s+)?([a-z0-9&@'._ -]+?)(?:\s+(?:on|using|via|upi|ref)\b|[.!,]|$)`)

	reReference = regexp.MustCompile(`(?i)(?:upi\s*ref(?:\s*no)?|ref(?:erence)?\s*(?:no|id)?|utr)[.:\s-]*([0-9a-z]{6,})`)
	reAccount   = regexp.MustCompile(`(?i)a/c(?:\s*(?:no|ending))?[.:\s]*[x*]*([0-9]{3,6})`)
)

// Registry maps source identities to their ordered rule lists. Unknown
// identities resolve to an empty list, never an error.
type Registry struct {
	notification map[string][]Rule
	sms          []smsCatalog
}

// smsCatalog groups the rules for one bank's SMS sender. DLT sender IDs vary
// by telecom circle ("VM-HDFCBK", "AD-HDFCBK"), so matching is on the bank
// token within the address, not on the full address.
type smsCatalog struct {
	bankName string
	tokens   []string
	rules    []Rule
}

// NewRegistry builds the built-in rule catalog.
func NewRegistry() *Registry {
	return &Registry{
		notification: map[string][]Rule{
			"com.google.android.apps.nbu.paisa.user": upiAppRules("gpay"),
			"com.phonepe.app":                        upiAppRules("phonepe"),
			"net.one97.paytm":                        upiAppRules("paytm"),
		},
		sms: []smsCatalog{
			{bankName: "HDFC Bank", tokens: []string{"HDFCBK"}, rules: bankSmsRules("hdfc")},
			{bankName: "ICICI Bank", tokens: []string{"ICICIB", "ICICIT"}, rules: bankSmsRules("icici")},
			{bankName: "State Bank of India", tokens: []string{"SBIINB", "SBIUPI", "CBSSBI", "SBIPSG"}, rules: bankSmsRules("sbi")},
			{bankName: "Axis Bank", tokens: []string{"AXISBK"}, rules: bankSmsRules("axis")},
			{bankName: "Kotak Bank", tokens: []string{"KOTAKB"}, rules: bankSmsRules("kotak")},
		},
	}
}

// RulesFor returns the ordered rule list for a source identity. The returned
// slice must not be mutated by callers.
func (reg *Registry) RulesFor(kind model.SourceKind, identity string) []Rule {
	switch kind {
	case model.SourceNotification:
		return reg.notification[identity]
	case model.SourceSms:
		if cat := reg.lookupSms(identity); cat != nil {
			return cat.rules
		}
	}
	return nil
}

// BankName resolves an SMS sender address to its bank label, or "" when the
// sender is not in the catalog.
func (reg *Registry) BankName(senderAddress string) string {
	if cat := reg.lookupSms(senderAddress); cat != nil {
		return cat.bankName
	}
	return ""
}

func (reg *Registry) lookupSms(senderAddress string) *smsCatalog {
	upper := strings.ToUpper(senderAddress)
	for i := range reg.sms {
		for _, token := range reg.sms[i].tokens {
			if strings.Contains(upper, token) {
				return &reg.sms[i]
			}
		}
	}
	return nil
}

// upiAppRules is the rule pair for a UPI payment app's notifications:
// outgoing payment first, then incoming.
func upiAppRules(app string) []Rule {
	return []Rule{
		{
			Name:      app + "-payment",
			Type:      model.TypeExpense,
			Any:       []string{"paid", "sent", "payment of"},
			Amount:    reAmount,
			Merchant:  reMerchantTo,
			Reference: reReference,
		},
		{
			Name:      app + "-receipt",
			Type:      model.TypeIncome,
			Any:       []string{"received", "credited"},
			Amount:    reAmount,
			Merchant:  reMerchantFrom,
			Reference: reReference,
		},
	}
}

// bankSmsRules is the debit/credit rule pair shared by the bank SMS formats
// in the catalog.
func bankSmsRules(bank string) []Rule {
	return []Rule{
		{
			Name:      bank + "-debit",
			Type:      model.TypeExpense,
			Any:       []string{"debited", "spent", "withdrawn", "paid"},
			Amount:    reAmount,
			Merchant:  reMerchantAt,
			Reference: reReference,
			Account:   reAccount,
		},
		{
			Name:      bank + "-credit",
			Type:      model.TypeIncome,
			Any:       []string{"credited", "deposited", "received"},
			Amount:    reAmount,
			Merchant:  reMerchantFrom,
			Reference: reReference,
			Account:   reAccount,
		},
	}
}
