// Package classifier turns raw message text into transaction candidates by
// applying the extraction rule registry.
package classifier

import (
	"log/slog"
	"time"

	"github.com/dhanwatch/dhanwatch/internal/common"
	"github.com/dhanwatch/dhanwatch/internal/model"
	"github.com/dhanwatch/dhanwatch/internal/rules"
)

// Classifier applies per-source extraction rules to raw events. It is
// stateless and safe for concurrent use.
type Classifier struct {
	registry *rules.Registry
}

// New creates a classifier over the given rule registry.
func New(registry *rules.Registry) *Classifier {
	return &Classifier{registry: registry}
}

// Classify evaluates the rule list for the source identity in order and
// commits to the first predicate that matches. It returns common.ErrNoMatch
// both for non-payment messages (the frequent case) and for predicate hits
// whose required amount field failed to parse.
func (c *Classifier) Classify(rawText, sourceIdentity string, kind model.SourceKind, receivedAt time.Time) (*model.DetectedTransaction, error) {
	if rawText == "" || sourceIdentity == "" {
		return nil, common.ErrNoMatch
	}

	ruleList := c.registry.RulesFor(kind, sourceIdentity)
	for i := range ruleList {
		rule := ruleList[i]
		if !rule.Matches(rawText) {
			continue
		}

		ext, ok := rule.Extract(rawText)
		if !ok {
			slog.Debug("Rule matched but extraction failed",
				"rule", rule.Name,
				"source", kind,
				"identity", sourceIdentity)
			return nil, common.ErrNoMatch
		}

		amount, err := ParseAmount(ext.AmountText)
		if err != nil {
			slog.Debug("Rule matched but amount unparseable",
				"rule", rule.Name,
				"amount_text", ext.AmountText,
				"source", kind)
			return nil, common.ErrNoMatch
		}

		detection := &model.DetectedTransaction{
			ID:             model.GenerateDetectionID(kind, sourceIdentity, rawText),
			Source:         kind,
			SourceIdentity: sourceIdentity,
			Type:           ext.Type,
			Amount:         amount,
			Merchant:       ext.Merchant,
			ReferenceID:    ext.ReferenceID,
			AccountNumber:  ext.Account,
			Timestamp:      receivedAt,
			RawText:        rawText,
			Status:         model.StatusPending,
		}
		if kind == model.SourceSms {
			detection.BankName = c.registry.BankName(sourceIdentity)
		}
		return detection, nil
	}

	return nil, common.ErrNoMatch
}
