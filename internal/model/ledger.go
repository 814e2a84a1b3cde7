package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory is used when the user supplies no category and the ledger
// history offers no suggestion.
const DefaultCategory = "Uncategorized"

// LedgerEntry is the fully-specified record written into the confirmed
// ledger when the user accepts a detection candidate.
type LedgerEntry struct {
	Date          time.Time
	Type          TransactionType
	Category      string
	Description   string
	AccountRef    string
	PaymentMethod string
	Note          string // free text referencing the detection source
	Amount        decimal.Decimal
}

// EntryFromDetection builds the ledger record for a confirmed candidate.
// Category and account are supplied by the user at confirm time; everything
// else is carried over from the detection.
func EntryFromDetection(d *DetectedTransaction, category, accountRef string) LedgerEntry {
	description := d.Merchant
	if description == "" {
		description = "Detected transaction"
	}

	paymentMethod := "Bank"
	if d.Source == SourceNotification {
		paymentMethod = "UPI"
	}

	return LedgerEntry{
		Date:          d.Timestamp,
		Type:          d.Type,
		Category:      category,
		Description:   description,
		AccountRef:    accountRef,
		PaymentMethod: paymentMethod,
		Note:          fmt.Sprintf("Auto-detected from %s (%s)", d.Source, d.SourceIdentity),
		Amount:        d.Amount,
	}
}
