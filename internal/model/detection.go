package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind identifies which observation stream produced a detection.
type SourceKind string

// Detection sources.
const (
	SourceNotification SourceKind = "notification"
	SourceSms          SourceKind = "sms"
)

// TransactionType is the direction of money movement in a detection.
type TransactionType string

// Transaction types.
const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// DetectionStatus is the lifecycle state of a detection candidate.
type DetectionStatus string

// Detection lifecycle states. Pending candidates are shown to the user;
// processed and dismissed are terminal and retained only to block re-detection.
const (
	StatusPending   DetectionStatus = "pending"
	StatusProcessed DetectionStatus = "processed"
	StatusDismissed DetectionStatus = "dismissed"
)

// DetectedTransaction is a transaction candidate extracted from one raw
// notification or SMS message.
type DetectedTransaction struct {
	Timestamp      time.Time
	CreatedAt      time.Time
	ID             string
	Source         SourceKind
	SourceIdentity string // app package name or SMS sender address
	BankName       string // resolved bank label, SMS only
	Type           TransactionType
	Merchant       string
	ReferenceID    string
	AccountNumber  string // last-digits fragment, e.g. "1234"
	RawText        string
	Status         DetectionStatus
	Amount         decimal.Decimal
}

// GenerateDetectionID derives the stable candidate identifier. Re-ingesting
// the identical message from the same source always yields the same id.
func GenerateDetectionID(source SourceKind, sourceIdentity, rawText string) string {
	data := fmt.Sprintf("%s:%s:%s", source, sourceIdentity, rawText)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// RawNotification is one event delivered by the notification stream.
type RawNotification struct {
	PostedAt    time.Time
	AppIdentity string
	Title       string
	Body        string
}

// RawSms is one event delivered by the SMS stream or inbox query.
type RawSms struct {
	ReceivedAt    time.Time
	SenderAddress string
	Body          string
}

// PermissionState is the last-observed OS grant state for a capability.
type PermissionState string

// Permission states. Unavailable means the platform never exposes the
// capability, so the grant can never change.
const (
	PermissionGranted     PermissionState = "granted"
	PermissionDenied      PermissionState = "denied"
	PermissionUnknown     PermissionState = "unknown"
	PermissionUnavailable PermissionState = "unavailable"
)
