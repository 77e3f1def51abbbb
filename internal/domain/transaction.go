package domain

import "time"

// VerificationStatus tracks an app transaction through external on-chain
// confirmation. Transitions only move forward: pending may become verified or
// rejected, never the reverse.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// TransactionType describes what the app-originated transaction did.
type TransactionType string

const (
	TxTypeAddLiquidity      TransactionType = "add_liquidity"
	TxTypeIncreaseLiquidity TransactionType = "increase_liquidity"
	TxTypeClaim             TransactionType = "claim"
)

// AppTransaction is the exactly-once record of a transaction reported through
// an app session. The hash is globally unique; a second report of the same
// hash is rejected regardless of session.
type AppTransaction struct {
	ID          string             `json:"id"`
	Hash        string             `json:"transactionHash"`
	SessionID   string             `json:"sessionId"`
	UserID      string             `json:"userId"`
	UserAddress string             `json:"userAddress"`
	Type        TransactionType    `json:"transactionType"`
	Status      VerificationStatus `json:"verificationStatus"`
	BlockNumber int64              `json:"blockNumber,omitempty"`
	GasUsed     int64              `json:"gasUsed,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	VerifiedAt  *time.Time         `json:"verifiedAt,omitempty"`
}

// ChainReceipt carries the on-chain confirmation data supplied by the caller
// when a pending transaction is verified.
type ChainReceipt struct {
	BlockNumber int64 `json:"blockNumber"`
	GasUsed     int64 `json:"gasUsed"`
	Success     bool  `json:"success"`
}
