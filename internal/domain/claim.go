package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ClaimAuthorization is the signed payload the verifying contract accepts as
// proof the off-chain calculator approved this exact claim. It is ephemeral;
// only the audit row survives the request.
type ClaimAuthorization struct {
	AuditID     string          `json:"auditId"`
	UserAddress string          `json:"userAddress"`
	Amount      decimal.Decimal `json:"amount"`
	AmountWei   *big.Int        `json:"amountWei"`
	Nonce       uint64          `json:"nonce"`
	Deadline    time.Time       `json:"deadline"`
	Signature   string          `json:"signature"`
	Hash        string          `json:"hash"`
}

// ClaimStatus tracks an authorized claim through on-chain settlement.
type ClaimStatus string

const (
	ClaimAuthorized ClaimStatus = "authorized"
	ClaimConfirmed  ClaimStatus = "confirmed"
	ClaimRejected   ClaimStatus = "rejected"
)

// ClaimAudit is the durable record of a claim authorization and its on-chain
// outcome. Confirmed rows are what advance RewardRecord.Claimed and what the
// cold-storage archiver exports.
type ClaimAudit struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	UserAddress string          `json:"userAddress"`
	Amount      decimal.Decimal `json:"amount"`
	Nonce       uint64          `json:"nonce"`
	Signature   string          `json:"signature"`
	Status      ClaimStatus     `json:"status"`
	TxHash      string          `json:"txHash,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ConfirmedAt *time.Time      `json:"confirmedAt,omitempty"`
	ArchivedAt  *time.Time      `json:"archivedAt,omitempty"`
}
