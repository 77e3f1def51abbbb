package domain

import "time"

// PositionEligibility links a position to the verified app transaction that
// created it. A position without an eligibility record, or with Eligible set
// to false, contributes nothing to claimable totals no matter what its
// RewardRecord says. This is the program's core anti-gaming invariant.
type PositionEligibility struct {
	PositionID        string    `json:"positionId"`
	NFTTokenID        string    `json:"nftTokenId"`
	AppTransactionID  string    `json:"appTransactionId"`
	Eligible          bool      `json:"isEligible"`
	Reason            string    `json:"eligibilityReason"`
	CreatedThroughApp bool      `json:"createdThroughApp"`
	CreatedAt         time.Time `json:"createdAt"`
}
