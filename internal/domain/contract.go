package domain

import (
	"context"
	"math/big"
)

// RewardContract is the engine's view of the on-chain claim verifier. The
// contract is an oracle for the per-user nonce and the absolute claim cap,
// and the sink for authorized claims. Implementations wrap JSON-RPC with
// bounded retries and endpoint failover; unrecoverable transport failures
// surface as ErrContractUnreachable.
type RewardContract interface {
	// Nonce returns the user's current claim nonce. The signed payload
	// must embed exactly this value; the contract rejects anything else.
	Nonce(ctx context.Context, userAddress string) (uint64, error)
	// AbsoluteMaxClaim returns the contract-enforced per-claim cap in wei.
	AbsoluteMaxClaim(ctx context.Context) (*big.Int, error)
	// ClaimedAmount returns the total already claimed on-chain, in wei.
	ClaimedAmount(ctx context.Context, userAddress string) (*big.Int, error)
}

// ClaimSigner produces the signature the contract verifies. Absence of the
// signing key disables claim authorization (ErrSignerUnavailable) without
// affecting any other component.
type ClaimSigner interface {
	// SignClaim signs keccak256(packed(address, amount, nonce)) under the
	// EIP-191 personal-message prefix and returns the hex signature and
	// the hex message hash.
	SignClaim(userAddress string, amountWei *big.Int, nonce uint64) (signature string, hash string, err error)
	// Address returns the signer's address, the one the contract trusts.
	Address() string
}
