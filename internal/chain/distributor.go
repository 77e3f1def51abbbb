package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// distributorABI covers the read surface of the rewards distributor the
// engine consults before signing a claim. claimRewards itself is invoked by
// the user's wallet, not by this backend.
const distributorABI = `[
	{"name":"nonces","type":"function","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"getAbsoluteMaxClaim","type":"function","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"claimedAmount","type":"function","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

// Distributor implements domain.RewardContract against the deployed
// distributor contract.
type Distributor struct {
	client   *Client
	address  common.Address
	contract abi.ABI
}

// NewDistributor creates a Distributor bound to the contract at address.
func NewDistributor(client *Client, address string) (*Distributor, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("chain: invalid distributor address %q", address)
	}
	parsed, err := abi.JSON(strings.NewReader(distributorABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse distributor abi: %w", err)
	}
	return &Distributor{
		client:   client,
		address:  common.HexToAddress(address),
		contract: parsed,
	}, nil
}

// Nonce returns the user's current claim nonce from the contract.
func (d *Distributor) Nonce(ctx context.Context, userAddress string) (uint64, error) {
	out, err := d.view(ctx, "nonces", common.HexToAddress(userAddress))
	if err != nil {
		return 0, err
	}
	if !out.IsUint64() {
		return 0, fmt.Errorf("chain: nonce overflows uint64: %s", out)
	}
	return out.Uint64(), nil
}

// AbsoluteMaxClaim returns the contract's per-claim cap in wei.
func (d *Distributor) AbsoluteMaxClaim(ctx context.Context) (*big.Int, error) {
	return d.view(ctx, "getAbsoluteMaxClaim")
}

// ClaimedAmount returns the user's total claimed on-chain, in wei.
func (d *Distributor) ClaimedAmount(ctx context.Context, userAddress string) (*big.Int, error) {
	return d.view(ctx, "claimedAmount", common.HexToAddress(userAddress))
}

// view performs an eth_call of a uint256-returning view function.
func (d *Distributor) view(ctx context.Context, method string, args ...any) (*big.Int, error) {
	data, err := d.contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	var raw []byte
	err = d.client.call(ctx, method, func(ctx context.Context, ec *ethclient.Client) error {
		res, callErr := ec.CallContract(ctx, ethereum.CallMsg{
			To:   &d.address,
			Data: data,
		}, nil)
		if callErr != nil {
			return callErr
		}
		raw = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	vals, err := d.contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	out, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: %s returned unexpected type %T", method, vals[0])
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.RewardContract = (*Distributor)(nil)
