// Package crypto provides signing-key management and claim-authorization
// signing for the rewards distributor contract.
package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// personalMessagePrefix is the EIP-191 prefix for a 32-byte payload. The
// distributor contract recomputes the same prefixed digest before ecrecover,
// so the construction here must match it byte for byte.
const personalMessagePrefix = "\x19Ethereum Signed Message:\n32"

// ClaimSigner signs (userAddress, amountWei, nonce) claim authorizations
// with the program's secp256k1 signing key. The contract trusts exactly one
// signer address; Address exposes it for verification and monitoring.
type ClaimSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewClaimSigner creates a ClaimSigner from a hex-encoded private key (with
// or without 0x prefix).
func NewClaimSigner(privateKeyHex string) (*ClaimSigner, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid signing key: %w", err)
	}
	return &ClaimSigner{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the signer's Ethereum address as a 0x-prefixed hex string.
func (s *ClaimSigner) Address() string {
	return s.address.Hex()
}

// SignClaim signs keccak256(packed(userAddress, amountWei, nonce)) under the
// personal-message prefix. It returns the hex signature (r||s||v, v in
// {27,28}) and the hex message hash the contract will recompute.
func (s *ClaimSigner) SignClaim(userAddress string, amountWei *big.Int, nonce uint64) (string, string, error) {
	msgHash, err := ClaimMessageHash(userAddress, amountWei, nonce)
	if err != nil {
		return "", "", err
	}

	digest := ethcrypto.Keccak256(append([]byte(personalMessagePrefix), msgHash...))

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", "", fmt.Errorf("crypto: sign claim: %w", err)
	}
	// go-ethereum returns v in {0,1}; ecrecover expects {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), "0x" + hex.EncodeToString(msgHash), nil
}

// ClaimMessageHash computes keccak256 over the tightly packed claim fields:
// 20-byte address, 32-byte amount, 32-byte nonce. Field order and widths
// mirror the contract's abi.encodePacked call.
func ClaimMessageHash(userAddress string, amountWei *big.Int, nonce uint64) ([]byte, error) {
	if !common.IsHexAddress(userAddress) {
		return nil, fmt.Errorf("crypto: invalid user address %q", userAddress)
	}
	if amountWei == nil || amountWei.Sign() <= 0 {
		return nil, errors.New("crypto: claim amount must be positive")
	}

	addr := common.HexToAddress(userAddress)
	return ethcrypto.Keccak256(concatBytes(
		addr.Bytes(),
		bigIntTo32Bytes(amountWei),
		bigIntTo32Bytes(new(big.Int).SetUint64(nonce)),
	)), nil
}

// RecoverClaimSigner recovers the address that signed the given claim
// payload. Used to verify a round trip against the known signer.
func RecoverClaimSigner(userAddress string, amountWei *big.Int, nonce uint64, signature string) (string, error) {
	msgHash, err := ClaimMessageHash(userAddress, amountWei, nonce)
	if err != nil {
		return "", err
	}

	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("crypto: decode signature: %w", err)
	}
	if len(sigBytes) != 65 {
		return "", fmt.Errorf("crypto: signature must be 65 bytes, got %d", len(sigBytes))
	}

	// Undo the {27,28} recovery id offset for SigToPub.
	sig := make([]byte, 65)
	copy(sig, sigBytes)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	digest := ethcrypto.Keccak256(append([]byte(personalMessagePrefix), msgHash...))
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("crypto: recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
