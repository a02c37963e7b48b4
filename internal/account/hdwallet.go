package account

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/crypto/sha3"
)

// hdWallet derives child addresses from an account's stored extended
// public key. AR never holds a private key or seed — accounts are
// watch-only, so derivation starts from an xpub and walks the
// non-hardened change/index branch per BIP44.
type hdWallet struct {
	params *chaincfg.Params
}

func newHDWallet() *hdWallet {
	return &hdWallet{params: &chaincfg.MainNetParams}
}

// derivePath walks an xpub down a BIP32 path. Hardened components (a
// trailing ') cannot be derived from a public-only key and produce an
// error, matching hdkeychain's own constraint.
func (w *hdWallet) derivePath(xpub string, path string) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, fmt.Errorf("parse xpub: %w", err)
	}

	path = strings.TrimPrefix(path, "m/")
	if path == "" {
		return key, nil
	}

	current := key
	for i, component := range strings.Split(path, "/") {
		if component == "" {
			continue
		}
		hardened := strings.HasSuffix(component, "'")
		component = strings.TrimSuffix(component, "'")

		index, err := strconv.ParseUint(component, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid path component at position %d: %s", i, component)
		}
		if hardened {
			return nil, fmt.Errorf("cannot derive hardened component %s' from a public key", component)
		}

		child, err := current.Derive(uint32(index))
		if err != nil {
			return nil, fmt.Errorf("derive child at index %d: %w", index, err)
		}
		current = child
	}
	return current, nil
}

// deriveEVMAddress derives an EIP-55-shaped (but unchecksummed — AR
// matches addresses case-insensitively, so checksum casing is not
// reproduced) Ethereum-style address for path, from xpub.
func (w *hdWallet) deriveEVMAddress(xpub string, path string) (string, error) {
	key, err := w.derivePath(xpub, path)
	if err != nil {
		return "", err
	}
	pubKey, err := key.ECPubKey()
	if err != nil {
		return "", fmt.Errorf("extract public key: %w", err)
	}
	return pubKeyToEVMAddress(pubKey), nil
}

// pubKeyToEVMAddress takes the Keccak256 hash of the uncompressed public
// key (minus its 0x04 prefix) and keeps the trailing 20 bytes, same
// derivation the chain's own address scheme uses.
func pubKeyToEVMAddress(pubKey *btcec.PublicKey) string {
	uncompressed := pubKey.SerializeUncompressed()
	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressed[1:])
	sum := h.Sum(nil)
	return fmt.Sprintf("0x%x", sum[12:])
}

// gapScan derives consecutive addresses from startIndex until
// maxConsecutiveUnused addresses in a row are reported unused by
// isUsed, or isUsed itself errors — in which case the scan fails
// loudly and nothing it has found is committed. It returns only the
// addresses confirmed used.
func (w *hdWallet) gapScan(xpub, basePath string, startIndex, maxConsecutiveUnused int, isUsed func(address string) (bool, error)) ([]string, error) {
	var used []string
	unused := 0
	for i := startIndex; unused < maxConsecutiveUnused; i++ {
		path := fmt.Sprintf("%s/%d", basePath, i)
		addr, err := w.deriveEVMAddress(xpub, path)
		if err != nil {
			return nil, fmt.Errorf("derive address at index %d: %w", i, err)
		}
		ok, err := isUsed(addr)
		if err != nil {
			return nil, fmt.Errorf("gap scan aborted at index %d: %w", i, err)
		}
		if ok {
			used = append(used, addr)
			unused = 0
			continue
		}
		unused++
	}
	return used, nil
}
