package account

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"

	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/model"
	"github.com/arcsign/ledgerkit/internal/session"
)

func newTestRegistry() *Registry {
	return New(NewMemoryStore(), session.New(session.NewMemoryStore()))
}

func strPtr(s string) *string { return &s }

func TestFindOrCreate_IsIdempotent(t *testing.T) {
	r := newTestRegistry()
	tuple := model.IdentityTuple{
		UserID:      strPtr("user-1"),
		AccountType: model.AccountTypeExchangeCSV,
		SourceName:  "exchange-csv",
		Identifier:  "binance-export-1",
	}

	first, err := r.FindOrCreate(tuple, model.AccountPatch{})
	require.NoError(t, err)

	second, err := r.FindOrCreate(tuple, model.AccountPatch{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestFindOrCreate_NilUserIDDistinctFromEmptyAccount(t *testing.T) {
	r := newTestRegistry()

	withNilUser := model.IdentityTuple{
		AccountType: model.AccountTypeBlockchain,
		SourceName:  "blockchain",
		Identifier:  "0xabc",
	}
	withUser := model.IdentityTuple{
		UserID:      strPtr(""),
		AccountType: model.AccountTypeBlockchain,
		SourceName:  "blockchain",
		Identifier:  "0xabc",
	}

	a, err := r.FindOrCreate(withNilUser, model.AccountPatch{})
	require.NoError(t, err)
	b, err := r.FindOrCreate(withUser, model.AccountPatch{})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID, "a nil UserID must not match a stored empty-string UserID")
}

func TestUpdateCursor_RejectsEmptyOperationType(t *testing.T) {
	r := newTestRegistry()
	acc, err := r.FindOrCreate(model.IdentityTuple{
		AccountType: model.AccountTypeBlockchain,
		SourceName:  "blockchain",
		Identifier:  "0xabc",
	}, model.AccountPatch{})
	require.NoError(t, err)

	_, err = r.UpdateCursor(acc.ID, "", model.Cursor{})
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.CodeSchemaValidation))
}

func TestUpdateCursor_MergesPerOperationType(t *testing.T) {
	r := newTestRegistry()
	acc, err := r.FindOrCreate(model.IdentityTuple{
		AccountType: model.AccountTypeBlockchain,
		SourceName:  "blockchain",
		Identifier:  "0xabc",
	}, model.AccountPatch{})
	require.NoError(t, err)

	acc, err = r.UpdateCursor(acc.ID, "getAddressTransactions:normal", model.Cursor{LastTransactionID: "100"})
	require.NoError(t, err)
	acc, err = r.UpdateCursor(acc.ID, "getAddressTransactions:token", model.Cursor{LastTransactionID: "1"})
	require.NoError(t, err)

	assert.Equal(t, "100", acc.LastCursor["getAddressTransactions:normal"].LastTransactionID)
	assert.Equal(t, "1", acc.LastCursor["getAddressTransactions:token"].LastTransactionID)
}

func TestUpdateCursor_RejectsRegressingCursor(t *testing.T) {
	r := newTestRegistry()
	acc, err := r.FindOrCreate(model.IdentityTuple{
		AccountType: model.AccountTypeBlockchain,
		SourceName:  "blockchain",
		Identifier:  "0xabc",
	}, model.AccountPatch{})
	require.NoError(t, err)

	acc, err = r.UpdateCursor(acc.ID, "getAddressTransactions:normal", model.Cursor{
		Primary: model.CursorPrimary{Type: "blockNumber", Value: "500"},
	})
	require.NoError(t, err)

	_, err = r.UpdateCursor(acc.ID, "getAddressTransactions:normal", model.Cursor{
		Primary: model.CursorPrimary{Type: "blockNumber", Value: "400"},
	})
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.CodeInvariantViolation))

	acc, err = r.FindOrCreate(model.IdentityTuple{
		AccountType: model.AccountTypeBlockchain,
		SourceName:  "blockchain",
		Identifier:  "0xabc",
	}, model.AccountPatch{})
	require.NoError(t, err)
	assert.Equal(t, "500", acc.LastCursor["getAddressTransactions:normal"].Primary.Value,
		"a rejected regression must not overwrite the stored cursor")
}

func TestUpdateCursor_AdvancingCursorIsAccepted(t *testing.T) {
	r := newTestRegistry()
	acc, err := r.FindOrCreate(model.IdentityTuple{
		AccountType: model.AccountTypeBlockchain,
		SourceName:  "blockchain",
		Identifier:  "0xabc",
	}, model.AccountPatch{})
	require.NoError(t, err)

	acc, err = r.UpdateCursor(acc.ID, "getAddressTransactions:normal", model.Cursor{
		Primary: model.CursorPrimary{Type: "blockNumber", Value: "500"},
	})
	require.NoError(t, err)
	acc, err = r.UpdateCursor(acc.ID, "getAddressTransactions:normal", model.Cursor{
		Primary: model.CursorPrimary{Type: "blockNumber", Value: "600"},
	})
	require.NoError(t, err)
	assert.Equal(t, "600", acc.LastCursor["getAddressTransactions:normal"].Primary.Value)
}

func TestUpdateCursor_FailedSentinelIsNotMonotonicityViolation(t *testing.T) {
	r := newTestRegistry()
	acc, err := r.FindOrCreate(model.IdentityTuple{
		AccountType: model.AccountTypeBlockchain,
		SourceName:  "blockchain",
		Identifier:  "0xabc",
	}, model.AccountPatch{})
	require.NoError(t, err)

	acc, err = r.UpdateCursor(acc.ID, "getAddressTransactions:normal", model.Cursor{LastTransactionID: "500"})
	require.NoError(t, err)

	failed := model.Cursor{
		LastTransactionID: model.FailedSentinelTxID,
		Metadata:          model.CursorMetadata{FetchStatus: model.FetchStatusFailed},
	}
	acc, err = r.UpdateCursor(acc.ID, "getAddressTransactions:normal", failed)
	require.NoError(t, err)

	assert.True(t, acc.LastCursor["getAddressTransactions:normal"].IsFailedSentinel())
}

func TestLock_SecondConcurrentAttemptFailsImmediately(t *testing.T) {
	r := newTestRegistry()

	require.NoError(t, r.Lock("acct-1"))
	err := r.Lock("acct-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionAlreadyRunning) || ledgererr.Is(err, ledgererr.CodeConcurrency))

	r.Unlock("acct-1")
	assert.NoError(t, r.Lock("acct-1"))
}

// testXpub turns a fixed test mnemonic into a seed (go-bip39, the same
// library a wallet-provisioning step would use to onboard an account),
// derives a BIP32 master key from it, and returns its neutered
// (public-only) extended key string — so gap-scan/derive tests exercise
// the real hdkeychain parsing path without a seed or private key ever
// entering AR itself.
func testXpub(t *testing.T) string {
	t.Helper()
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	require.True(t, bip39.IsMnemonicValid(mnemonic))
	seed := bip39.NewSeed(mnemonic, "")

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	pub, err := master.Neuter()
	require.NoError(t, err)
	return pub.String()
}

func TestGapScan_AbortsLoudlyOnCallbackError(t *testing.T) {
	r := newTestRegistry()
	xpub := testXpub(t)

	boom := errors.New("provider unreachable")
	calls := 0
	used, err := r.GapScan(xpub, "m/44/60/0/0", 0, 10, func(address string) (bool, error) {
		calls++
		if calls == 3 {
			return false, boom
		}
		return false, nil
	})

	require.Error(t, err)
	assert.Nil(t, used, "no partial derivation should be returned when the scan aborts")
	assert.ErrorIs(t, err, boom)
}

func TestGapScan_StopsAfterConsecutiveUnused(t *testing.T) {
	r := newTestRegistry()
	xpub := testXpub(t)

	calls := 0
	used, err := r.GapScan(xpub, "m/44/60/0/0", 0, 3, func(address string) (bool, error) {
		calls++
		return false, nil
	})

	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, 3, calls)
}

func TestGapScan_RecordsUsedAddressesAndResetsCounter(t *testing.T) {
	r := newTestRegistry()
	xpub := testXpub(t)

	calls := 0
	used, err := r.GapScan(xpub, "m/44/60/0/0", 0, 2, func(address string) (bool, error) {
		calls++
		// used on the first call only, then two consecutive unused stop it.
		return calls == 1, nil
	})

	require.NoError(t, err)
	require.Len(t, used, 1)
}

func TestDeriveAddress_RejectsHardenedComponent(t *testing.T) {
	r := newTestRegistry()
	xpub := testXpub(t)

	_, err := r.DeriveAddress(xpub, "m/44'/60'/0'/0/0")
	require.Error(t, err)
}
