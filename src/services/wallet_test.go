package services

import (
	"strings"
	"sync"
	"testing"

	"rms/src/models"
	"rms/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateBalanceDeposit(t *testing.T) {
	f := newFixture(t)

	wallet, entry, err := f.wallets.UpdateBalance(&types.UpdateBalanceParams{
		UserID:      f.owner.ID,
		Amount:      decimal.NewFromInt(250),
		Type:        types.WALLET_DEPOSIT,
		Description: "Initial deposit",
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(250).Equal(wallet.Balance), "balance = %s", wallet.Balance)
	assert.True(t, strings.HasPrefix(entry.Reference, "wtx_"))
	assert.Equal(t, types.WALLET_TXN_COMPLETED, entry.Status)

	res := f.wallets.GetWalletTransactions(f.owner.ID)
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Data.([]*models.WalletTransaction), 1)
}

func TestUpdateBalanceRejectsOverdraft(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.wallets.UpdateBalance(&types.UpdateBalanceParams{
		UserID:      f.owner.ID,
		Amount:      decimal.NewFromInt(100),
		Type:        types.WALLET_DEPOSIT,
		Description: "Initial deposit",
	})
	require.NoError(t, err)

	_, _, err = f.wallets.UpdateBalance(&types.UpdateBalanceParams{
		UserID:      f.owner.ID,
		Amount:      decimal.NewFromInt(150),
		Type:        types.WALLET_WITHDRAWAL,
		Description: "Too much",
	})
	var berr *types.InsufficientBalanceError
	require.ErrorAs(t, err, &berr)
	assert.True(t, decimal.NewFromInt(100).Equal(berr.Balance))
	assert.True(t, decimal.NewFromInt(150).Equal(berr.Requested))

	// the rollback leaves the wallet and the ledger untouched
	res := f.wallets.GetWallet(f.owner.ID)
	require.True(t, res.Success, res.Message)
	wallet := res.Data.(*models.Wallet)
	assert.True(t, decimal.NewFromInt(100).Equal(wallet.Balance), "balance = %s", wallet.Balance)

	res = f.wallets.GetWalletTransactions(f.owner.ID)
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Data.([]*models.WalletTransaction), 1)
}

func TestUpdateBalanceRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.wallets.UpdateBalance(&types.UpdateBalanceParams{
		UserID: f.owner.ID,
		Amount: decimal.Zero,
		Type:   types.WALLET_DEPOSIT,
	})
	var serr *types.InvalidStateError
	require.ErrorAs(t, err, &serr)
}

func TestWithdrawalRequestAndApproval(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.wallets.UpdateBalance(&types.UpdateBalanceParams{
		UserID:      f.owner.ID,
		Amount:      decimal.NewFromInt(500),
		Type:        types.WALLET_DEPOSIT,
		Description: "Initial deposit",
	})
	require.NoError(t, err)

	res := f.wallets.RequestWithdrawal(&types.WithdrawalRequestBody{
		Amount:        decimal.NewFromInt(200),
		PaymentMethod: "bank_transfer",
		Details:       types.JSONB{"iban": "DE02120300000000202051"},
	}, f.owner.ID)
	require.True(t, res.Success, res.Message)
	data := res.Data.(map[string]any)
	txn := data["transaction"].(*models.Transaction)
	assert.True(t, strings.HasPrefix(txn.Reference, "wd_"))
	assert.Equal(t, types.TRANSACTION_PENDING, txn.Status)

	// the balance moves when the request is made, not when it is approved
	balance := data["balance"].(decimal.Decimal)
	assert.True(t, decimal.NewFromInt(300).Equal(balance), "balance = %s", balance)

	var entry models.WalletTransaction
	require.NoError(t, f.db.Where("related_transaction_id = ?", txn.ID).First(&entry).Error)
	assert.Equal(t, types.WALLET_TXN_PENDING, entry.Status)

	res = f.wallets.ApproveWithdrawal(txn.ID, 42)
	require.True(t, res.Success, res.Message)
	approved := res.Data.(*models.Transaction)
	assert.Equal(t, types.TRANSACTION_COMPLETED, approved.Status)
	require.NotNil(t, approved.ProcessedAt)

	require.NoError(t, f.db.Where("related_transaction_id = ?", txn.ID).First(&entry).Error)
	assert.Equal(t, types.WALLET_TXN_COMPLETED, entry.Status)

	// approval flips statuses only
	resW := f.wallets.GetWallet(f.owner.ID)
	require.True(t, resW.Success, resW.Message)
	assert.True(t, decimal.NewFromInt(300).Equal(resW.Data.(*models.Wallet).Balance))

	res = f.wallets.ApproveWithdrawal(txn.ID, 42)
	require.False(t, res.Success)
	var serr *types.InvalidStateError
	assert.ErrorAs(t, res.Err, &serr)

	res = f.wallets.ApproveWithdrawal(uuid.New(), 42)
	require.False(t, res.Success)
	var nferr *types.NotFoundError
	assert.ErrorAs(t, res.Err, &nferr)

	assert.Contains(t, f.events.names(), "wallet.withdrawal_requested")
	assert.Contains(t, f.events.names(), "wallet.withdrawal_approved")
}

func TestWithdrawalRejectedWithoutFunds(t *testing.T) {
	f := newFixture(t)

	res := f.wallets.RequestWithdrawal(&types.WithdrawalRequestBody{
		Amount:        decimal.NewFromInt(50),
		PaymentMethod: "bank_transfer",
	}, f.owner.ID)
	require.False(t, res.Success)
	var berr *types.InsufficientBalanceError
	require.ErrorAs(t, res.Err, &berr)
	assert.True(t, berr.Balance.IsZero())
}

func TestConcurrentWithdrawalsCannotOverdraw(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.wallets.UpdateBalance(&types.UpdateBalanceParams{
		UserID:      f.owner.ID,
		Amount:      decimal.NewFromInt(100),
		Type:        types.WALLET_DEPOSIT,
		Description: "Initial deposit",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*types.Result, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.wallets.RequestWithdrawal(&types.WithdrawalRequestBody{
				Amount:        decimal.NewFromInt(100),
				PaymentMethod: "bank_transfer",
			}, f.owner.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		} else {
			var berr *types.InsufficientBalanceError
			assert.ErrorAs(t, res.Err, &berr)
		}
	}
	assert.Equal(t, 1, succeeded)

	res := f.wallets.GetWallet(f.owner.ID)
	require.True(t, res.Success, res.Message)
	assert.True(t, res.Data.(*models.Wallet).Balance.IsZero())
}

func TestGetWalletWithoutRow(t *testing.T) {
	f := newFixture(t)

	res := f.wallets.GetWallet(f.renter.ID)
	require.True(t, res.Success, res.Message)
	wallet := res.Data.(*models.Wallet)
	assert.True(t, wallet.Balance.IsZero())

	var count int64
	require.NoError(t, f.db.Model(&models.Wallet{}).Count(&count).Error)
	assert.Zero(t, count)

	res = f.wallets.GetWalletTransactions(f.renter.ID)
	require.True(t, res.Success, res.Message)
	assert.Empty(t, res.Data.([]*models.WalletTransaction))
}
