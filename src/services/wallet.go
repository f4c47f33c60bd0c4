package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rms/src/models"
	"rms/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WalletService struct {
	db     *gorm.DB
	events Publisher
}

func NewWalletService(db *gorm.DB, events Publisher) *WalletService {
	return &WalletService{db: db, events: events}
}

func isWalletCredit(t types.WalletTransactionType) bool {
	switch t {
	case types.WALLET_DEPOSIT, types.WALLET_ESCROW_RELEASE, types.WALLET_REFUND:
		return true
	default:
		return false
	}
}

// ApplyBalanceChange Runs inside the caller's transaction. The balance moves
// with a single UPDATE and is reread afterwards; a negative result aborts the
// surrounding transaction, so the wallet can never go below zero even under
// concurrent debits.
func (s *WalletService) ApplyBalanceChange(tx *gorm.DB, params *types.UpdateBalanceParams) (*models.Wallet, *models.WalletTransaction, error) {
	magnitude := params.Amount.Round(2)
	if !magnitude.IsPositive() {
		return nil, nil, &types.InvalidStateError{Message: "amount must be positive"}
	}
	var wallet models.Wallet
	err := tx.
		Where(&models.Wallet{UserID: params.UserID}).
		Attrs(&models.Wallet{Balance: decimal.Zero, Currency: "usd"}).
		FirstOrCreate(&wallet).
		Error
	if err != nil {
		return nil, nil, err
	}
	delta := magnitude
	if !isWalletCredit(params.Type) {
		delta = magnitude.Neg()
	}
	if err := tx.
		Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("balance", gorm.Expr("balance + ?", delta)).
		Error; err != nil {
		return nil, nil, err
	}
	if err := tx.Where(&models.Wallet{ID: wallet.ID}).First(&wallet).Error; err != nil {
		return nil, nil, err
	}
	if wallet.Balance.IsNegative() {
		return nil, nil, &types.InsufficientBalanceError{
			Balance:   wallet.Balance.Sub(delta),
			Requested: magnitude,
		}
	}
	status := params.Status
	if status == "" {
		status = types.WALLET_TXN_COMPLETED
	}
	entry := models.WalletTransaction{
		WalletID:             wallet.ID,
		Amount:               magnitude,
		Type:                 params.Type,
		Status:               status,
		Reference:            fmt.Sprintf("wtx_%s", uuid.NewString()),
		Description:          params.Description,
		RelatedTransactionID: params.RelatedTransactionID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, nil, err
	}
	return &wallet, &entry, nil
}

func (s *WalletService) UpdateBalance(params *types.UpdateBalanceParams) (*models.Wallet, *models.WalletTransaction, error) {
	var (
		wallet *models.Wallet
		entry  *models.WalletTransaction
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		w, e, err := s.ApplyBalanceChange(tx, params)
		if err != nil {
			return err
		}
		wallet, entry = w, e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return wallet, entry, nil
}

// RequestWithdrawal Debit-on-request: the balance moves immediately and the
// ledger entry stays pending until an admin approves the payout.
func (s *WalletService) RequestWithdrawal(params *types.WithdrawalRequestBody, userID uint) *types.Result {
	if err := validate.Struct(params); err != nil {
		return types.ResultErr(err)
	}
	amount := params.Amount.Round(2)
	if !amount.IsPositive() {
		return types.ResultErr(&types.InvalidStateError{Message: "withdrawal amount must be positive"})
	}
	var (
		txn    models.Transaction
		wallet *models.Wallet
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var w models.Wallet
		if err := tx.Where(&models.Wallet{UserID: userID}).First(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.InsufficientBalanceError{Balance: decimal.Zero, Requested: amount}
			}
			return err
		}
		if w.Balance.LessThan(amount) {
			return &types.InsufficientBalanceError{Balance: w.Balance, Requested: amount}
		}
		txn = models.Transaction{
			Type:      types.TRANSACTION_WITHDRAWAL,
			Amount:    amount,
			Currency:  w.Currency,
			Status:    types.TRANSACTION_PENDING,
			Reference: fmt.Sprintf("wd_%s", uuid.NewString()),
			UserID:    userID,
			Metadata: types.JSONB{
				"payment_method": params.PaymentMethod,
				"details":        map[string]any(params.Details),
			},
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}
		w2, _, err := s.ApplyBalanceChange(tx, &types.UpdateBalanceParams{
			UserID:               userID,
			Amount:               amount,
			Type:                 types.WALLET_WITHDRAWAL,
			Status:               types.WALLET_TXN_PENDING,
			Description:          fmt.Sprintf("Withdrawal request %s", txn.Reference),
			RelatedTransactionID: &txn.ID,
		})
		if err != nil {
			return err
		}
		wallet = w2
		return nil
	})
	if err != nil {
		log.Printf("RequestWithdrawal failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	s.events.Publish(context.Background(), &Event{
		Name:    "wallet.withdrawal_requested",
		UserID:  userID,
		Title:   "Withdrawal requested",
		Message: fmt.Sprintf("Your withdrawal of %s %s is being reviewed", amount.String(), wallet.Currency),
		Data: types.JSONB{
			"transaction_id": txn.ID.String(),
			"amount":         amount.String(),
		},
	})
	return types.ResultOK("withdrawal request submitted", map[string]any{
		"transaction": &txn,
		"balance":     wallet.Balance,
	})
}

// ApproveWithdrawal Flips statuses only. The balance already moved when the
// withdrawal was requested.
func (s *WalletService) ApproveWithdrawal(transactionID uuid.UUID, adminID uint) *types.Result {
	var txn models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&models.Transaction{ID: transactionID}).First(&txn).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.NotFoundError{Entity: "transaction", ID: transactionID}
			}
			return err
		}
		if txn.Type != types.TRANSACTION_WITHDRAWAL {
			return &types.InvalidStateError{Message: "transaction is not a withdrawal"}
		}
		now := time.Now()
		metadata := types.JSONB{}
		for k, v := range txn.Metadata {
			metadata[k] = v
		}
		metadata["approved_by"] = adminID
		res := tx.
			Model(&models.Transaction{}).
			Where("id = ? AND status = ?", transactionID, types.TRANSACTION_PENDING).
			Updates(map[string]any{
				"status":       types.TRANSACTION_COMPLETED,
				"processed_at": &now,
				"metadata":     metadata,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &types.InvalidStateError{Message: fmt.Sprintf("withdrawal is already %s", txn.Status)}
		}
		if err := tx.
			Model(&models.WalletTransaction{}).
			Where("related_transaction_id = ? AND status = ?", transactionID, types.WALLET_TXN_PENDING).
			Update("status", types.WALLET_TXN_COMPLETED).
			Error; err != nil {
			return err
		}
		txn.Status = types.TRANSACTION_COMPLETED
		txn.ProcessedAt = &now
		txn.Metadata = metadata
		return nil
	})
	if err != nil {
		log.Printf("ApproveWithdrawal failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	s.events.Publish(context.Background(), &Event{
		Name:    "wallet.withdrawal_approved",
		UserID:  txn.UserID,
		Title:   "Withdrawal approved",
		Message: fmt.Sprintf("Your withdrawal of %s %s has been approved", txn.Amount.String(), txn.Currency),
		Data: types.JSONB{
			"transaction_id": txn.ID.String(),
		},
	})
	return types.ResultOK("withdrawal approved", &txn)
}

// GetWallet Read-only view; a user without a wallet row sees a zero balance,
// nothing is created.
func (s *WalletService) GetWallet(userID uint) *types.Result {
	var wallet models.Wallet
	err := s.db.Where(&models.Wallet{UserID: userID}).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = models.Wallet{UserID: userID, Balance: decimal.Zero, Currency: "usd"}
	} else if err != nil {
		log.Printf("GetWallet failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	return types.ResultOK("wallet retrieved", &wallet)
}

func (s *WalletService) GetWalletTransactions(userID uint) *types.Result {
	var wallet models.Wallet
	err := s.db.Where(&models.Wallet{UserID: userID}).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ResultOK("wallet transactions retrieved", []*models.WalletTransaction{})
	} else if err != nil {
		return types.ResultErr(err)
	}
	var entries []*models.WalletTransaction
	if err := s.db.
		Where(&models.WalletTransaction{WalletID: wallet.ID}).
		Order("created_at DESC").
		Limit(100).
		Find(&entries).
		Error; err != nil {
		log.Printf("GetWalletTransactions failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	return types.ResultOK("wallet transactions retrieved", entries)
}
