package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"folio/contexts/finance-core/settlement-engine/application"
	"folio/contexts/finance-core/settlement-engine/ports"
	httptransport "folio/contexts/finance-core/settlement-engine/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) PurchasePaperHandler(
	ctx context.Context,
	idempotencyKey string,
	paperID string,
	req httptransport.PurchasePaperRequest,
) (httptransport.PurchasePaperResponse, error) {
	settlement, replayed, err := h.Service.Purchase(ctx, idempotencyKey, ports.PurchaseInput{
		BuyerAccount:   req.BuyerAccount,
		PaperID:        paperID,
		TenderedAmount: req.TenderedAmount,
	})
	if err != nil {
		return httptransport.PurchasePaperResponse{}, err
	}
	return httptransport.PurchasePaperResponse{
		Status:   "success",
		Replayed: replayed,
		Data:     settlementToDTO(settlement),
	}, nil
}

func (h Handler) GetSettlementHandler(
	ctx context.Context,
	settlementID string,
) (httptransport.GetSettlementResponse, error) {
	settlement, err := h.Service.GetSettlement(ctx, settlementID)
	if err != nil {
		return httptransport.GetSettlementResponse{}, err
	}
	return httptransport.GetSettlementResponse{
		Status: "success",
		Data:   settlementToDTO(settlement),
	}, nil
}

func (h Handler) DepositHandler(
	ctx context.Context,
	account string,
	req httptransport.DepositRequest,
) (httptransport.BalanceResponse, error) {
	balance, err := h.Service.Deposit(ctx, account, req.Amount)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	return httptransport.BalanceResponse{
		Status: "success",
		Data:   httptransport.BalanceDTO{Account: balance.Account, Balance: balance.Balance},
	}, nil
}

func (h Handler) WithdrawHandler(
	ctx context.Context,
	account string,
	req httptransport.WithdrawRequest,
) (httptransport.BalanceResponse, error) {
	balance, err := h.Service.Withdraw(ctx, account, req.Amount)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	return httptransport.BalanceResponse{
		Status: "success",
		Data:   httptransport.BalanceDTO{Account: balance.Account, Balance: balance.Balance},
	}, nil
}

func (h Handler) BalanceHandler(
	ctx context.Context,
	account string,
) (httptransport.BalanceResponse, error) {
	balance, err := h.Service.Balance(ctx, account)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	return httptransport.BalanceResponse{
		Status: "success",
		Data:   httptransport.BalanceDTO{Account: balance.Account, Balance: balance.Balance},
	}, nil
}

func settlementToDTO(settlement ports.Settlement) httptransport.SettlementDTO {
	return httptransport.SettlementDTO{
		SettlementID:    settlement.SettlementID,
		PaperID:         settlement.PaperID,
		BuyerAccount:    settlement.BuyerAccount,
		Amount:          settlement.Amount,
		PlatformFee:     settlement.PlatformFee,
		AuthorShare:     settlement.AuthorShare,
		PerAuthorAmount: settlement.PerAuthorAmount,
		PlatformTotal:   settlement.PlatformTotal,
		AuthorCount:     settlement.AuthorCount,
		Mode:            settlement.Mode,
		SettledAt:       settlement.SettledAt.UTC().Format(time.RFC3339),
	}
}
