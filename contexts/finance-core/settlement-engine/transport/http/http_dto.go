package httptransport

type PurchasePaperRequest struct {
	BuyerAccount   string  `json:"buyer_account"`
	TenderedAmount *uint64 `json:"tendered_amount,omitempty"`
}

type SettlementDTO struct {
	SettlementID    string `json:"settlement_id"`
	PaperID         string `json:"paper_id"`
	BuyerAccount    string `json:"buyer_account"`
	Amount          uint64 `json:"amount"`
	PlatformFee     uint64 `json:"platform_fee"`
	AuthorShare     uint64 `json:"author_share"`
	PerAuthorAmount uint64 `json:"per_author_amount"`
	PlatformTotal   uint64 `json:"platform_total"`
	AuthorCount     int    `json:"author_count"`
	Mode            string `json:"mode"`
	SettledAt       string `json:"settled_at"`
}

type PurchasePaperResponse struct {
	Status   string        `json:"status"`
	Replayed bool          `json:"replayed"`
	Data     SettlementDTO `json:"data"`
}

type GetSettlementResponse struct {
	Status string        `json:"status"`
	Data   SettlementDTO `json:"data"`
}

type DepositRequest struct {
	Amount uint64 `json:"amount"`
}

type WithdrawRequest struct {
	Amount uint64 `json:"amount"`
}

type BalanceDTO struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

type BalanceResponse struct {
	Status string     `json:"status"`
	Data   BalanceDTO `json:"data"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
