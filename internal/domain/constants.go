package domain

// Ledger entry kinds. Deposit and profit credit the account,
// investment and withdrawal debit it.
const (
	EntryKindDeposit    = "deposit"
	EntryKindInvestment = "investment"
	EntryKindProfit     = "profit"
	EntryKindWithdrawal = "withdrawal"
)

// Ledger entry statuses.
const (
	EntryStatusPending   = "pending"
	EntryStatusCompleted = "completed"
	EntryStatusFailed    = "failed"
)

// Deposit and withdrawal request statuses.
const (
	RequestStatusPending   = "pending"
	RequestStatusConfirmed = "confirmed"
	RequestStatusRejected  = "rejected"
)

// Investment statuses. Cancelled is a reserved value: no operation
// currently transitions an investment into it.
const (
	InvestmentStatusActive    = "active"
	InvestmentStatusCompleted = "completed"
	InvestmentStatusCancelled = "cancelled"
)

// Reference kinds linking a ledger entry to its originating entity.
// An investment produces two entries over its life, the principal debit
// and the maturity payout; they carry distinct kinds so each pair stays
// unique per entity.
const (
	RefKindDeposit          = "deposit_request"
	RefKindWithdrawal       = "withdrawal_request"
	RefKindInvestment       = "investment"
	RefKindInvestmentProfit = "investment_profit"
)

// Resolution decisions an admin can apply to a pending request.
const (
	DecisionConfirmed = "confirmed"
	DecisionRejected  = "rejected"
)

// systemWallets maps each supported currency to the platform-owned
// deposit address users are instructed to send funds to. Incoming
// transfers are verified manually by an admin; the ledger only records
// the outcome.
var systemWallets = map[string]string{
	"BTC":  "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
	"ETH":  "0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
	"USDT": "TQn9Y2khEsLJW1ChVWFMSMeRDow5KcbLSE",
}

// SystemWalletAddress resolves the platform deposit address for a currency.
func SystemWalletAddress(currency string) (string, bool) {
	addr, ok := systemWallets[currency]
	return addr, ok
}

// SupportedCurrency reports whether the currency is in the allowed set.
func SupportedCurrency(currency string) bool {
	_, ok := systemWallets[currency]
	return ok
}
