package api

import "github.com/ebudget/ebudget/internal/aggregate"

// User is the authenticated account as returned by /auth/login and /auth/me.
type User struct {
	ID             aggregate.Text `json:"id"`
	CostCenterID   aggregate.Text `json:"cost_center_id"`
	CostCenterName string         `json:"cost_center_name"`
	CostCenter     string         `json:"cost_center"`
	CompanyName    string         `json:"company_name"`
	ProfitCenter   string         `json:"profit_center"`
	Region         string         `json:"region"`
	Currency       string         `json:"currency"`
	BranchCode     aggregate.Text `json:"branchcode"`
	BranchCode2    aggregate.Text `json:"branchcode2"`
	Role           string         `json:"role"`
}

// Credentials is the login request body.
type Credentials struct {
	CostCenterName string `json:"cost_center_name"`
	Password       string `json:"password"`
}

// LoginResult is the /auth/login response.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// GLItem is an account available for input in a category.
type GLItem struct {
	GLCode            aggregate.Text `json:"gl_code"`
	GLAccountLongName string         `json:"gl_account_long_name"`
	Sub1              string         `json:"sub1"`
	Sub2              string         `json:"sub2"`
	SubTitle          string         `json:"sub_title"`
}

// CompanyProfitCenter pairs a related-party company with one of its profit centers.
type CompanyProfitCenter struct {
	CompanyName  string `json:"company_name"`
	ProfitCenter string `json:"profit_center"`
}

// CategoryItems is the /gl/glinput-category response.
type CategoryItems struct {
	GLItems       []GLItem              `json:"glItems"`
	GroupedData   []CompanyProfitCenter `json:"groupedData,omitempty"`
	RelatedGLInfo map[string]any        `json:"relatedGLInfo,omitempty"`
}

// InputValues maps gl_code to month values.
type InputValues map[string]aggregate.MonthValues

// InputSnapshot is the /gl/glinput-load response.
type InputSnapshot struct {
	Current  InputValues `json:"current"`
	Previous InputValues `json:"previous"`
	SavedAt  string      `json:"savedAt"`
}

// SaveInput is the /gl/glinput-save request body.
type SaveInput struct {
	GLYear   int         `json:"glyear"`
	Category string      `json:"category,omitempty"`
	Currency string      `json:"currency"`
	Values   InputValues `json:"values"`
}

// RelatedQuery is the /gl/glinput-load-related request body.
type RelatedQuery struct {
	GLYear       int    `json:"glyear"`
	Company      string `json:"company"`
	ProfitCenter string `json:"profitCenter"`
	GLCode       string `json:"glcode,omitempty"`
}

// RelatedValues is the /gl/glinput-load-related response.
type RelatedValues struct {
	Current InputValues `json:"current"`
}

// LockStatus is one cost center's submission and lock record.
type LockStatus struct {
	CostCenterName  string          `json:"cost_center_name"`
	Region          string          `json:"region"`
	Company         string          `json:"company"`
	ProfitCenter    string          `json:"profit_center"`
	GLYear          int             `json:"glyear"`
	IsSubmitted     bool            `json:"is_submitted"`
	SubmitAt        string          `json:"submit_at"`
	UnlockRequested bool            `json:"unlock_requested"`
	UnlockReason    string          `json:"unlock_reason"`
	UnlockAt        string          `json:"unlock_at"`
	CategoryLocks   map[string]bool `json:"category_locks"`
}

// LockCommand addresses a lock mutation at one cost center.
type LockCommand struct {
	CostCenterName string `json:"cost_center_name,omitempty"`
	GLYear         int    `json:"glyear"`
	Category       string `json:"category,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// BulkLockCommand addresses a lock mutation at many cost centers.
type BulkLockCommand struct {
	GLYear          int      `json:"glyear"`
	CostCenterNames []string `json:"cost_center_names"`
	Categories      []string `json:"categories,omitempty"`
}

// CurrencyInfo describes the base and user currencies of a report.
type CurrencyInfo struct {
	BaseCurrency string  `json:"base_currency"`
	UserCurrency string  `json:"user_currency"`
	Rate         float64 `json:"rate"`
}

// ReportFilter narrows report queries.
type ReportFilter struct {
	GLYear        int
	Company       string
	ProfitCenters []string
	CostCenters   []string
}

// PNLReport is the /report/pnl response.
type PNLReport struct {
	Data         []aggregate.Record `json:"data"`
	CurrencyInfo *CurrencyInfo      `json:"currency_info"`
}

// PNLSummary is the /report/pnl-summary response.
type PNLSummary struct {
	Summary map[string]aggregate.Amount `json:"summary"`
}

// PPERecord is one line of the PPE report.
type PPERecord struct {
	Category    string                `json:"category"`
	UserID      aggregate.Text        `json:"userid"`
	Description string                `json:"description"`
	Purpose     string                `json:"purpose"`
	UnitCost    aggregate.Amount      `json:"unitCost"`
	Values      aggregate.MonthValues `json:"values"`
	Units       aggregate.MonthValues `json:"units"`
}

// PPEReport is the /report/ppe response.
type PPEReport struct {
	Data         []PPERecord   `json:"data"`
	CurrencyInfo *CurrencyInfo `json:"currency_info"`
}

// DetailRow is one underlying transaction behind a P&L line.
type DetailRow struct {
	GLCode      aggregate.Text   `json:"gl_code"`
	Month       string           `json:"month"`
	CostCenter  string           `json:"cost_center"`
	Description string           `json:"description"`
	Amount      aggregate.Amount `json:"amount"`
}

// DetailReport is the /report/details response.
type DetailReport struct {
	Data []DetailRow `json:"data"`
}

// CompanyStructure is the /report/company-structure response.
type CompanyStructure struct {
	ProfitCenters []string `json:"profit_centers"`
	CostCenters   []string `json:"cost_centers"`
}

// PPEItem is one planned capital purchase.
type PPEItem struct {
	ID          aggregate.Text        `json:"id"`
	Description string                `json:"description"`
	Purpose     string                `json:"purpose"`
	UnitCost    aggregate.Amount      `json:"unitCost"`
	MonthlyUnit aggregate.MonthValues `json:"monthlyUnit"`
}

// PPEPlan maps PPE category to its items.
type PPEPlan map[string][]PPEItem

// PPESnapshot is the /ppe/load response.
type PPESnapshot struct {
	Current PPEPlan `json:"current"`
	SavedAt string  `json:"savedAt"`
}

// PPESaveInput is the /ppe/save request body.
type PPESaveInput struct {
	Year int     `json:"year"`
	Data PPEPlan `json:"data"`
}

// UploadRow is one spreadsheet row keyed by header.
type UploadRow map[string]any

// UploadResult is the /upload/upload-budgets response.
type UploadResult struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}
