package request

// RequestExportRequest is the body of POST /api/exports.
type RequestExportRequest struct {
	TargetBusinessID string `json:"target_business_id,omitempty"`
	Query            string `json:"query"`
	Location         string `json:"location"`
	Cost             int    `json:"cost,omitempty"` // 0 = server default
}

// PurchaseCreditsRequest is the body of POST /api/credits/purchase.
type PurchaseCreditsRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description,omitempty"`
}
