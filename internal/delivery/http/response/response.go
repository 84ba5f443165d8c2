package response

import (
	"time"

	"github.com/user/leadexport-service/internal/entity"
)

// ExportJobResponse is the DTO for an export job.
type ExportJobResponse struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	TargetBusinessID *string `json:"target_business_id,omitempty"`
	Query            string  `json:"query"`
	Location         string  `json:"location,omitempty"`
	Status           string  `json:"status"`
	Cost             int     `json:"cost"`
	DownloadHandle   *string `json:"download_handle,omitempty"`
	FailReason       string  `json:"fail_reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// FromJob maps an entity job onto its DTO.
func FromJob(job *entity.ExportJob) ExportJobResponse {
	return ExportJobResponse{
		ID:               job.ID,
		UserID:           job.UserID,
		TargetBusinessID: job.TargetBusinessID,
		Query:            job.Query,
		Location:         job.Location,
		Status:           string(job.Status),
		Cost:             job.Cost,
		DownloadHandle:   job.DownloadHandle,
		FailReason:       job.FailReason,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	}
}

// BalanceResponse is the DTO for GET /api/credits/balance.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int    `json:"balance"`
}

// TransactionResponse is the DTO for one ledger entry.
type TransactionResponse struct {
	ID          string `json:"id"`
	Amount      int    `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// FromTransaction maps a ledger entry onto its DTO.
func FromTransaction(tx *entity.CreditTransaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID,
		Amount:      tx.Amount,
		Kind:        string(tx.Kind),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
}
