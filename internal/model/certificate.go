package model

import "github.com/google/uuid"

const (
	// PassingScore is the minimum overall score that earns a certificate.
	PassingScore = 80.0
	// CertificateJobName identifies certificate generation jobs on the queue.
	CertificateJobName = "certificate.generate"
)

// CertificateRequest is the payload handed to the certificate renderer.
type CertificateRequest struct {
	CertificateID         string         `json:"certificate_id"`
	UserID                int            `json:"user_id"`
	SessionID             uuid.UUID      `json:"session_id"`
	RoleID                int            `json:"role_id"`
	Score                 float64        `json:"score"`
	CategoryScores        CategoryScores `json:"category_scores"`
	CompletionTimeSeconds int64          `json:"completion_time_seconds"`
	Rank                  int            `json:"rank"`
}
