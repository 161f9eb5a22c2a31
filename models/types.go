package models

import "time"

// Poll status constants
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusEnded     = "ended"
	StatusArchived  = "archived"
)

// Anchor status constants
const (
	AnchorPending   = "pending"
	AnchorConfirmed = "confirmed"
	AnchorFailed    = "failed"
)

// Reason codes recorded on the audit trail and returned in error responses.
// Replay/integrity codes are fatal; expiry codes are retriable by restarting
// the challenge flow.
const (
	ReasonNonceInvalid      = "nonce_invalid"
	ReasonAttestExpired     = "attestation_expired"
	ReasonAttestMismatch    = "attestation_payload_mismatch"
	ReasonAttestBadSig      = "attestation_signature_invalid"
	ReasonAlreadyVoted      = "already_voted"
	ReasonPollNotActive     = "poll_not_active"
	ReasonBudgetExceeded    = "query_budget_exceeded"
	ReasonQueryOverlap      = "query_overlap"
	ReasonAudienceBelowK    = "audience_below_k"
	ReasonRateLimited       = "rate_limited"
	ReasonVerificationFail  = "verification_failed"
	ReasonAnchorUnreachable = "anchor_unreachable"
)

// Request types

type CreatePollRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Options      []string `json:"options"`
	MinK         int      `json:"min_k"`
	AudienceSize int      `json:"audience_size"`
}

type ChallengeRequest struct {
	DeviceID string `json:"device_id"`
}

type IssueAttestationRequest struct {
	PollID          string `json:"poll_id"`
	OptionID        string `json:"option_id"`
	TimestampBucket string `json:"timestamp_bucket"`
	Nonce           string `json:"nonce"`
	// SubjectRef is the opaque stable reference handed back by the external
	// identity-verification provider. It never appears on the vote path.
	SubjectRef string `json:"subject_ref"`
}

type SubmitVoteRequest struct {
	PollID          string `json:"poll_id"`
	OptionID        string `json:"option_id"`
	Nullifier       string `json:"nullifier"`
	TimestampBucket string `json:"timestamp_bucket"`
	Cohort          string `json:"cohort,omitempty"`
}

type VerifyReceiptRequest struct {
	Receipt     Receipt      `json:"receipt"`
	MerkleProof *MerkleProof `json:"merkle_proof,omitempty"`
	MerkleRoot  string       `json:"merkle_root,omitempty"`
}

// Response types

type CreatePollResponse struct {
	PollID   string   `json:"poll_id"`
	AdminKey string   `json:"admin_key"`
	Options  []Option `json:"options"`
}

type ChallengeResponse struct {
	Nonce      string `json:"nonce"`
	TTLSeconds int    `json:"ttl"`
}

type IssueAttestationResponse struct {
	Attestation string `json:"attestation"`
	Nullifier   string `json:"nullifier"`
	TTLSeconds  int    `json:"ttl"`
}

type SubmitVoteResponse struct {
	Success    bool    `json:"success"`
	Receipt    Receipt `json:"receipt"`
	MerkleRoot string  `json:"merkle_root"`
	LeafIndex  int     `json:"leaf_index"`
}

type ReceiptPubkeyResponse struct {
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"`
}

type VerifyReceiptResponse struct {
	Valid          bool   `json:"valid"`
	SignatureValid bool   `json:"signature_valid"`
	MerkleValid    *bool  `json:"merkle_valid,omitempty"`
	OnChainAnchor  string `json:"on_chain_anchor,omitempty"`
}

type MerkleRootResponse struct {
	MerkleRoot    string `json:"merkle_root"`
	LeafCount     int    `json:"leaf_count"`
	OnChainAnchor string `json:"on_chain_anchor,omitempty"`
}

// Domain types

type Poll struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	MinK         int        `json:"min_k"`
	AudienceSize int        `json:"audience_size"`
	MerkleRoot   string     `json:"merkle_root,omitempty"`
	LeafCount    int        `json:"leaf_count"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Option struct {
	ID     string `json:"id"`
	PollID string `json:"poll_id"`
	Label  string `json:"label"`
}

type PollWithOptions struct {
	Poll    Poll     `json:"poll"`
	Options []Option `json:"options"`
}

// Receipt is the signed acknowledgment that a vote leaf was ledgered. It is
// independently verifiable with the published public key and carries nothing
// that links back to a voter identity.
type Receipt struct {
	LeafHash  string `json:"leaf_hash"`
	PollID    string `json:"poll_id"`
	Nullifier string `json:"nullifier"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// MerkleProof is a sibling path from a leaf to a root. Left[i] reports
// whether Siblings[i] sits to the left of the running hash.
type MerkleProof struct {
	Siblings []string `json:"siblings"`
	Left     []bool   `json:"left"`
}

type VoteAnchor struct {
	ID            string     `json:"id"`
	PollID        string     `json:"poll_id"`
	ChainHash     string     `json:"chain_hash"`
	ExternalTxRef string     `json:"external_tx_ref,omitempty"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

// Analytics types

type CohortBucket struct {
	Key        map[string]string `json:"key"`
	Count      int               `json:"count,omitempty"`
	Percent    float64           `json:"percent,omitempty"`
	Suppressed bool              `json:"suppressed"`
}

type AnalyticsResult struct {
	PollID     string         `json:"poll_id"`
	Dimensions []string       `json:"dimensions"`
	Total      int            `json:"total"`
	K          int            `json:"k"`
	Buckets    []CohortBucket `json:"buckets"`
	ComputedAt time.Time      `json:"computed_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
