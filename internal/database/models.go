package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role values for User.Role.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Resume status values.
const (
	ResumeStatusPending = "PENDING"
	ResumeStatusReady   = "READY"
	ResumeStatusFailed  = "FAILED"
)

// Analysis type values. Validation of client input happens at the API
// boundary; these constants keep producers and the worker consistent.
const (
	AnalysisTypeComprehensive       = "COMPREHENSIVE"
	AnalysisTypeATSScan             = "ATS_SCAN"
	AnalysisTypeGrammarCheck        = "GRAMMAR_CHECK"
	AnalysisTypeKeywordOptimization = "KEYWORD_OPTIMIZATION"
	AnalysisTypeFormatReview        = "FORMAT_REVIEW"
)

// Analysis status values.
const (
	AnalysisStatusPending   = "PENDING"
	AnalysisStatusCompleted = "COMPLETED"
	AnalysisStatusFailed    = "FAILED"
)

// User represents an account.
type User struct {
	gorm.Model
	Email        string   `gorm:"uniqueIndex;size:255"`
	Name         string   `gorm:"size:128"`
	PasswordHash string   `gorm:"size:255"`
	Role         string   `gorm:"size:16;default:USER"`
	Resumes      []Resume `gorm:"constraint:OnDelete:CASCADE"`
}

// Resume represents one uploaded resume file and its extracted text.
// Every row is owned by exactly one user; all reads and writes are scoped
// to that owner.
type Resume struct {
	gorm.Model
	UserID     uint `gorm:"index"`
	User       User `gorm:"constraint:OnDelete:CASCADE"`
	FileName   string `gorm:"size:255"`
	FileURL    string `gorm:"size:512"` // object key in the storage bucket
	FileSize   int64
	MimeType   string     `gorm:"size:128"`
	ParsedText string     `gorm:"type:text"`
	Status     string     `gorm:"size:32"`
	Analyses   []Analysis `gorm:"constraint:OnDelete:CASCADE"`
}

// Analysis represents one AI feedback run over a resume. Created PENDING by
// the API; result fields are written once by the worker when the row moves
// to a terminal status, never by the query layer.
type Analysis struct {
	gorm.Model
	UserID       uint   `gorm:"index"`
	ResumeID     uint   `gorm:"index"`
	Resume       Resume `gorm:"constraint:OnDelete:CASCADE"`
	Type         string `gorm:"size:32"`
	Status       string `gorm:"size:32"`
	OverallScore *float64
	Strengths    datatypes.JSONSlice[string]
	Weaknesses   datatypes.JSONSlice[string]
	Suggestions  datatypes.JSONSlice[string]
	Keywords     datatypes.JSONSlice[string]
	AIModel      string `gorm:"size:64"`
	AIProvider   string `gorm:"size:64;column:ai_provider"`
	TokensUsed   int
	// ProcessingTime is the model call latency in milliseconds.
	ProcessingTime int64
}
