package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"careercraft/internal/api/middleware"
	"careercraft/internal/database"
	"careercraft/internal/extract"
)

// ObjectStorage is the slice of the storage client the resume lifecycle uses.
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

const maxResumeUploadBytes = 10 << 20

// ResumeHandler serves the resume lifecycle: upload, list, get, delete,
// download link. Every store access is scoped to the session user in a
// single predicate so another user's rows are indistinguishable from
// nonexistent ones.
type ResumeHandler struct {
	db        *gorm.DB
	storage   ObjectStorage
	clamdAddr string
}

// NewResumeHandler builds a ResumeHandler.
func NewResumeHandler(db *gorm.DB, storageClient ObjectStorage, clamdAddr string) *ResumeHandler {
	return &ResumeHandler{
		db:        db,
		storage:   storageClient,
		clamdAddr: clamdAddr,
	}
}

var errInvalidResumeID = errors.New("invalid resume id")

type listResumesQuery struct {
	Limit int `form:"limit,default=10" binding:"min=1,max=100"`
}

type analysisResponse struct {
	ID             uint      `json:"id"`
	ResumeID       uint      `json:"resume_id"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	OverallScore   *float64  `json:"overall_score"`
	Strengths      []string  `json:"strengths"`
	Weaknesses     []string  `json:"weaknesses"`
	Suggestions    []string  `json:"suggestions"`
	Keywords       []string  `json:"keywords"`
	AIModel        string    `json:"ai_model,omitempty"`
	AIProvider     string    `json:"ai_provider,omitempty"`
	TokensUsed     int       `json:"tokens_used,omitempty"`
	ProcessingTime int64     `json:"processing_time_ms,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type resumeListItem struct {
	ID             uint              `json:"id"`
	FileName       string            `json:"file_name"`
	FileSize       int64             `json:"file_size"`
	MimeType       string            `json:"mime_type"`
	Status         string            `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	LatestAnalysis *analysisResponse `json:"latest_analysis"`
}

type resumeResponse struct {
	ID        uint               `json:"id"`
	FileName  string             `json:"file_name"`
	FileSize  int64              `json:"file_size"`
	MimeType  string             `json:"mime_type"`
	Status    string             `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Analyses  []analysisResponse `json:"analyses"`
}

// ListResumes returns up to limit resumes owned by the caller, newest
// first, each with its most recent analysis attached.
func (h *ResumeHandler) ListResumes(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var query listResumesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, "limit must be between 1 and 100")
		return
	}

	ctx := c.Request.Context()
	var resumes []database.Resume
	if err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(query.Limit).
		Find(&resumes).Error; err != nil {
		Internal(c, "failed to list resumes")
		return
	}

	latest, err := h.latestAnalysisPerResume(ctx, userID, resumes)
	if err != nil {
		Internal(c, "failed to load analyses")
		return
	}

	items := make([]resumeListItem, 0, len(resumes))
	for _, r := range resumes {
		item := resumeListItem{
			ID:        r.ID,
			FileName:  r.FileName,
			FileSize:  r.FileSize,
			MimeType:  r.MimeType,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		}
		if a, ok := latest[r.ID]; ok {
			resp := newAnalysisResponse(a)
			item.LatestAnalysis = &resp
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, items)
}

func (h *ResumeHandler) latestAnalysisPerResume(ctx context.Context, userID uint, resumes []database.Resume) (map[uint]database.Analysis, error) {
	if len(resumes) == 0 {
		return nil, nil
	}
	ids := make([]uint, 0, len(resumes))
	for _, r := range resumes {
		ids = append(ids, r.ID)
	}

	var analyses []database.Analysis
	if err := h.db.WithContext(ctx).
		Where("resume_id IN ? AND user_id = ?", ids, userID).
		Order("created_at DESC, id DESC").
		Find(&analyses).Error; err != nil {
		return nil, err
	}

	// Rows arrive newest first, so the first one seen per resume wins.
	latest := make(map[uint]database.Analysis, len(resumes))
	for _, a := range analyses {
		if _, seen := latest[a.ResumeID]; !seen {
			latest[a.ResumeID] = a
		}
	}
	return latest, nil
}

// GetResume returns one owned resume with all of its analyses, newest first.
func (h *ResumeHandler) GetResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	resumeID, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	var resume database.Resume
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Analyses", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		Where("id = ? AND user_id = ?", resumeID, userID).
		First(&resume).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "resume not found")
			return
		}
		Internal(c, "failed to query resume")
		return
	}

	c.JSON(http.StatusOK, newResumeResponse(resume))
}

// DeleteResume removes an owned resume and its analyses in one transaction.
// The cascade to analyses is explicit rather than left to database defaults.
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	resumeID, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	ctx := c.Request.Context()
	var objectKey string
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var resume database.Resume
		if err := tx.Where("id = ? AND user_id = ?", resumeID, userID).
			First(&resume).Error; err != nil {
			return err
		}
		objectKey = resume.FileURL

		if err := tx.Where("resume_id = ? AND user_id = ?", resumeID, userID).
			Delete(&database.Analysis{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", resumeID, userID).
			Delete(&database.Resume{}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "resume not found")
			return
		}
		Internal(c, "failed to delete resume")
		return
	}

	// Best effort: the row is gone either way.
	if h.storage != nil && objectKey != "" {
		if err := h.storage.DeleteObject(ctx, objectKey); err != nil {
			middleware.LoggerFromContext(c).Warn("delete resume object failed",
				slog.String("object_key", objectKey),
				slog.Any("error", err),
			)
		}
	}

	c.Status(http.StatusNoContent)
}

// UploadResume accepts a PDF, scans it when clamd is configured, extracts
// its text and stores file plus record.
func (h *ResumeHandler) UploadResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxResumeUploadBytes {
		BadRequest(c, "file too large")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return
	}

	if !extract.IsPDF(data) {
		BadRequest(c, "only pdf resumes are supported")
		return
	}

	if h.clamdAddr != "" {
		clean, err := h.scanUpload(data)
		if err != nil {
			middleware.LoggerFromContext(c).Error("scan upload failed", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
		if !clean {
			BadRequest(c, "malicious file detected")
			return
		}
	}

	ctx := c.Request.Context()
	objectKey := fmt.Sprintf("resumes/%d/%s.pdf", userID, uuid.NewString())
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		middleware.LoggerFromContext(c).Error("upload resume failed", slog.Any("error", err))
		Internal(c, "failed to store file")
		return
	}

	status := database.ResumeStatusReady
	parsedText, err := extract.PDFText(data)
	if err != nil {
		middleware.LoggerFromContext(c).Warn("extract resume text failed", slog.Any("error", err))
		status = database.ResumeStatusFailed
	}

	resume := database.Resume{
		UserID:     userID,
		FileName:   file.Filename,
		FileURL:    objectKey,
		FileSize:   int64(len(data)),
		MimeType:   "application/pdf",
		ParsedText: parsedText,
		Status:     status,
	}
	if err := h.db.WithContext(ctx).Create(&resume).Error; err != nil {
		Internal(c, "failed to create resume")
		return
	}

	c.JSON(http.StatusCreated, newResumeResponse(resume))
}

// GetDownloadLink returns a short-lived presigned URL for an owned resume.
func (h *ResumeHandler) GetDownloadLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	resume, err := h.getResumeForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidResumeID):
			BadRequest(c, "invalid resume id")
		case errors.Is(err, gorm.ErrRecordNotFound):
			NotFound(c, "resume not found")
		default:
			Internal(c, "failed to query resume")
		}
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), resume.FileURL, 5*time.Minute)
	if err != nil {
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func (h *ResumeHandler) scanUpload(data []byte) (bool, error) {
	clamdClient := clamd.NewClamd(h.clamdAddr)

	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := clamdClient.ScanStream(bytes.NewReader(data), abortChan)
	if err != nil {
		return false, err
	}

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return false, nil
		}
	}
	return true, nil
}

func (h *ResumeHandler) getResumeForUser(ctx context.Context, idParam string, userID uint) (*database.Resume, error) {
	resumeID, err := parseResumeID(idParam)
	if err != nil {
		return nil, err
	}

	var resume database.Resume
	if err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", resumeID, userID).
		First(&resume).Error; err != nil {
		return nil, err
	}

	return &resume, nil
}

func parseResumeID(idParam string) (uint, error) {
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		return 0, errInvalidResumeID
	}
	return uint(id), nil
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}

func newAnalysisResponse(a database.Analysis) analysisResponse {
	return analysisResponse{
		ID:             a.ID,
		ResumeID:       a.ResumeID,
		Type:           a.Type,
		Status:         a.Status,
		OverallScore:   a.OverallScore,
		Strengths:      a.Strengths,
		Weaknesses:     a.Weaknesses,
		Suggestions:    a.Suggestions,
		Keywords:       a.Keywords,
		AIModel:        a.AIModel,
		AIProvider:     a.AIProvider,
		TokensUsed:     a.TokensUsed,
		ProcessingTime: a.ProcessingTime,
		CreatedAt:      a.CreatedAt,
	}
}

func newResumeResponse(resume database.Resume) resumeResponse {
	analyses := make([]analysisResponse, 0, len(resume.Analyses))
	for _, a := range resume.Analyses {
		analyses = append(analyses, newAnalysisResponse(a))
	}
	return resumeResponse{
		ID:        resume.ID,
		FileName:  resume.FileName,
		FileSize:  resume.FileSize,
		MimeType:  resume.MimeType,
		Status:    resume.Status,
		CreatedAt: resume.CreatedAt,
		UpdatedAt: resume.UpdatedAt,
		Analyses:  analyses,
	}
}
