package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"careercraft/internal/api/middleware"
	"careercraft/internal/config"
	"careercraft/internal/database"
	"careercraft/internal/tasks"
)

// TaskEnqueuer is the slice of the asynq client the API uses.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AnalysisHandler serves analysis reads and creation. Creation only records
// a PENDING row and hands the work to the queue; the worker owns all result
// writes.
type AnalysisHandler struct {
	db       *gorm.DB
	queue    TaskEnqueuer
	features config.FeatureFlags
}

// NewAnalysisHandler builds an AnalysisHandler.
func NewAnalysisHandler(db *gorm.DB, queue TaskEnqueuer, features config.FeatureFlags) *AnalysisHandler {
	return &AnalysisHandler{
		db:       db,
		queue:    queue,
		features: features,
	}
}

type createAnalysisRequest struct {
	ResumeID uint   `json:"resume_id" binding:"required"`
	Type     string `json:"type" binding:"required,oneof=COMPREHENSIVE ATS_SCAN GRAMMAR_CHECK KEYWORD_OPTIMIZATION FORMAT_REVIEW"`
}

// ListByResume returns every analysis for one owned resume, newest first.
// As in the rest of the query layer the filter carries both resume id and
// owner in one predicate; a resume the caller does not own yields an empty
// list.
func (h *AnalysisHandler) ListByResume(c *gin.Context) {
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

	var analyses []database.Analysis
	if err := h.db.WithContext(c.Request.Context()).
		Where("resume_id = ? AND user_id = ?", resumeID, userID).
		Order("created_at DESC, id DESC").
		Find(&analyses).Error; err != nil {
		Internal(c, "failed to list analyses")
		return
	}

	items := make([]analysisResponse, 0, len(analyses))
	for _, a := range analyses {
		items = append(items, newAnalysisResponse(a))
	}

	c.JSON(http.StatusOK, items)
}

type analysisWithResumeResponse struct {
	analysisResponse
	Resume resumeResponse `json:"resume"`
}

// GetAnalysis returns one owned analysis together with its parent resume.
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	analysisID, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid analysis id")
		return
	}

	var analysis database.Analysis
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Resume").
		Where("id = ? AND user_id = ?", analysisID, userID).
		First(&analysis).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "analysis not found")
			return
		}
		Internal(c, "failed to query analysis")
		return
	}

	c.JSON(http.StatusOK, analysisWithResumeResponse{
		analysisResponse: newAnalysisResponse(analysis),
		Resume:           newResumeResponse(analysis.Resume),
	})
}

// CreateAnalysis validates the requested type, verifies resume ownership,
// records a PENDING row and enqueues the analysis job. The handler performs
// no AI work itself.
func (h *AnalysisHandler) CreateAnalysis(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if req.Type == database.AnalysisTypeATSScan && !h.features.ATSScore {
		Forbidden(c, "ats scoring is disabled")
		return
	}

	ctx := c.Request.Context()

	// Ownership check and insert are two round trips; a concurrent delete
	// of the resume between them surfaces as an orphan skip in the worker.
	var resume database.Resume
	if err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", req.ResumeID, userID).
		First(&resume).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Unauthorized(c)
			return
		}
		Internal(c, "failed to query resume")
		return
	}

	analysis := database.Analysis{
		UserID:   userID,
		ResumeID: resume.ID,
		Type:     req.Type,
		Status:   database.AnalysisStatusPending,
	}
	if err := h.db.WithContext(ctx).Create(&analysis).Error; err != nil {
		Internal(c, "failed to create analysis")
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewAnalysisRunTask(analysis.ID, correlationID)
	if err == nil {
		_, err = h.queue.Enqueue(task, asynq.MaxRetry(3))
	}
	if err != nil {
		// Keep the PENDING row; it stays visible to its owner and can be
		// re-enqueued once the queue recovers.
		middleware.LoggerFromContext(c).Error("enqueue analysis run failed",
			slog.Uint64("analysis_id", uint64(analysis.ID)),
			slog.Any("error", err),
		)
	}

	c.JSON(http.StatusCreated, newAnalysisResponse(analysis))
}
