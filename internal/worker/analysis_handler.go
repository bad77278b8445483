package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"careercraft/internal/ai"
	"careercraft/internal/database"
	"careercraft/internal/errcode"
	"careercraft/internal/tasks"
)

// Analyzer produces structured feedback for one resume text.
type Analyzer interface {
	Analyze(ctx context.Context, analysisType, resumeText string) (ai.Result, ai.Usage, error)
}

// AnalysisTaskHandler consumes analysis:run tasks. It is the only writer of
// analysis result fields: a row is moved from PENDING to a terminal status
// exactly once, and rows that are already terminal (or gone) are skipped so
// redeliveries stay harmless.
type AnalysisTaskHandler struct {
	db          *gorm.DB
	analyzer    Analyzer
	redisClient *redis.Client
	logger      *slog.Logger
	aiModel     string
	aiProvider  string
}

// NewAnalysisTaskHandler builds the task handler.
func NewAnalysisTaskHandler(db *gorm.DB, analyzer Analyzer, redisClient *redis.Client, logger *slog.Logger, aiModel, aiProvider string) *AnalysisTaskHandler {
	return &AnalysisTaskHandler{
		db:          db,
		analyzer:    analyzer,
		redisClient: redisClient,
		logger:      logger,
		aiModel:     aiModel,
		aiProvider:  aiProvider,
	}
}

// ProcessTask implements asynq.Handler.
func (h *AnalysisTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.AnalysisRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("analysis_id", uint64(payload.AnalysisID)),
	)

	var analysis database.Analysis
	if err := h.db.WithContext(ctx).First(&analysis, payload.AnalysisID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("analysis not found, skipping task")
			return nil
		}
		log.Error("query analysis failed", slog.Any("error", err))
		return err
	}

	if analysis.Status != database.AnalysisStatusPending {
		log.Info("analysis already terminal, skipping task", slog.String("status", analysis.Status))
		return nil
	}

	log = log.With(
		slog.Uint64("user_id", uint64(analysis.UserID)),
		slog.Uint64("resume_id", uint64(analysis.ResumeID)),
		slog.String("type", analysis.Type),
	)

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		// Out of retries: record the failure and tell the owner.
		if err := h.markFailed(ctx, &analysis); err != nil {
			log.Error("mark analysis failed errored", slog.Any("error", err))
		}
		notify := AnalysisNotifyMessage{
			Status:        "failed",
			AnalysisID:    analysis.ID,
			ResumeID:      analysis.ResumeID,
			Type:          analysis.Type,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishNotify(ctx, analysis.UserID, notify); err != nil {
			log.Error("publish failure notification failed", slog.Any("error", err))
		}
	}()

	// The parent resume may have been deleted after the task was enqueued;
	// that race resolves as a skip, not a crash.
	var resume database.Resume
	if err := h.db.WithContext(ctx).First(&resume, analysis.ResumeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("resume gone, skipping analysis")
			return nil
		}
		log.Error("query resume failed", slog.Any("error", err))
		return err
	}

	if strings.TrimSpace(resume.ParsedText) == "" {
		log.Warn("resume has no parsed text")
		if err := h.markFailed(ctx, &analysis); err != nil {
			return err
		}
		return h.publishNotify(ctx, analysis.UserID, AnalysisNotifyMessage{
			Status:        "failed",
			AnalysisID:    analysis.ID,
			ResumeID:      analysis.ResumeID,
			Type:          analysis.Type,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.ResourceMissing,
			ErrorMessage:  "resume has no extracted text",
		})
	}

	start := time.Now()
	result, usage, err := h.analyzer.Analyze(ctx, analysis.Type, resume.ParsedText)
	if err != nil {
		log.Error("run analysis failed", slog.Any("error", err))
		return err
	}
	elapsed := time.Since(start)

	update := map[string]any{
		"status":          database.AnalysisStatusCompleted,
		"overall_score":   result.OverallScore,
		"strengths":       datatypes.NewJSONSlice(result.Strengths),
		"weaknesses":      datatypes.NewJSONSlice(result.Weaknesses),
		"suggestions":     datatypes.NewJSONSlice(result.Suggestions),
		"keywords":        datatypes.NewJSONSlice(result.Keywords),
		"ai_model":        h.aiModel,
		"ai_provider":     h.aiProvider,
		"tokens_used":     usage.TokensUsed,
		"processing_time": elapsed.Milliseconds(),
	}
	if err := h.db.WithContext(ctx).Model(&analysis).Updates(update).Error; err != nil {
		log.Error("update analysis failed", slog.Any("error", err))
		return err
	}

	if err := h.publishNotify(ctx, analysis.UserID, AnalysisNotifyMessage{
		Status:        "completed",
		AnalysisID:    analysis.ID,
		ResumeID:      analysis.ResumeID,
		Type:          analysis.Type,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}); err != nil {
		log.Error("publish completion notification failed", slog.Any("error", err))
		return err
	}

	log.Info("analysis completed",
		slog.Float64("overall_score", result.OverallScore),
		slog.Int("tokens_used", usage.TokensUsed),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

func (h *AnalysisTaskHandler) markFailed(ctx context.Context, analysis *database.Analysis) error {
	return h.db.WithContext(ctx).Model(analysis).
		Where("status = ?", database.AnalysisStatusPending).
		Update("status", database.AnalysisStatusFailed).Error
}

func (h *AnalysisTaskHandler) publishNotify(ctx context.Context, userID uint, notify AnalysisNotifyMessage) error {
	if h.redisClient == nil {
		return nil
	}
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
