package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"careercraft/internal/ai"
	"careercraft/internal/database"
	"careercraft/internal/tasks"
)

type fakeAnalyzer struct {
	result ai.Result
	usage  ai.Usage
	err    error
	calls  int
}

func (a *fakeAnalyzer) Analyze(_ context.Context, _, _ string) (ai.Result, ai.Usage, error) {
	a.calls++
	return a.result, a.usage, a.err
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Resume{}, &database.Analysis{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedPendingAnalysis(t *testing.T, db *gorm.DB, parsedText string) database.Analysis {
	t.Helper()
	resume := database.Resume{
		UserID:     1,
		FileName:   "mine.pdf",
		FileURL:    "resumes/1/mine.pdf",
		MimeType:   "application/pdf",
		ParsedText: parsedText,
		Status:     database.ResumeStatusReady,
	}
	if err := db.Create(&resume).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	analysis := database.Analysis{
		UserID:   1,
		ResumeID: resume.ID,
		Type:     database.AnalysisTypeComprehensive,
		Status:   database.AnalysisStatusPending,
	}
	if err := db.Create(&analysis).Error; err != nil {
		t.Fatalf("seed analysis: %v", err)
	}
	return analysis
}

func runTask(t *testing.T, h *AnalysisTaskHandler, analysisID uint) error {
	t.Helper()
	task, err := tasks.NewAnalysisRunTask(analysisID, "test-correlation")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return h.ProcessTask(context.Background(), task)
}

func TestProcessTask_CompletesPendingAnalysis(t *testing.T) {
	db := newTestDB(t)
	analyzer := &fakeAnalyzer{
		result: ai.Result{
			OverallScore: 72.5,
			Strengths:    []string{"clear structure"},
			Weaknesses:   []string{"missing metrics"},
			Suggestions:  []string{"quantify impact"},
			Keywords:     []string{"Go", "PostgreSQL"},
		},
		usage: ai.Usage{TokensUsed: 987},
	}
	h := NewAnalysisTaskHandler(db, analyzer, nil, slog.Default(), "gemini-2.5-flash", "gemini")

	analysis := seedPendingAnalysis(t, db, "experienced backend engineer")

	if err := runTask(t, h, analysis.ID); err != nil {
		t.Fatalf("process task: %v", err)
	}

	var got database.Analysis
	if err := db.First(&got, analysis.ID).Error; err != nil {
		t.Fatalf("reload analysis: %v", err)
	}
	if got.Status != database.AnalysisStatusCompleted {
		t.Fatalf("expected COMPLETED got %s", got.Status)
	}
	if got.OverallScore == nil || *got.OverallScore != 72.5 {
		t.Fatalf("unexpected score %v", got.OverallScore)
	}
	if len(got.Strengths) != 1 || got.Strengths[0] != "clear structure" {
		t.Fatalf("unexpected strengths %v", got.Strengths)
	}
	if got.TokensUsed != 987 {
		t.Fatalf("unexpected tokens %d", got.TokensUsed)
	}
	if got.AIModel != "gemini-2.5-flash" || got.AIProvider != "gemini" {
		t.Fatalf("unexpected model metadata %q/%q", got.AIModel, got.AIProvider)
	}
}

func TestProcessTask_SkipsTerminalAnalysis(t *testing.T) {
	db := newTestDB(t)
	analyzer := &fakeAnalyzer{}
	h := NewAnalysisTaskHandler(db, analyzer, nil, slog.Default(), "gemini-2.5-flash", "gemini")

	analysis := seedPendingAnalysis(t, db, "text")
	if err := db.Model(&database.Analysis{}).Where("id = ?", analysis.ID).
		Update("status", database.AnalysisStatusCompleted).Error; err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	if err := runTask(t, h, analysis.ID); err != nil {
		t.Fatalf("process task: %v", err)
	}
	if analyzer.calls != 0 {
		t.Fatalf("expected analyzer untouched, got %d calls", analyzer.calls)
	}
}

func TestProcessTask_MissingAnalysisIsNoop(t *testing.T) {
	db := newTestDB(t)
	analyzer := &fakeAnalyzer{}
	h := NewAnalysisTaskHandler(db, analyzer, nil, slog.Default(), "gemini-2.5-flash", "gemini")

	if err := runTask(t, h, 9999); err != nil {
		t.Fatalf("expected nil for vanished analysis, got %v", err)
	}
	if analyzer.calls != 0 {
		t.Fatalf("expected analyzer untouched, got %d calls", analyzer.calls)
	}
}

func TestProcessTask_EmptyParsedTextFails(t *testing.T) {
	db := newTestDB(t)
	analyzer := &fakeAnalyzer{}
	h := NewAnalysisTaskHandler(db, analyzer, nil, slog.Default(), "gemini-2.5-flash", "gemini")

	analysis := seedPendingAnalysis(t, db, "   ")

	if err := runTask(t, h, analysis.ID); err != nil {
		t.Fatalf("process task: %v", err)
	}

	var got database.Analysis
	if err := db.First(&got, analysis.ID).Error; err != nil {
		t.Fatalf("reload analysis: %v", err)
	}
	if got.Status != database.AnalysisStatusFailed {
		t.Fatalf("expected FAILED got %s", got.Status)
	}
	if analyzer.calls != 0 {
		t.Fatalf("expected analyzer untouched, got %d calls", analyzer.calls)
	}
}

func TestProcessTask_AnalyzerErrorReturnsForRetry(t *testing.T) {
	db := newTestDB(t)
	analyzer := &fakeAnalyzer{err: fmt.Errorf("model unavailable")}
	h := NewAnalysisTaskHandler(db, analyzer, nil, slog.Default(), "gemini-2.5-flash", "gemini")

	analysis := seedPendingAnalysis(t, db, "text")

	if err := runTask(t, h, analysis.ID); err == nil {
		t.Fatalf("expected retryable error")
	}

	var got database.Analysis
	if err := db.First(&got, analysis.ID).Error; err != nil {
		t.Fatalf("reload analysis: %v", err)
	}
	if got.Status != database.AnalysisStatusPending {
		t.Fatalf("expected row still PENDING before final attempt, got %s", got.Status)
	}
}
