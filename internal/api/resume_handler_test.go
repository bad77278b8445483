package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"careercraft/internal/database"
)

type fakeStorage struct {
	uploaded map[string][]byte
	deleted  []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
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

func newTestContext(t *testing.T, userID uint, req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set("userID", userID)
	return c, w
}

func seedResume(t *testing.T, db *gorm.DB, userID uint, fileName string) database.Resume {
	t.Helper()
	resume := database.Resume{
		UserID:     userID,
		FileName:   fileName,
		FileURL:    fmt.Sprintf("resumes/%d/%s", userID, fileName),
		FileSize:   1024,
		MimeType:   "application/pdf",
		ParsedText: "some resume text",
		Status:     database.ResumeStatusReady,
	}
	if err := db.Create(&resume).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	return resume
}

func newMultipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestGetResume_OtherUsersResumeIsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewResumeHandler(db, newFakeStorage(), "")

	resume := seedResume(t, db, 2, "theirs.pdf")

	req := httptest.NewRequest(http.MethodGet, "/v1/resumes/1", nil)
	c, w := newTestContext(t, 1, req)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(resume.ID)}}

	h.GetResume(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestListResumes_LimitAndNewestFirst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewResumeHandler(db, newFakeStorage(), "")

	first := seedResume(t, db, 1, "first.pdf")
	second := seedResume(t, db, 1, "second.pdf")
	third := seedResume(t, db, 1, "third.pdf")
	seedResume(t, db, 2, "other-user.pdf")
	_ = first

	req := httptest.NewRequest(http.MethodGet, "/v1/resumes?limit=2", nil)
	c, w := newTestContext(t, 1, req)

	h.ListResumes(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var items []resumeListItem
	decodeJSON(t, w, &items)
	if len(items) != 2 {
		t.Fatalf("expected 2 items got %d", len(items))
	}
	if items[0].ID != third.ID || items[1].ID != second.ID {
		t.Fatalf("expected newest first [%d %d], got [%d %d]", third.ID, second.ID, items[0].ID, items[1].ID)
	}
}

func TestListResumes_LatestAnalysisAttached(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewResumeHandler(db, newFakeStorage(), "")

	resume := seedResume(t, db, 1, "mine.pdf")
	older := database.Analysis{UserID: 1, ResumeID: resume.ID, Type: database.AnalysisTypeComprehensive, Status: database.AnalysisStatusCompleted}
	if err := db.Create(&older).Error; err != nil {
		t.Fatalf("seed analysis: %v", err)
	}
	newer := database.Analysis{UserID: 1, ResumeID: resume.ID, Type: database.AnalysisTypeATSScan, Status: database.AnalysisStatusPending}
	if err := db.Create(&newer).Error; err != nil {
		t.Fatalf("seed analysis: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/resumes", nil)
	c, w := newTestContext(t, 1, req)

	h.ListResumes(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var items []resumeListItem
	decodeJSON(t, w, &items)
	if len(items) != 1 {
		t.Fatalf("expected 1 item got %d", len(items))
	}
	if items[0].LatestAnalysis == nil {
		t.Fatalf("expected latest analysis attached")
	}
	if items[0].LatestAnalysis.ID != newer.ID {
		t.Fatalf("expected latest analysis %d got %d", newer.ID, items[0].LatestAnalysis.ID)
	}
}

func TestListResumes_RejectsOutOfRangeLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewResumeHandler(db, newFakeStorage(), "")

	for _, limit := range []string{"0", "101"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/resumes?limit="+limit, nil)
		c, w := newTestContext(t, 1, req)

		h.ListResumes(c)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400 got %d", limit, w.Code)
		}
	}
}

func TestDeleteResume_UnownedLeavesRowIntact(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	storage := newFakeStorage()
	h := NewResumeHandler(db, storage, "")

	resume := seedResume(t, db, 2, "theirs.pdf")

	req := httptest.NewRequest(http.MethodDelete, "/v1/resumes/1", nil)
	c, w := newTestContext(t, 1, req)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(resume.ID)}}

	h.DeleteResume(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}

	var count int64
	if err := db.Model(&database.Resume{}).Where("id = ?", resume.ID).Count(&count).Error; err != nil {
		t.Fatalf("count resumes: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected row to survive, count=%d", count)
	}
	if len(storage.deleted) != 0 {
		t.Fatalf("expected no object deletes, got %v", storage.deleted)
	}
}

func TestDeleteResume_RemovesAnalysesAndObject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	storage := newFakeStorage()
	h := NewResumeHandler(db, storage, "")

	resume := seedResume(t, db, 1, "mine.pdf")
	analysis := database.Analysis{UserID: 1, ResumeID: resume.ID, Type: database.AnalysisTypeComprehensive, Status: database.AnalysisStatusPending}
	if err := db.Create(&analysis).Error; err != nil {
		t.Fatalf("seed analysis: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/resumes/1", nil)
	c, w := newTestContext(t, 1, req)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(resume.ID)}}

	h.DeleteResume(c)
	c.Writer.WriteHeaderNow()

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d body=%s", w.Code, w.Body.String())
	}

	var count int64
	if err := db.Model(&database.Analysis{}).Where("resume_id = ?", resume.ID).Count(&count).Error; err != nil {
		t.Fatalf("count analyses: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected analyses removed, count=%d", count)
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != resume.FileURL {
		t.Fatalf("expected object %q deleted, got %v", resume.FileURL, storage.deleted)
	}
}

func TestUploadResume_RejectsNonPDF(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewResumeHandler(db, newFakeStorage(), "")

	body, contentType := newMultipartUpload(t, "resume.pdf", []byte("plain text, not a pdf"))
	req := httptest.NewRequest(http.MethodPost, "/v1/resumes", body)
	req.Header.Set("Content-Type", contentType)
	c, w := newTestContext(t, 1, req)

	h.UploadResume(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}

	var count int64
	if err := db.Model(&database.Resume{}).Count(&count).Error; err != nil {
		t.Fatalf("count resumes: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows, count=%d", count)
	}
}

func TestGetDownloadLink_ReturnsPresignedURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewResumeHandler(db, newFakeStorage(), "")

	resume := seedResume(t, db, 1, "mine.pdf")

	req := httptest.NewRequest(http.MethodGet, "/v1/resumes/1/download", nil)
	c, w := newTestContext(t, 1, req)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(resume.ID)}}

	h.GetDownloadLink(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp map[string]string
	decodeJSON(t, w, &resp)
	if resp["url"] != "https://example.invalid/"+resume.FileURL {
		t.Fatalf("unexpected url %q", resp["url"])
	}
}
