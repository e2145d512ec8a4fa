package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fyerfyer/issue-report-splitter/internal/archive"
	"github.com/fyerfyer/issue-report-splitter/internal/cache"
	"github.com/fyerfyer/issue-report-splitter/internal/database"
	"github.com/fyerfyer/issue-report-splitter/internal/document"
	"github.com/fyerfyer/issue-report-splitter/internal/issue"
	"github.com/fyerfyer/issue-report-splitter/internal/models"
	"github.com/fyerfyer/issue-report-splitter/internal/repository"
	"github.com/fyerfyer/issue-report-splitter/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sampleReport 四页的纯文本报告，第一页为封面
var sampleReport = strings.Join([]string{
	"BIM 360 Issue Report\nProject Tower",
	"ID 000216\nLocation Tower A\nPriority High",
	"ID 000216\ncontinued",
	"ID 000217\nLocation Lobby",
}, document.PageSeparator)

type testEnv struct {
	service *SplitService
	storage *storage.LocalStorage
	pages   *cache.PageCache
}

// setupTestDB 创建内存数据库并替换全局连接
func setupTestDB(t *testing.T) *gorm.DB {
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")
	require.NoError(t, database.Migrate(db), "Failed to run migrations")

	originalDB := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = originalDB
	})
	return db
}

// setupSplitTestEnv 设置拆分服务的测试环境
func setupSplitTestEnv(t *testing.T, opts ...SplitOption) *testEnv {
	db := setupTestDB(t)

	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	mem, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)
	pc := cache.NewPageCache(mem, time.Minute)

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(io.Discard)

	opts = append([]SplitOption{WithLogger(logger), WithPageCache(pc)}, opts...)
	srv := NewSplitService(store, repository.NewReportRepositoryWithDB(db), opts...)

	return &testEnv{service: srv, storage: store, pages: pc}
}

// readArchive 读取压缩包全部条目
func readArchive(t *testing.T, env *testEnv, archiveID string) map[string]string {
	rc, name, err := env.service.OpenArchive(context.Background(), archiveID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, "_issues.zip"))
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := make(map[string]string)
	for _, f := range zr.File {
		r, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(r)
		require.NoError(t, err)
		r.Close()
		files[f.Name] = string(b)
	}
	return files
}

func TestParseMissingPolicy(t *testing.T) {
	p, err := ParseMissingPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MissingSkip, p)

	p, err = ParseMissingPolicy(" Placeholder ")
	require.NoError(t, err)
	assert.Equal(t, MissingPlaceholder, p)

	_, err = ParseMissingPolicy("ignore")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestSplitService_UploadAndAnalyze(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	report, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "Tower A.txt")
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusAnalyzed, report.Status)
	assert.Equal(t, 4, report.PageCount)
	assert.Equal(t, 2, report.IssueCount)
	assert.Equal(t, string(document.PlainText), report.FileType)
	assert.NotNil(t, report.AnalyzedAt)

	got, issues, err := env.service.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)
	require.Len(t, issues, 2)
	assert.Equal(t, issue.Boundary{ID: "216", Start: 1, End: 3}, issues[0].Boundary())
	assert.Equal(t, issue.Boundary{ID: "217", Start: 3, End: 4}, issues[1].Boundary())
	assert.Equal(t, "High", issues[0].Metadata().Fields["Priority"])
	assert.Equal(t, "Lobby", issues[1].Metadata().Fields["Location"])

	// 页面文本按内容校验和缓存
	cached, found, err := env.pages.Get(report.Checksum)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, cached, 4)

	fields, err := env.service.AvailableFields(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{issue.FieldIssueID, "Location", "Priority"}, fields)
}

func TestSplitService_UsesPageCache(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	report, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "first.txt")
	require.NoError(t, err)

	// 缓存内容与文件不一致时以缓存为准
	require.NoError(t, env.pages.Set(report.Checksum, []issue.PageText{
		{Index: 0, Text: "Issue Report\nID 9"},
	}))

	again, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "second.txt")
	require.NoError(t, err)
	assert.Equal(t, report.Checksum, again.Checksum)
	assert.Equal(t, 1, again.IssueCount)
	assert.Equal(t, 1, again.PageCount)
}

func TestSplitService_UploadErrors(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Upload(ctx, strings.NewReader("x"), "report.docx")
	assert.ErrorIs(t, err, document.ErrUnsupportedType)

	// 报告标识不在前三页
	text := strings.Join([]string{"a", "b", "c", "Issue Report\nID 1"}, document.PageSeparator)
	report, err := env.service.Upload(ctx, strings.NewReader(text), "other.txt")
	assert.ErrorIs(t, err, document.ErrNotIssueReport)
	require.NotNil(t, report)
	assert.Equal(t, models.ReportStatusFailed, report.Status)

	saved, _, err := env.service.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, saved.Status)
	assert.Contains(t, saved.Error, "not an issue report")
}

func TestSplitService_ReportMarkerDisabled(t *testing.T) {
	env := setupSplitTestEnv(t, WithReportMarker("", 0))

	text := strings.Join([]string{"a", "b", "c", "ID 1"}, document.PageSeparator)
	report, err := env.service.Upload(context.Background(), strings.NewReader(text), "plain.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, report.IssueCount)
}

func TestSplitService_EmptyReport(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	report, err := env.service.Upload(ctx, strings.NewReader("Issue Report\fno markers here"), "empty.txt")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusEmpty, report.Status)
	assert.Zero(t, report.IssueCount)

	_, err = env.service.BuildArchive(ctx, report.ID, ArchiveRequest{})
	assert.ErrorIs(t, err, ErrNoIssues)
}

func TestSplitService_BuildArchive_Skip(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	report, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "Tower A.txt")
	require.NoError(t, err)

	result, err := env.service.BuildArchive(ctx, report.ID, ArchiveRequest{
		Pattern: "Issue_{Issue ID}_{Priority}",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "Issue_216_High.txt", result.Entries[0].Filename)
	assert.Equal(t, 2, result.Entries[0].StartPage)
	assert.Equal(t, 3, result.Entries[0].EndPage)
	assert.Empty(t, result.Entries[1].Filename)
	assert.Contains(t, result.Entries[1].Error, `missing field "Priority"`)
	assert.Equal(t, "TowerA_issues.zip", result.Archive.Name)

	files := readArchive(t, env, result.Archive.ID)
	assert.Len(t, files, 2)
	assert.Equal(t, "ID 000216\nLocation Tower A\nPriority High\fID 000216\ncontinued", files["Issue_216_High.txt"])
	assert.Contains(t, files[archive.ManifestName], "Issue_216_High.txt")
	assert.Contains(t, files[archive.ManifestName], "missing field")

	saved, _, err := env.service.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusArchived, saved.Status)
	assert.Equal(t, result.Archive.ID, saved.ArchiveID)
	assert.Equal(t, "Issue_{Issue ID}_{Priority}", saved.Pattern)
}

func TestSplitService_BuildArchive_Placeholder(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	report, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "r.txt")
	require.NoError(t, err)

	result, err := env.service.BuildArchive(ctx, report.ID, ArchiveRequest{
		Pattern:       "Issue_{Issue ID}_{Priority}",
		MissingPolicy: MissingPlaceholder,
		Placeholder:   "N/A",
	})
	require.NoError(t, err)
	assert.Zero(t, result.Skipped)
	assert.Equal(t, "Issue_217_NA.txt", result.Entries[1].Filename)

	files := readArchive(t, env, result.Archive.ID)
	assert.Contains(t, files, "Issue_217_NA.txt")
	assert.Equal(t, "ID 000217\nLocation Lobby", files["Issue_217_NA.txt"])
}

func TestSplitService_BuildArchive_Fail(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	report, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "r.txt")
	require.NoError(t, err)

	_, err = env.service.BuildArchive(ctx, report.ID, ArchiveRequest{
		Pattern:       "{Priority}",
		MissingPolicy: MissingFail,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, issue.ErrMissingField)

	var missing *issue.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "217", missing.IssueID)
	assert.Equal(t, "Priority", missing.Field)

	saved, _, err := env.service.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Empty(t, saved.ArchiveID, "Failed build should not record an archive")
}

func TestSplitService_BuildArchive_Fields(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	report, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "r.txt")
	require.NoError(t, err)

	result, err := env.service.BuildArchive(ctx, report.ID, ArchiveRequest{
		Fields:    []string{issue.FieldIssueID, "Location"},
		Separator: "-",
	})
	require.NoError(t, err)
	assert.Equal(t, "{Issue ID}-{Location}", result.Pattern)
	assert.Equal(t, "216-TowerA.txt", result.Entries[0].Filename)
	assert.Equal(t, "217-Lobby.txt", result.Entries[1].Filename)

	// 默认模板
	result, err = env.service.BuildArchive(ctx, report.ID, ArchiveRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Issue_216.txt", result.Entries[0].Filename)
}

func TestSplitService_BuildArchive_ReplacesPreviousArchive(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	report, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "r.txt")
	require.NoError(t, err)

	first, err := env.service.BuildArchive(ctx, report.ID, ArchiveRequest{})
	require.NoError(t, err)
	second, err := env.service.BuildArchive(ctx, report.ID, ArchiveRequest{Pattern: "{Issue ID}"})
	require.NoError(t, err)

	exists, err := env.storage.Exists(first.Archive.ID)
	require.NoError(t, err)
	assert.False(t, exists, "Previous archive should be removed")

	exists, err = env.storage.Exists(second.Archive.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	_, _, err = env.service.OpenArchive(ctx, first.Archive.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rc, name, err := env.service.OpenArchive(ctx, second.Archive.ID)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "r_issues.zip", name)
}

func TestSplitService_BuildArchive_EmptyNameFallsBack(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	text := "Issue Report\nID 42\nLocation ***"
	report, err := env.service.Upload(ctx, strings.NewReader(text), "r.txt")
	require.NoError(t, err)

	result, err := env.service.BuildArchive(ctx, report.ID, ArchiveRequest{Pattern: "{Location}"})
	require.NoError(t, err)
	assert.Equal(t, "Issue_42.txt", result.Entries[0].Filename)
}

func TestSplitService_BuildArchive_Errors(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	report, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "r.txt")
	require.NoError(t, err)

	_, err = env.service.BuildArchive(ctx, report.ID, ArchiveRequest{Pattern: "Issue_{Issue ID"})
	var syn *issue.SyntaxError
	assert.ErrorAs(t, err, &syn)

	_, err = env.service.BuildArchive(ctx, report.ID, ArchiveRequest{MissingPolicy: "ignore"})
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = env.service.BuildArchive(ctx, "missing", ArchiveRequest{})
	assert.ErrorIs(t, err, models.ErrReportNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = env.service.BuildArchive(cancelled, report.ID, ArchiveRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitService_ListAndDelete(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	first, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "a.txt")
	require.NoError(t, err)
	_, err = env.service.Upload(ctx, strings.NewReader("Issue Report\fID 5"), "b.txt")
	require.NoError(t, err)

	reports, total, err := env.service.ListReports(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, reports, 2)

	result, err := env.service.BuildArchive(ctx, first.ID, ArchiveRequest{})
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteReport(ctx, first.ID))

	_, _, err = env.service.GetReport(ctx, first.ID)
	assert.ErrorIs(t, err, models.ErrReportNotFound)

	for _, id := range []string{first.ID, result.Archive.ID} {
		exists, err := env.storage.Exists(id)
		require.NoError(t, err)
		assert.False(t, exists)
	}

	_, found, _ := env.pages.Get(first.Checksum)
	assert.False(t, found)

	assert.ErrorIs(t, env.service.DeleteReport(ctx, first.ID), models.ErrReportNotFound)
}

func TestSplitService_DeleteKeepsSharedPageCache(t *testing.T) {
	env := setupSplitTestEnv(t)
	ctx := context.Background()

	first, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "a.txt")
	require.NoError(t, err)
	second, err := env.service.Upload(ctx, strings.NewReader(sampleReport), "b.txt")
	require.NoError(t, err)
	require.Equal(t, first.Checksum, second.Checksum)

	require.NoError(t, env.service.DeleteReport(ctx, first.ID))
	_, found, err := env.pages.Get(second.Checksum)
	require.NoError(t, err)
	assert.True(t, found, "Page text is still used by another report")

	require.NoError(t, env.service.DeleteReport(ctx, second.ID))
	_, found, _ = env.pages.Get(second.Checksum)
	assert.False(t, found)
}

func TestSplitService_ManifestUsesConfiguredLabels(t *testing.T) {
	env := setupSplitTestEnv(t, WithFieldLabels("Zone", "Priority"))
	ctx := context.Background()

	text := "Issue Report\fID 7\nZone\nB2\nPriority Low\nLocation Roof"
	report, err := env.service.Upload(ctx, strings.NewReader(text), "z.txt")
	require.NoError(t, err)

	result, err := env.service.BuildArchive(ctx, report.ID, ArchiveRequest{Pattern: "{Issue ID}_{Zone}"})
	require.NoError(t, err)
	assert.Equal(t, "7_B2.txt", result.Entries[0].Filename)

	files := readArchive(t, env, result.Archive.ID)
	manifest, ok := files[archive.ManifestName]
	require.True(t, ok)

	lines := strings.Split(strings.TrimSpace(manifest), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Filename,Start Page,End Page,Issue ID,Zone,Priority,Error", strings.TrimSpace(lines[0]))
	assert.Equal(t, "7_B2.txt,2,2,7,B2,Low,", strings.TrimSpace(lines[1]))
}
