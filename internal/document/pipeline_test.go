package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-monitor/internal/common/config"
	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/models"
)

type fakeStore struct {
	uploads map[string]string // key -> content type
	failOn  string            // file name substring that fails
}

func (f *fakeStore) Upload(_ context.Context, key, contentType string, _ []byte) (string, error) {
	if f.failOn != "" && strings.Contains(key, f.failOn) {
		return "", errors.New("s3 unavailable")
	}
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[key] = contentType
	return "https://docs.example/" + key, nil
}

func testUploads() config.UploadConfig {
	return config.UploadConfig{
		MaxFileSize:      10 << 20,
		AllowedMimeTypes: []string{"image/jpeg", "image/png", "application/pdf"},
	}
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "id_scan.pdf", sanitizeFileName("id scan.pdf"))
	assert.Equal(t, "passwd", sanitizeFileName("../../etc/passwd"))
	assert.Equal(t, "form.png", sanitizeFileName(`C:\uploads\form.png`))
	assert.Equal(t, "document", sanitizeFileName("   "))
}

func TestProcess_StoresFilesUnderSubmissionKey(t *testing.T) {
	store := &fakeStore{}
	p := NewPipeline(store, testUploads(), logger.NewNoOpLogger())
	sub := &models.Submission{ID: "sub-1"}

	attachments, failures, err := p.Process(context.Background(), sub, []File{
		{Name: "id scan.pdf", ContentType: "application/pdf", Size: 1024, Content: []byte("%PDF")},
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, attachments, 1)
	assert.Equal(t, "id scan.pdf", attachments[0].FileName)
	assert.True(t, strings.HasPrefix(attachments[0].FilePath, "sub-1/"))
	assert.True(t, strings.HasSuffix(attachments[0].FilePath, "_id_scan.pdf"))
	assert.Equal(t, "application/pdf", attachments[0].MimeType)
	assert.NotEmpty(t, attachments[0].FileURL)
}

func TestProcess_RejectsOversizeAndWrongType(t *testing.T) {
	p := NewPipeline(&fakeStore{}, testUploads(), logger.NewNoOpLogger())
	sub := &models.Submission{ID: "sub-1"}

	attachments, failures, err := p.Process(context.Background(), sub, []File{
		{Name: "ok.png", ContentType: "image/png", Size: 512, Content: []byte("png")},
		{Name: "huge.pdf", ContentType: "application/pdf", Size: 11 << 20},
		{Name: "notes.txt", ContentType: "text/plain", Size: 16},
	})
	require.NoError(t, err)
	assert.Len(t, attachments, 1)
	require.Len(t, failures, 2)
	assert.Equal(t, "huge.pdf", failures[0].FileName)
	assert.Equal(t, "notes.txt", failures[1].FileName)
}

func TestProcess_StorageFailureIsReportedNotFatal(t *testing.T) {
	store := &fakeStore{failOn: "broken"}
	p := NewPipeline(store, testUploads(), logger.NewNoOpLogger())
	sub := &models.Submission{ID: "sub-1"}

	attachments, failures, err := p.Process(context.Background(), sub, []File{
		{Name: "broken.png", ContentType: "image/png", Size: 64, Content: []byte("x")},
		{Name: "fine.png", ContentType: "image/png", Size: 64, Content: []byte("y")},
	})
	require.NoError(t, err)
	assert.Len(t, attachments, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, "broken.png", failures[0].FileName)
}

func TestProcess_AllFilesFailedIsAnError(t *testing.T) {
	store := &fakeStore{failOn: "sub-1"}
	p := NewPipeline(store, testUploads(), logger.NewNoOpLogger())
	sub := &models.Submission{ID: "sub-1"}

	_, failures, err := p.Process(context.Background(), sub, []File{
		{Name: "a.png", ContentType: "image/png", Size: 64, Content: []byte("x")},
	})
	assert.Error(t, err)
	assert.Len(t, failures, 1)
}

func TestPDFSummary_RendersMedicalBlockForNonGAE(t *testing.T) {
	g := NewPDFSummary()
	sub := &models.Submission{
		SerialNumber:  "AZ-0001",
		ClientName:    "Ana Cruz",
		ClientEmail:   "ana.cruz@example.com",
		ModeOfPayment: models.ModeQuarterly,
		PolicyDate:    "2024-03-01",
		FormType:      FormTypeNonGAE,
		FormData: map[string]interface{}{
			"dob":        "1990-05-04",
			"gender":     "F",
			"occupation": "Engineer",
			"medical": map[string]interface{}{
				"height":       "165cm",
				"weight":       "60kg",
				"diagnosed":    "No",
				"hospitalized": "No",
				"smoker":       "No",
				"alcohol":      "Occasional",
			},
		},
	}

	out, err := g.Render(sub)
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestPDFSummary_GAESkipsMedicalBlock(t *testing.T) {
	g := NewPDFSummary()
	sub := &models.Submission{
		SerialNumber: "AZ-0002",
		ClientName:   "Ben Tan",
		FormType:     FormTypeGAE,
	}

	out, err := g.Render(sub)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}
