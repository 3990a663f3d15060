// internal/document/pipeline.go
package document

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"policy-monitor/internal/common/config"
	apperrors "policy-monitor/internal/common/errors"
	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/common/metrics"
	"policy-monitor/internal/models"
)

// File is one uploaded document as received from the multipart form.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     []byte
}

// Failure reports one file that could not be stored. The rest of the
// batch still goes through; the caller surfaces these to the client.
type Failure struct {
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// ObjectStore is the storage surface the pipeline writes to.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Pipeline validates and stores submitted documents. Uploads run
// sequentially; a failed file is recorded and skipped, never aborting
// the batch.
type Pipeline struct {
	store   ObjectStore
	uploads config.UploadConfig
	logger  logger.Logger
}

func NewPipeline(store ObjectStore, uploads config.UploadConfig, log logger.Logger) *Pipeline {
	return &Pipeline{store: store, uploads: uploads, logger: log}
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeFileName strips path separators and anything else that has no
// business in an object key.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeKeyChars.ReplaceAllString(name, "_")
	if name == "" {
		name = "document"
	}
	return name
}

// objectKey namespaces the file under its submission so concurrent
// uploads for different submissions never collide.
func objectKey(submissionID, fileName string, at time.Time) string {
	return fmt.Sprintf("%s/%d_%s", submissionID, at.UnixMilli(), sanitizeFileName(fileName))
}

// Process stores each file and returns the resulting attachments plus
// the per-file failures. Only an empty upload config is a hard error;
// individual file problems are soft.
func (p *Pipeline) Process(ctx context.Context, sub *models.Submission, files []File) ([]models.Attachment, []Failure, error) {
	var attachments []models.Attachment
	var failures []Failure

	for _, f := range files {
		if reason := p.validate(f); reason != "" {
			metrics.DocumentUploads.WithLabelValues("rejected").Inc()
			failures = append(failures, Failure{FileName: f.Name, Reason: reason})
			continue
		}

		key := objectKey(sub.ID, f.Name, time.Now())
		url, err := p.store.Upload(ctx, key, f.ContentType, f.Content)
		if err != nil {
			metrics.DocumentUploads.WithLabelValues("failed").Inc()
			p.logger.WithError(err).Error("document upload failed", map[string]interface{}{
				"submission": sub.ID,
				"file":       f.Name,
			})
			failures = append(failures, Failure{FileName: f.Name, Reason: "storage upload failed"})
			continue
		}

		metrics.DocumentUploads.WithLabelValues("stored").Inc()
		attachments = append(attachments, models.Attachment{
			FileName: f.Name,
			FilePath: key,
			FileURL:  url,
			FileSize: f.Size,
			MimeType: f.ContentType,
		})
	}

	if len(files) > 0 && len(attachments) == 0 {
		// Every file failed; treat the batch itself as failed.
		return nil, failures, apperrors.NewStorageError("store documents",
			fmt.Errorf("all %d files rejected or failed", len(files)))
	}
	return attachments, failures, nil
}

func (p *Pipeline) validate(f File) string {
	if p.uploads.MaxFileSize > 0 && f.Size > p.uploads.MaxFileSize {
		return fmt.Sprintf("file exceeds %d byte limit", p.uploads.MaxFileSize)
	}
	if !p.uploads.Allowed(f.ContentType) {
		return fmt.Sprintf("unsupported content type %q", f.ContentType)
	}
	return ""
}
