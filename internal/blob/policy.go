package blob

import (
	"fmt"

	"github.com/google/uuid"

	"facilitycore/pkg/domain"
)

// MaxAttachmentBytes caps individual attachment uploads at 10 MiB.
const MaxAttachmentBytes = 10 << 20

// allowedContentTypes lists the accepted attachment MIME types: photos of
// the problem plus PDF documents (quotes, invoices, manuals).
var allowedContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/gif":       {},
	"image/webp":      {},
	"application/pdf": {},
}

// ValidateAttachment checks an upload against the content type allow-list
// and the size ceiling before any bytes reach the store.
func ValidateAttachment(contentType string, sizeBytes int64) error {
	if _, ok := allowedContentTypes[contentType]; !ok {
		return domain.AttachmentRejectedError{
			ContentType: contentType,
			SizeBytes:   sizeBytes,
			Reason:      "unsupported content type",
		}
	}
	if sizeBytes > MaxAttachmentBytes {
		return domain.AttachmentRejectedError{
			ContentType: contentType,
			SizeBytes:   sizeBytes,
			Reason:      fmt.Sprintf("exceeds %d byte limit", MaxAttachmentBytes),
		}
	}
	return nil
}

// AttachmentKey builds the storage key for a request attachment.
func AttachmentKey(requestID int64) string {
	return fmt.Sprintf("requests/%d/%s", requestID, uuid.NewString())
}
