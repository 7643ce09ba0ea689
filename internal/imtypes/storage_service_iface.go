// internal/imtypes/storage_service_iface.go
package imtypes

import (
	"context"
	"io"
)

// StorageService 定义了文件存储操作的接口。
// It lives in imtypes so handlers and storage do not import each other.
type StorageService interface {
	// UploadFile stores the reader's content and returns where it can be fetched.
	UploadFile(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*FileInfo, error)
	// DeleteFile removes a previously uploaded file by its Path.
	DeleteFile(ctx context.Context, path string) error
}
