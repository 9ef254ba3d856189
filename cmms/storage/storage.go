package storage

import (
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Delete(path string) error

	List(path string) ([]string, error)

	Exists(path string) (bool, error)

	Size(path string) (int64, error)

	Usage() (UsageStats, error)

	Location() string
}

func WorkOrderPath(workOrderId uuid.UUID) string {
	return filepath.Join("work_orders", workOrderId.String())
}

func AttachmentDir(workOrderId uuid.UUID) string {
	return filepath.Join(WorkOrderPath(workOrderId), "attachments")
}

func AttachmentPath(workOrderId, attachmentId uuid.UUID, filename string) string {
	return filepath.Join(AttachmentDir(workOrderId), attachmentId.String()+"_"+filename)
}
