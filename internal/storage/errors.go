package storage

import (
	"errors"
	"net/http"

	minio "github.com/minio/minio-go/v7"
)

// ArchiveError wraps a failed archive operation on one object.
type ArchiveError struct {
	Op         string
	Key        string
	Err        error
	StatusCode int
}

func (e *ArchiveError) Error() string {
	if e.Key != "" {
		return e.Op + " " + e.Key + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// Permanent reports whether retrying cannot help.
func (e *ArchiveError) Permanent() bool {
	return permanentStatus(e.StatusCode)
}

// IsAccessDenied reports whether the object store refused the credentials.
func IsAccessDenied(err error) bool {
	var aerr *ArchiveError
	return errors.As(err, &aerr) && aerr.StatusCode == http.StatusForbidden
}

func permanentStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusBadRequest
}

// objectStatus maps a MinIO error to an HTTP status; 0 means no status applies.
func objectStatus(err error) int {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		return resp.StatusCode
	}
	switch resp.Code {
	case "":
		return 0
	case "NoSuchKey", "NoSuchBucket":
		return http.StatusNotFound
	case "AccessDenied":
		return http.StatusForbidden
	case "InvalidArgument":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
