package capability

import (
	"fmt"
	"strings"
)

// ProtocolType is the family a provider speaks
type ProtocolType int

const (
	LocalFileSystem ProtocolType = iota
	WebDAV
	FTPSFTP
	CloudObjectStorage
	CloudStorageService
)

func (p ProtocolType) String() string {
	switch p {
	case LocalFileSystem:
		return "local"
	case WebDAV:
		return "webdav"
	case FTPSFTP:
		return "ftpsftp"
	case CloudObjectStorage:
		return "object_storage"
	case CloudStorageService:
		return "cloud_drive"
	default:
		return "unknown"
	}
}

// ParseProtocol is the inverse of ProtocolType.String
func ParseProtocol(s string) (ProtocolType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return LocalFileSystem, nil
	case "webdav":
		return WebDAV, nil
	case "ftpsftp", "ftp", "sftp":
		return FTPSFTP, nil
	case "object_storage", "s3":
		return CloudObjectStorage, nil
	case "cloud_drive":
		return CloudStorageService, nil
	}
	return LocalFileSystem, fmt.Errorf("unknown protocol %q", s)
}
