package objstore

import (
	"net/http"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/minio/minio-go/v7"
)

var codeKinds = map[string]provider.Kind{
	"NoSuchKey":            provider.KindEntryNotFound,
	"NoSuchBucket":         provider.KindEntryNotFound,
	"NoSuchUpload":         provider.KindEntryNotFound,
	"AccessDenied":         provider.KindPermissionDenied,
	"AllAccessDisabled":    provider.KindPermissionDenied,
	"AccountProblem":       provider.KindPermissionDenied,
	"ExpiredToken":         provider.KindAuthExpired,
	"TokenRefreshRequired": provider.KindAuthExpired,
	"QuotaExceeded":        provider.KindQuotaExceeded,
	"EntityTooLarge":       provider.KindQuotaExceeded,
	"XMinioStorageFull":    provider.KindQuotaExceeded,
	"PreconditionFailed":   provider.KindConflict,
	"OperationAborted":     provider.KindConflict,
	"SlowDown":             provider.KindTransientNetwork,
	"ServiceUnavailable":   provider.KindTransientNetwork,
	"InternalError":        provider.KindTransientNetwork,
	"RequestTimeout":       provider.KindTransientNetwork,
}

// translate maps an S3 error response onto the provider error kinds.
// Errors that are not S3 responses are returned as they are.
func translate(op string, addr types.Address, err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" && resp.StatusCode == 0 {
		return err
	}
	if kind, ok := codeKinds[resp.Code]; ok {
		return provider.NewError(kind, op, addr, err)
	}

	var kind provider.Kind
	switch code := resp.StatusCode; {
	case code == http.StatusNotFound:
		kind = provider.KindEntryNotFound
	case code == http.StatusForbidden:
		kind = provider.KindPermissionDenied
	case code == http.StatusUnauthorized:
		kind = provider.KindAuthExpired
	case code == http.StatusConflict, code == http.StatusPreconditionFailed:
		kind = provider.KindConflict
	default:
		kind = provider.KindTransientNetwork
	}
	return provider.NewError(kind, op, addr, err)
}

func notFound(err error) bool {
	return provider.KindOf(translate("", types.Address{}, err)) == provider.KindEntryNotFound
}
