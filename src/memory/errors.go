package memory

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrPathTraversal     = errors.New("invalid path")
	ErrDestinationExists = errors.New("destination already exists")
	ErrRootForbidden     = errors.New("operation not allowed on the memory root")
	ErrInvalidCommand    = errors.New("invalid command")
)

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrPathTraversal):
		return "invalid_path"
	case errors.Is(err, ErrDestinationExists):
		return "destination_exists"
	case errors.Is(err, ErrRootForbidden):
		return "root_forbidden"
	case errors.Is(err, ErrInvalidCommand):
		return "invalid_command"
	default:
		return "error"
	}
}
