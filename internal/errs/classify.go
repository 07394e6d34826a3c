package errs

import "errors"

// IsPermanentAuth reports whether err is an auth failure that refreshing
// cannot fix (revoked or invalid credential).
func IsPermanentAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Permanent
}

// IsTransient reports whether err is a temporary provider outage that should
// be retried on the next cycle rather than acted on.
func IsTransient(err error) bool {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return true
	}
	var ae *AuthError
	return errors.As(err, &ae) && !ae.Permanent
}

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
