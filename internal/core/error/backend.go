package errx

import "net/http"

// WrapBackend maps a failed backend call to AppError. A non-2xx upstream
// status is kept as-is; transport failures (status 0) become 502.
func WrapBackend(err error, status int) error {
	if err == nil {
		return nil
	}
	if status == 0 {
		status = http.StatusBadGateway
	}
	return New(err, status, BackendErrorMessage)
}

// WrapDecode marks a backend reply that could not be decoded.
func WrapDecode(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, BackendDecodeMessage)
}
