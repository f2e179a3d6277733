package failure

import (
	"net/http"
)

var kindStatus = map[Kind]int{
	KindNetwork:      http.StatusBadGateway,
	KindAuth:         http.StatusUnauthorized,
	KindPermission:   http.StatusForbidden,
	KindToolNotFound: http.StatusNotFound,
	KindValidation:   http.StatusBadRequest,
	KindRateLimit:    http.StatusTooManyRequests,
	KindServerError:  http.StatusBadGateway,
}

// HTTPStatus is the status a route handler should answer with for d.
// A mapped upstream status is echoed; otherwise the kind decides.
func HTTPStatus(d *Descriptor) int {
	if d == nil {
		return http.StatusInternalServerError
	}
	if _, ok := statusRules[d.StatusCode]; ok {
		return d.StatusCode
	}
	if d.Kind == KindNetwork && d.cause != nil && transportFault(d.cause) == TransportTimeout {
		return http.StatusGatewayTimeout
	}
	if s, ok := kindStatus[d.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}
