package auth

import (
	"errors"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

func domainCode(err error) string {
	if err == nil {
		return ""
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "non_domain_error"
}
