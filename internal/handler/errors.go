package handler

import (
	"net/http"

	"esign-workers/internal/common/errors"

	"github.com/gin-gonic/gin"
)

// statusFor maps an error code to the HTTP status the API answers with.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeRecordIDMissing, errors.ErrCodeValidationFailed, errors.ErrCodeInputParsing:
		return http.StatusBadRequest
	case errors.ErrCodeDocusignAuthFailed:
		return http.StatusUnauthorized
	case errors.ErrCodeDocusignPermissionDenied, errors.ErrCodeDocusignConsentRequired:
		return http.StatusForbidden
	case errors.ErrCodeDocusignAccountNotFound, errors.ErrCodeNoDocusignAccounts, errors.ErrCodeTemplateNotFound:
		return http.StatusNotFound
	case errors.ErrCodeDocusignRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeConfiguration, errors.ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeError(c *gin.Context, err error) {
	stdErr := errors.Normalize(err)
	body := gin.H{
		"code":    string(stdErr.Code),
		"message": stdErr.Describe(),
	}
	if consent, ok := stdErr.Metadata["consentUrl"]; ok {
		body["consentUrl"] = consent
	}
	c.JSON(statusFor(stdErr.Code), body)
}
