// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeConfiguration    ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeRecordIDMissing  ErrorCode = "RECORD_ID_MISSING"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInputParsing     ErrorCode = "INPUT_PARSING_FAILED"

	ErrCodeCRMAPI ErrorCode = "CRM_API_ERROR"

	ErrCodeDocusignAuthFailed       ErrorCode = "DOCUSIGN_AUTH_FAILED"
	ErrCodeDocusignConsentRequired  ErrorCode = "DOCUSIGN_CONSENT_REQUIRED"
	ErrCodeNoDocusignAccounts       ErrorCode = "NO_DOCUSIGN_ACCOUNTS"
	ErrCodeDocusignPermissionDenied ErrorCode = "DOCUSIGN_PERMISSION_DENIED"
	ErrCodeDocusignAccountNotFound  ErrorCode = "DOCUSIGN_ACCOUNT_NOT_FOUND"
	ErrCodeDocusignRateLimited      ErrorCode = "DOCUSIGN_RATE_LIMITED"
	ErrCodeDocusignAPI              ErrorCode = "DOCUSIGN_API_ERROR"

	ErrCodeTemplateNotFound         ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeEnvelopeSubmissionFailed ErrorCode = "ENVELOPE_SUBMISSION_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata sets a metadata key and returns the same error for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Describe renders the message and details in one line for humans.
func (e *StandardError) Describe() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewConfigurationError is fatal: a bad key or missing mapping never becomes valid on retry.
func NewConfigurationError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfiguration,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordIDMissingError is returned before any network call when the trigger has no record id.
func NewRecordIDMissingError() *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordIDMissing,
		Message:   "Company ID is required",
		Details:   "companyId was empty or missing in the trigger input",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCRMError wraps a failed CRM call.
func NewCRMError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMAPI,
		Message:   fmt.Sprintf("CRM %s failed", operation),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocusignAuthError is terminal for the invocation.
func NewDocusignAuthError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocusignAuthFailed,
		Message:   "DocuSign authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewConsentRequiredError(consentURL string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocusignConsentRequired,
		Message:   "DocuSign JWT consent is required",
		Details:   fmt.Sprintf("Visit: %s", consentURL),
		Retryable: false,
		Metadata:  map[string]interface{}{"consentUrl": consentURL},
		Timestamp: time.Now().UTC(),
	}
}

func NewNoAccountsError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNoDocusignAccounts,
		Message:   "No DocuSign accounts found",
		Details:   "identity endpoint returned an empty account list",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(templateKey string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   fmt.Sprintf("No DocuSign template found for partnership level: %s", templateKey),
		Details:   fmt.Sprintf("templateKey: %s", templateKey),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEnvelopeSubmissionError is never retryable: a duplicate send reaches a real recipient.
func NewEnvelopeSubmissionError(docusignCode, message string, status int) *StandardError {
	return &StandardError{
		Code:      ErrCodeEnvelopeSubmissionFailed,
		Message:   fmt.Sprintf("Failed to create envelope: %s - %s", docusignCode, message),
		Details:   fmt.Sprintf("status: %d", status),
		Retryable: false,
		Metadata: map[string]interface{}{
			"docusignErrorCode": docusignCode,
			"httpStatus":        status,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewDocusignStatusError maps a failed REST call to a code by HTTP status.
func NewDocusignStatusError(operation string, status int, details string) *StandardError {
	code, message, retryable := ErrCodeDocusignAPI, fmt.Sprintf("DocuSign %s failed", operation), false
	switch {
	case status == 401:
		code, message = ErrCodeDocusignAuthFailed, "DocuSign authentication expired"
	case status == 403:
		code, message = ErrCodeDocusignPermissionDenied, "Access denied to this DocuSign account"
	case status == 404:
		code, message = ErrCodeDocusignAccountNotFound, "DocuSign account or endpoint not found"
	case status == 429:
		code, message, retryable = ErrCodeDocusignRateLimited, "DocuSign API rate limit exceeded", true
	case status >= 500 || status == 0:
		retryable = true
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Metadata:  map[string]interface{}{"httpStatus": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the codes caught by boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeConfiguration:            "CONFIGURATION_ERROR",
	ErrCodeRecordIDMissing:          "RECORD_ID_MISSING",
	ErrCodeValidationFailed:         "VALIDATION_FAILED",
	ErrCodeInputParsing:             "VALIDATION_FAILED",
	ErrCodeCRMAPI:                   "CRM_API_ERROR",
	ErrCodeDocusignAuthFailed:       "DOCUSIGN_AUTH_FAILED",
	ErrCodeDocusignConsentRequired:  "DOCUSIGN_CONSENT_REQUIRED",
	ErrCodeNoDocusignAccounts:       "NO_DOCUSIGN_ACCOUNTS",
	ErrCodeDocusignPermissionDenied: "DOCUSIGN_AUTH_FAILED",
	ErrCodeDocusignAccountNotFound:  "NO_DOCUSIGN_ACCOUNTS",
	ErrCodeTemplateNotFound:         "TEMPLATE_NOT_FOUND",
	ErrCodeEnvelopeSubmissionFailed: "ENVELOPE_SUBMISSION_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns how many job retries Zeebe should get for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCRMAPI,
		ErrCodeExternalService,
		ErrCodeDocusignRateLimited,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeTimeout:
		return 2

	default:
		// auth, configuration, template and envelope errors are terminal
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard unwraps err to a *StandardError if one is in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the error code of err, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Normalize always returns a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "DOCUSIGN") || strings.Contains(codeStr, "ACCOUNTS"):
		return "DOCUSIGN"
	case strings.Contains(codeStr, "TEMPLATE") || strings.Contains(codeStr, "ENVELOPE"):
		return "ENVELOPE"
	case strings.HasPrefix(codeStr, "CRM"):
		return "CRM"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "CONFIGURATION"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "MISSING") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
