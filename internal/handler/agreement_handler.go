package handler

import (
	"context"
	"net/http"

	"esign-workers/internal/common/errors"
	"esign-workers/internal/common/logger"
	sendpartnershipagreement "esign-workers/internal/workers/esign/send-partnership-agreement"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// AgreementSender runs one send. The worker handler and *Service both satisfy it.
type AgreementSender interface {
	Execute(ctx context.Context, input *sendpartnershipagreement.Input) (*sendpartnershipagreement.Output, error)
}

// AgreementHandler is the UI trigger for the partnership agreement send.
type AgreementHandler struct {
	sender AgreementSender
	log    logger.Logger
}

func NewAgreementHandler(sender AgreementSender, log logger.Logger) *AgreementHandler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &AgreementHandler{sender: sender, log: log}
}

// Send accepts the same fields as the process variables. The outcome is in the
// body's status field; only a missing or malformed trigger is a 4xx.
func (h *AgreementHandler) Send(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
		writeError(c, errors.NewValidationError("request body must be a JSON object: "+err.Error()))
		return
	}

	input, err := sendpartnershipagreement.InputFromMap(raw)
	if err != nil {
		writeError(c, err)
		return
	}

	output, err := h.sender.Execute(c.Request.Context(), input)
	if err != nil {
		h.log.Warn("Agreement send rejected", map[string]interface{}{
			"companyId": input.CompanyID,
			"error":     err.Error(),
		})
		writeError(c, err)
		return
	}

	h.log.Info("Agreement send finished", map[string]interface{}{
		"companyId":     input.CompanyID,
		"status":        output.Status,
		"scenario":      string(output.Scenario),
		"correlationId": output.CorrelationID,
	})
	c.JSON(http.StatusOK, output)
}
