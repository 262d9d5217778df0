package sendpartnershipagreement

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

const (
	assocTaskToCompany = "task_to_company"
	assocTaskToContact = "task_to_contact"
)

type taskContent struct {
	Subject  string
	Body     string
	Priority string
}

func (inv *invocation) taskContent() taskContent {
	c := inv.companyName
	footer := fmt.Sprintf("\n\nCompany ID: %s\nCompany Link: %s", inv.input.CompanyID, inv.companyURL)

	switch inv.scenario {
	case ScenarioAgreementSent:
		return taskContent{
			Subject:  fmt.Sprintf("DocuSign Agreement Sent for %s", c),
			Body:     fmt.Sprintf("%s Partnership Agreement was sent to %s for %s.", inv.levelOr("Partnership"), inv.signerOr("the designated signer"), c) + footer,
			Priority: "MEDIUM",
		}
	case ScenarioMissingProperties:
		return taskContent{
			Subject: fmt.Sprintf("ALERT: DocuSign Cannot Be Sent for %s - Missing Fields", c),
			Body: fmt.Sprintf("DocuSign cannot be sent for %s because the following required properties are missing:\n\n%s\n\nPlease complete these fields before attempting to send DocuSign again.",
				c, strings.Join(inv.missing, ", ")) + footer,
			Priority: "HIGH",
		}
	case ScenarioConsentRequired:
		return taskContent{
			Subject:  fmt.Sprintf("ALERT: DocuSign Consent Required for %s", c),
			Body:     fmt.Sprintf("DocuSign consent must be granted before the agreement for %s can be sent.\n\nGrant consent here: %s", c, inv.consentURL) + footer,
			Priority: "HIGH",
		}
	default:
		return taskContent{
			Subject:  fmt.Sprintf("ALERT: DocuSign Agreement Failed for %s", c),
			Body:     fmt.Sprintf("DocuSign agreement could not be sent for %s.\n\nError message: %s", c, inv.failure) + footer,
			Priority: "HIGH",
		}
	}
}

// createTask files a follow-up task on the company and the notification team.
// It is best effort: failures are logged and never change the outcome.
func (s *Service) createTask(ctx context.Context, inv *invocation) {
	ctx, span := s.obs.StartSpan(ctx, "hubspot.create_task")
	defer span.End()

	content := inv.taskContent()
	taskID, err := s.crm.CreateTask(ctx, map[string]interface{}{
		"hs_task_subject":  content.Subject,
		"hs_task_body":     content.Body,
		"hs_task_priority": content.Priority,
		"hs_task_status":   "NOT_STARTED",
		"hs_task_type":     "TODO",
		"hs_timestamp":     s.now().UnixMilli(),
	})
	if err != nil {
		span.RecordError(err)
		inv.log.Error(fmt.Sprintf("Error creating task: %s", describe(err)), map[string]interface{}{
			"companyId": inv.input.CompanyID,
		})
		return
	}
	inv.taskID = taskID
	inv.taskURL = s.config.TaskURL(taskID)
	inv.log.Info(fmt.Sprintf("Task created with ID: %s", taskID), map[string]interface{}{"taskId": taskID})

	var result *multierror.Error
	if err := s.crm.AssociateTask(ctx, taskID, "companies", inv.input.CompanyID, assocTaskToCompany); err != nil {
		result = multierror.Append(result, fmt.Errorf("company %s: %w", inv.input.CompanyID, err))
	}

	associated := 0
	for _, contactID := range inv.contactIDs {
		if err := s.crm.AssociateTask(ctx, taskID, "contacts", contactID, assocTaskToContact); err != nil {
			result = multierror.Append(result, fmt.Errorf("contact %s: %w", contactID, err))
			continue
		}
		associated++
	}
	inv.log.Info(fmt.Sprintf("Associated task with %d contacts", associated), map[string]interface{}{
		"taskId":   taskID,
		"contacts": associated,
	})

	if err := result.ErrorOrNil(); err != nil {
		inv.log.Warn(fmt.Sprintf("Failed to create %d task associations", result.Len()), map[string]interface{}{
			"taskId": taskID,
			"error":  err.Error(),
		})
	}
}
