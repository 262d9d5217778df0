package sendpartnershipagreement

import (
	"fmt"
	"strings"
)

// channelMessages are the pre-rendered texts the notification consumer posts
// to email, Slack and CRM fields.
type channelMessages struct {
	EmailSubject string
	EmailBody    string
	Slack        string
	PlainText    string
	Status       string
}

func (inv *invocation) messages() channelMessages {
	c := inv.companyName
	url := inv.companyURL
	id := inv.input.CompanyID

	switch inv.scenario {
	case ScenarioAgreementSent:
		level, signer := inv.levelOr("Partnership"), inv.signerOr("the designated signer")
		return channelMessages{
			EmailSubject: fmt.Sprintf("DocuSign Agreement Sent for %s", c),
			EmailBody:    fmt.Sprintf(`<p>%s Partnership Agreement was sent to %s.</p><p><a href="%s">View Company Record</a></p>`, level, signer, url),
			Slack:        fmt.Sprintf("*✅ DocuSign Agreement Sent for %s*\n%s Partnership Agreement was sent to %s.\n<%s|View Company Record>", c, level, signer, url),
			PlainText:    fmt.Sprintf("DocuSign Agreement Sent for %s\n\n%s Partnership Agreement was sent to %s.\n\nCompany ID: %s\nCompany Link: %s", c, level, signer, id, url),
			Status:       fmt.Sprintf("%s Partnership Agreement sent to %s for %s.", level, signer, c),
		}

	case ScenarioMissingProperties:
		items := make([]string, len(inv.missing))
		for i, p := range inv.missing {
			items[i] = "<li>" + p + "</li>"
		}
		return channelMessages{
			EmailSubject: fmt.Sprintf("⚠️ DocuSign Cannot Be Sent for %s - Missing Fields", c),
			EmailBody: fmt.Sprintf(`<p><strong>DocuSign cannot be sent for %s</strong></p><ul>%s</ul><p>Please complete these fields before attempting to send DocuSign again.</p><p><a href="%s">View Company Record</a></p>`,
				c, strings.Join(items, ""), url),
			Slack: fmt.Sprintf("*⚠️ ALERT: DocuSign Cannot Be Sent for %s*\n\nThe following required properties are missing:\n• %s\n\nPlease complete these fields before attempting to send DocuSign again.\n<%s|View Company Record>",
				c, strings.Join(inv.missing, "\n• "), url),
			PlainText: fmt.Sprintf("ALERT: DocuSign Cannot Be Sent for %s\n\nThe following required properties are missing:\n%s\n\nPlease complete these fields before attempting to send DocuSign again.\n\nCompany ID: %s\nCompany Link: %s",
				c, strings.Join(inv.missing, ", "), id, url),
			Status: fmt.Sprintf("DocuSign cannot be sent for %s. Missing %d properties.", c, len(inv.missing)),
		}

	case ScenarioConsentRequired:
		consent := inv.consentURL
		return channelMessages{
			EmailSubject: fmt.Sprintf("DocuSign Consent Required for %s", c),
			EmailBody: fmt.Sprintf(`<p><strong>DocuSign consent is required before the agreement for %s can be sent</strong></p><p><a href="%s">Grant Consent</a></p><p><a href="%s">View Company Record</a></p>`,
				c, consent, url),
			Slack:     fmt.Sprintf("*⚠️ DocuSign Consent Required for %s*\nThe integration user has not granted consent yet.\n<%s|Grant Consent> | <%s|View Company Record>", c, consent, url),
			PlainText: fmt.Sprintf("DocuSign Consent Required for %s\n\nGrant consent here: %s\n\nCompany ID: %s\nCompany Link: %s", c, consent, id, url),
			Status:    fmt.Sprintf("DocuSign consent is required before the agreement for %s can be sent.", c),
		}

	case ScenarioDocusignError:
		return channelMessages{
			EmailSubject: fmt.Sprintf("⚠️ DocuSign Agreement Failed for %s", c),
			EmailBody: fmt.Sprintf(`<p><strong>DocuSign agreement could not be sent for %s</strong></p><p>Error message: %s</p><p><a href="%s">View Company Record</a></p>`,
				c, inv.failure, url),
			Slack:     fmt.Sprintf("*⚠️ ERROR: DocuSign Agreement Failed for %s*\nError message: %s\n<%s|View Company Record>", c, inv.failure, url),
			PlainText: fmt.Sprintf("ERROR: DocuSign Agreement Failed for %s\n\nError message: %s\n\nCompany ID: %s\nCompany Link: %s", c, inv.failure, id, url),
			Status:    fmt.Sprintf("DocuSign agreement could not be sent for %s: %s", c, inv.failure),
		}

	default:
		return channelMessages{
			EmailSubject: "Error in DocuSign Validation Process",
			EmailBody:    fmt.Sprintf("<p><strong>Error occurred during DocuSign validation</strong></p><p>Error message: %s</p>", inv.failure),
			Slack:        fmt.Sprintf("*⚠️ ERROR in DocuSign Validation Process*\nError message: %s", inv.failure),
			PlainText:    fmt.Sprintf("ERROR in DocuSign Validation Process\n\nError message: %s", inv.failure),
			Status:       fmt.Sprintf("Error validating DocuSign requirements: %s", inv.failure),
		}
	}
}

// summary is the one-line message returned to the trigger and sent as "message".
func (inv *invocation) summary() string {
	switch inv.scenario {
	case ScenarioAgreementSent:
		return fmt.Sprintf("%s Agreement sent to %s for %s", inv.levelOr("Partnership"), inv.signerOr("signer"), inv.companyName)
	case ScenarioMissingProperties:
		return fmt.Sprintf("DocuSign cannot be sent for %s. Missing %d properties.", inv.companyName, len(inv.missing))
	case ScenarioConsentRequired:
		return fmt.Sprintf("DocuSign consent required: %s", inv.consentURL)
	case ScenarioDocusignError:
		return fmt.Sprintf("DocuSign creation failed: %s", inv.failure)
	default:
		return fmt.Sprintf("Workflow error: %s", inv.failure)
	}
}

// payload builds the webhook body. It is rebuilt from scratch per invocation.
func (inv *invocation) payload() map[string]interface{} {
	msgs := inv.messages()
	p := map[string]interface{}{
		"scenario":               string(inv.scenario),
		"correlationId":          inv.correlationID,
		"success":                inv.scenario == ScenarioAgreementSent,
		"docusignReady":          inv.ready(),
		"missingPropertiesCount": len(inv.missing),
		"missingProperties":      strings.Join(inv.missing, ", "),

		"companyOwner":               inv.prop(propOwner),
		"partnershipSize":            inv.prop(propSize),
		"partnershipLevel":           inv.templateKey(),
		"corporateAccount":           inv.prop(propCorporate),
		"businessType":               inv.prop(propBusinessType),
		"rosterUploadedDate":         inv.prop(propRosterUploaded),
		"hierarchy":                  inv.prop(propHierarchy),
		"partnershipAgreementSigner": inv.prop(propSigner),

		"taskId":  inv.taskID,
		"taskUrl": inv.taskURL,

		"emailSubject":     msgs.EmailSubject,
		"emailBody":        msgs.EmailBody,
		"slackMessage":     msgs.Slack,
		"plainTextMessage": msgs.PlainText,
		"statusMessage":    msgs.Status,

		"companyName":   inv.companyName,
		"companyId":     inv.input.CompanyID,
		"companyUrl":    inv.companyURL,
		"contactIds":    strings.Join(inv.contactIDs, ","),
		"contactsFound": len(inv.contactIDs),

		"consentUrl":      inv.consentURL,
		"degradedAccount": inv.degraded,

		"message": inv.summary(),
		"logs":    inv.events.String(),
	}

	if inv.envelope != nil {
		p["envelopeId"] = inv.envelope.EnvelopeID
		p["envelopeStatus"] = inv.envelope.Status
		p["templateUsed"] = inv.envelope.TemplateName
		p["templateId"] = inv.envelope.TemplateID
		p["envelopeRoute"] = string(inv.envelope.Route)
	}
	if inv.failure != "" {
		p["error"] = inv.failure
	}
	return p
}
