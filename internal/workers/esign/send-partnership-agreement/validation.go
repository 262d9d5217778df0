package sendpartnershipagreement

import (
	"fmt"
	"strconv"
	"strings"

	"esign-workers/internal/common/errors"
	"esign-workers/internal/common/hubspot"
	"esign-workers/internal/common/validation"
)

const (
	propOwner          = "hubspot_owner_id"
	propSize           = "partnership_size"
	propLevel          = "partnership_level"
	propCorporate      = "corporate_account"
	propBusinessType   = "business_type"
	propRosterUploaded = "roster_uploaded_date"
	propHierarchy      = "hierarchy"
	propSigner         = "partnership_agreement_signer"
	propTeamContacts   = "notification_team_contacts"
	propName           = "name"

	hierarchyCorporate = "Corporate"
)

// RequiredProperties must all be set before an agreement is sent.
var RequiredProperties = []string{
	propOwner,
	propSize,
	propLevel,
	propCorporate,
	propBusinessType,
	propRosterUploaded,
	propHierarchy,
	propSigner,
}

// textTabFields maps envelope tab labels to company properties, in tab order.
var textTabFields = [][2]string{
	{"Partnership_Size", propSize},
	{"Partnership_Level", propLevel},
	{"Corporate_Account", propCorporate},
	{"Business_Type", propBusinessType},
	{"Roster_Uploaded_Date", propRosterUploaded},
	{"Hierarchy", propHierarchy},
}

func companyProperties() []string {
	props := make([]string, 0, len(RequiredProperties)+2)
	props = append(props, RequiredProperties...)
	return append(props, propTeamContacts, propName)
}

// ValidateCompany returns the required properties that are empty, in
// RequiredProperties order. corporate_account is not required for a
// Corporate hierarchy.
func ValidateCompany(company *hubspot.Company) []string {
	missing := make([]string, 0)
	hierarchy := company.Get(propHierarchy)
	for _, prop := range RequiredProperties {
		if prop == propCorporate && hierarchy == hierarchyCorporate {
			continue
		}
		if strings.TrimSpace(company.Get(prop)) == "" {
			missing = append(missing, prop)
		}
	}
	return missing
}

// parseContactIDs splits the newline separated contact property.
func parseContactIDs(raw string) []string {
	ids := make([]string, 0)
	for _, line := range strings.Split(raw, "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"companyId": {
				Type:        []string{"string", "number"},
				Description: "CRM company record id",
			},
			"recipientEmail": {
				Type:        "string",
				Description: "Signer email override",
				Format:      "email",
			},
			"recipientName": {
				Type:        "string",
				Description: "Signer name override",
				MaxLength:   intPtr(200),
			},
			"emailSubject": {
				Type:        "string",
				Description: "Envelope email subject override",
				MaxLength:   intPtr(100),
			},
			"emailBody": {
				Type:        "string",
				Description: "Envelope email body override",
				MaxLength:   intPtr(10000),
			},
			"partnershipLevel": {
				Type:        "string",
				Description: "Template key override",
			},
			"companyName": {
				Type:        "string",
				Description: "Display name override",
			},
			"signerName": {
				Type:        "string",
				Description: "Signer display name override",
			},
			"replyToEmail": {
				Type:        "string",
				Description: "Reply-to address for envelope emails, usually the company owner",
				Format:      "email",
			},
			"replyToName": {
				Type:        "string",
				Description: "Reply-to display name",
			},
		},
		// process variables carry more than the trigger fields
		AdditionalProperties: true,
	}
}

// InputFromMap validates trigger variables and converts them to an Input.
// A missing companyId is not a schema error; Execute reports it.
func InputFromMap(raw map[string]interface{}) (*Input, error) {
	// blank overrides are the same as absent ones
	variables := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		variables[k] = v
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationError(fmt.Sprintf("Validation errors: %v", result.GetErrorMessages()))
	}

	input := &Input{
		CompanyID:        recordID(variables["companyId"]),
		RecipientEmail:   stringVar(variables, "recipientEmail"),
		RecipientName:    stringVar(variables, "recipientName"),
		EmailSubject:     stringVar(variables, "emailSubject"),
		EmailBody:        stringVar(variables, "emailBody"),
		PartnershipLevel: stringVar(variables, "partnershipLevel"),
		CompanyName:      stringVar(variables, "companyName"),
		SignerName:       stringVar(variables, "signerName"),
		ReplyToEmail:     stringVar(variables, "replyToEmail"),
		ReplyToName:      stringVar(variables, "replyToName"),
	}
	return input, nil
}

func recordID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	default:
		return ""
	}
}

func stringVar(variables map[string]interface{}, key string) string {
	if s, ok := variables[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func intPtr(i int) *int {
	return &i
}
