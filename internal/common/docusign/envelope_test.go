package docusign

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apperrors "esign-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() SendRequest {
	return SendRequest{
		TemplateKey:  "Gold",
		CompanyID:    "12345",
		EmailSubject: "Please sign this document - Gold Agreement",
		EmailBlurb:   "Please review and sign this Gold Agreement.",
		Recipient:    Recipient{Email: "signer@example.com", Name: "Signer"},
		TextTabs: []TextTab{
			{Label: "Partnership_Size", Value: "10"},
			{Label: "Partnership_Level", Value: "Gold"},
			{Label: "Hierarchy", Value: "Corporate"},
		},
	}
}

type envelopeServer struct {
	*httptest.Server
	calls atomic.Int32
}

func newEnvelopeServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *envelopeServer {
	t.Helper()
	s := &envelopeServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func respondInvalidUser(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`{"errorCode":"INVALID_USERID","message":"Invalid UserId."}`))
}

func respondCreated(id string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"envelopeId":"` + id + `","status":"sent"}`))
	}
}

func TestTemplateCatalog(t *testing.T) {
	catalog := NewTemplateCatalog(nil, nil, false)

	tmpl, err := catalog.Lookup("Silver with Rev Share")
	require.NoError(t, err)
	assert.Equal(t, "0cd02f3e-5ee5-4b5e-bebc-2b510eef0982", tmpl.ID)

	_, err = catalog.Lookup("silver")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTemplateNotFound))
	assert.Len(t, catalog.Keys(), 5)

	testCatalog := NewTemplateCatalog(nil, nil, true)
	tmpl, err = testCatalog.Lookup("Bronze")
	require.NoError(t, err)
	assert.Equal(t, DefaultTestTemplate().ID, tmpl.ID)
}

func TestSubmit_UnknownTemplateMakesNoRequest(t *testing.T) {
	server := newEnvelopeServer(t, respondCreated("never"))
	submitter := NewEnvelopeSubmitter(NewTemplateCatalog(nil, nil, false), EnvelopeSubmitterConfig{}, testHTTP())

	req := sampleRequest()
	req.TemplateKey = "Platinum"

	_, err := submitter.Submit(context.Background(), "tok", Target{BaseURL: server.URL, AccountID: "acct"}, req)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTemplateNotFound))
	assert.Equal(t, int32(0), server.calls.Load())
}

func TestSubmit_Primary(t *testing.T) {
	server := newEnvelopeServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/restapi/v2.1/accounts/acct/envelopes", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "owner-user-guid", r.Header.Get(ActOnBehalfHeader))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sent", body["status"])
		assert.Equal(t, "0aefb289-cf0f-4f87-9615-259fdacaf710", body["templateId"])

		roles := body["templateRoles"].([]interface{})
		if !assert.Len(t, roles, 1) {
			return
		}
		role := roles[0].(map[string]interface{})
		assert.Equal(t, SignerRoleName, role["roleName"])
		assert.Equal(t, "1", role["routingOrder"])
		tabs := role["tabs"].(map[string]interface{})["textTabs"].([]interface{})
		if !assert.Len(t, tabs, 3) {
			return
		}
		assert.Equal(t, "Partnership_Size", tabs[0].(map[string]interface{})["tabLabel"])
		assert.Equal(t, "Hierarchy", tabs[2].(map[string]interface{})["tabLabel"])

		field := body["customFields"].(map[string]interface{})["textCustomFields"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "hubspot_company_id", field["name"])
		assert.Equal(t, "12345", field["value"])
		assert.Equal(t, "true", field["required"])
		assert.Equal(t, "false", field["show"])

		settings := body["emailSettings"].(map[string]interface{})
		assert.Equal(t, "owner@example.com", settings["replyEmailAddressOverride"])
		assert.Equal(t, "Company Owner", settings["replyEmailNameOverride"])

		respondCreated("env-1")(w, r)
	})

	submitter := NewEnvelopeSubmitter(NewTemplateCatalog(nil, nil, false), EnvelopeSubmitterConfig{}, testHTTP())
	req := sampleRequest()
	req.ReplyTo = &ReplyTo{Email: "owner@example.com"}
	req.ActOnBehalfOf = "owner-user-guid"

	summary, err := submitter.Submit(context.Background(), "tok", Target{BaseURL: server.URL, AccountID: "acct"}, req)
	require.NoError(t, err)
	assert.Equal(t, "env-1", summary.EnvelopeID)
	assert.Equal(t, "sent", summary.Status)
	assert.Equal(t, "UpEquity Gold Level Marketing and Program Agreement", summary.TemplateName)
	assert.False(t, summary.UsedAlternate())
	assert.Equal(t, int32(1), server.calls.Load())
}

func TestSubmit_InvalidUserIDRetriesOnceOnAlternate(t *testing.T) {
	primary := newEnvelopeServer(t, respondInvalidUser)
	alternate := newEnvelopeServer(t, respondCreated("env-alt"))

	submitter := NewEnvelopeSubmitter(NewTemplateCatalog(nil, nil, false),
		EnvelopeSubmitterConfig{AlternateBaseURL: alternate.URL}, testHTTP())

	summary, err := submitter.Submit(context.Background(), "tok", Target{BaseURL: primary.URL, AccountID: "acct"}, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "env-alt", summary.EnvelopeID)
	assert.True(t, summary.UsedAlternate())
	require.NotNil(t, summary.PrimaryError)
	assert.Equal(t, InvalidUserIDCode, summary.PrimaryError.ErrorCode)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(1), alternate.calls.Load())
}

func TestSubmit_AlternateFailureIsTerminal(t *testing.T) {
	primary := newEnvelopeServer(t, respondInvalidUser)
	alternate := newEnvelopeServer(t, respondInvalidUser)

	submitter := NewEnvelopeSubmitter(NewTemplateCatalog(nil, nil, false),
		EnvelopeSubmitterConfig{AlternateBaseURL: alternate.URL}, testHTTP())

	_, err := submitter.Submit(context.Background(), "tok", Target{BaseURL: primary.URL, AccountID: "acct"}, sampleRequest())
	require.Error(t, err)

	stdErr, ok := apperrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeEnvelopeSubmissionFailed, stdErr.Code)
	assert.Equal(t, InvalidUserIDCode, stdErr.Metadata["docusignErrorCode"])
	assert.Equal(t, http.StatusBadRequest, stdErr.Metadata["httpStatus"])
	assert.Equal(t, "alternate", stdErr.Metadata["route"])
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(1), alternate.calls.Load())
}

func TestSubmit_OtherErrorsDoNotRetry(t *testing.T) {
	primary := newEnvelopeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorCode":"TEMPLATE_ID_INVALID","message":"Invalid template ID."}`))
	})
	alternate := newEnvelopeServer(t, respondCreated("never"))

	submitter := NewEnvelopeSubmitter(NewTemplateCatalog(nil, nil, false),
		EnvelopeSubmitterConfig{AlternateBaseURL: alternate.URL}, testHTTP())

	_, err := submitter.Submit(context.Background(), "tok", Target{BaseURL: primary.URL, AccountID: "acct"}, sampleRequest())
	require.Error(t, err)
	stdErr, _ := apperrors.AsStandard(err)
	assert.Equal(t, "TEMPLATE_ID_INVALID", stdErr.Metadata["docusignErrorCode"])
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(0), alternate.calls.Load())
}

func TestSubmit_AlternateSameAsPrimary(t *testing.T) {
	server := newEnvelopeServer(t, respondInvalidUser)

	submitter := NewEnvelopeSubmitter(NewTemplateCatalog(nil, nil, false),
		EnvelopeSubmitterConfig{AlternateBaseURL: server.URL + "/restapi/v2.1/"}, testHTTP())

	_, err := submitter.Submit(context.Background(), "tok", Target{BaseURL: server.URL, AccountID: "acct"}, sampleRequest())
	require.Error(t, err)
	assert.Equal(t, int32(1), server.calls.Load())
}
