package docusign

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	apperrors "esign-workers/internal/common/errors"
	httpclient "esign-workers/internal/common/http"
)

const (
	defaultListCount    = 25
	maxListCount        = 100
	defaultListLookback = 30 * 24 * time.Hour
)

type ListOptions struct {
	Count         int
	StartPosition int
	Status        string // "all" or empty means no filter
	FromDate      string
	ToDate        string
	SearchText    string
	OrderBy       string
	Order         string
}

type Sender struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
}

type EnvelopeListItem struct {
	EnvelopeID            string `json:"envelopeId"`
	EmailSubject          string `json:"emailSubject"`
	Status                string `json:"status"`
	StatusLabel           string `json:"statusLabel"`
	StatusChangedDateTime string `json:"statusChangedDateTime,omitempty"`
	CreatedDateTime       string `json:"createdDateTime,omitempty"`
	LastModifiedDateTime  string `json:"lastModifiedDateTime,omitempty"`
	SentDateTime          string `json:"sentDateTime,omitempty"`
	CompletedDateTime     string `json:"completedDateTime,omitempty"`
	Sender                Sender `json:"sender"`
	RecipientsCount       int    `json:"recipientsCount"`
	EnvelopeURI           string `json:"envelopeUri,omitempty"`
}

type EnvelopePage struct {
	Envelopes     []EnvelopeListItem `json:"envelopes"`
	TotalSetSize  int                `json:"totalSetSize"`
	StartPosition int                `json:"startPosition"`
	CurrentPage   int                `json:"currentPage"`
	TotalPages    int                `json:"totalPages"`
	HasNext       bool               `json:"hasNext"`
	HasPrevious   bool               `json:"hasPrevious"`
}

// flexInt accepts both 12 and "12"; list counters come back as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type listRecipients struct {
	Signers             []json.RawMessage `json:"signers"`
	CarbonCopies        []json.RawMessage `json:"carbonCopies"`
	CertifiedDeliveries []json.RawMessage `json:"certifiedDeliveries"`
	InPersonSigners     []json.RawMessage `json:"inPersonSigners"`
}

func (r *listRecipients) count() int {
	if r == nil {
		return 0
	}
	return len(r.Signers) + len(r.CarbonCopies) + len(r.CertifiedDeliveries) + len(r.InPersonSigners)
}

type listEnvelope struct {
	EnvelopeID            string          `json:"envelopeId"`
	EmailSubject          string          `json:"emailSubject"`
	Status                string          `json:"status"`
	StatusChangedDateTime string          `json:"statusChangedDateTime"`
	CreatedDateTime       string          `json:"createdDateTime"`
	LastModifiedDateTime  string          `json:"lastModifiedDateTime"`
	SentDateTime          string          `json:"sentDateTime"`
	CompletedDateTime     string          `json:"completedDateTime"`
	EnvelopeURI           string          `json:"envelopeUri"`
	Sender                *Sender         `json:"sender"`
	Recipients            *listRecipients `json:"recipients"`
}

type listResponse struct {
	ResultSetSize flexInt        `json:"resultSetSize"`
	TotalSetSize  flexInt        `json:"totalSetSize"`
	StartPosition flexInt        `json:"startPosition"`
	Envelopes     []listEnvelope `json:"envelopes"`
}

func statusLabel(status string) string {
	if status == "" {
		return "Unknown"
	}
	runes := []rune(strings.ToLower(status))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func (o ListOptions) query(now time.Time) url.Values {
	count := o.Count
	if count <= 0 {
		count = defaultListCount
	}
	if count > maxListCount {
		count = maxListCount
	}
	start := o.StartPosition
	if start < 0 {
		start = 0
	}

	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	q.Set("start_position", strconv.Itoa(start))
	q.Set("include", "recipients")

	orderBy := o.OrderBy
	if orderBy == "" {
		orderBy = "last_modified"
	}
	order := o.Order
	if order == "" {
		order = "desc"
	}
	q.Set("order_by", orderBy)
	q.Set("order", order)

	if o.Status != "" && !strings.EqualFold(o.Status, "all") {
		q.Set("status", o.Status)
	}

	// the list endpoint rejects requests without a lower date bound
	from := o.FromDate
	if from == "" {
		from = now.Add(-defaultListLookback).UTC().Format("2006-01-02")
	}
	q.Set("from_date", from)
	if o.ToDate != "" {
		q.Set("to_date", o.ToDate)
	}
	if s := strings.TrimSpace(o.SearchText); s != "" {
		q.Set("search_text", s)
	}
	return q
}

// ListEnvelopes pages through envelopes of the target account.
func (s *EnvelopeSubmitter) ListEnvelopes(ctx context.Context, token string, target Target, opts ListOptions) (*EnvelopePage, error) {
	return s.listEnvelopes(ctx, token, target, opts, time.Now())
}

func (s *EnvelopeSubmitter) listEnvelopes(ctx context.Context, token string, target Target, opts ListOptions, now time.Time) (*EnvelopePage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := opts.query(now)
	endpoint := httpclient.JoinURL(NormalizeBaseURL(target.BaseURL), "/accounts/"+url.PathEscape(target.AccountID)+"/envelopes") + "?" + q.Encode()

	resp, err := s.http.SendJSON(ctx, http.MethodGet, endpoint, bearer(token), nil)
	if err != nil {
		return nil, apperrors.NewDocusignStatusError("envelope listing", 0, err.Error())
	}
	if !resp.IsSuccess() {
		return nil, apperrors.NewDocusignStatusError("envelope listing", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}

	var body listResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, apperrors.NewDocusignStatusError("envelope listing", resp.StatusCode, err.Error())
	}

	items := make([]EnvelopeListItem, 0, len(body.Envelopes))
	for _, e := range body.Envelopes {
		sender := Sender{UserName: "Unknown Sender"}
		if e.Sender != nil {
			sender = *e.Sender
			if sender.UserName == "" {
				sender.UserName = "Unknown"
			}
		}
		subject := e.EmailSubject
		if subject == "" {
			subject = "No Subject"
		}
		items = append(items, EnvelopeListItem{
			EnvelopeID:            e.EnvelopeID,
			EmailSubject:          subject,
			Status:                e.Status,
			StatusLabel:           statusLabel(e.Status),
			StatusChangedDateTime: e.StatusChangedDateTime,
			CreatedDateTime:       e.CreatedDateTime,
			LastModifiedDateTime:  e.LastModifiedDateTime,
			SentDateTime:          e.SentDateTime,
			CompletedDateTime:     e.CompletedDateTime,
			Sender:                sender,
			RecipientsCount:       e.Recipients.count(),
			EnvelopeURI:           e.EnvelopeURI,
		})
	}

	count, _ := strconv.Atoi(q.Get("count"))
	start, _ := strconv.Atoi(q.Get("start_position"))
	total := int(body.TotalSetSize)
	totalPages := 0
	if total > 0 {
		totalPages = (total + count - 1) / count
	}
	currentPage := start/count + 1

	return &EnvelopePage{
		Envelopes:     items,
		TotalSetSize:  total,
		StartPosition: start,
		CurrentPage:   currentPage,
		TotalPages:    totalPages,
		HasNext:       currentPage < totalPages,
		HasPrevious:   currentPage > 1,
	}, nil
}
