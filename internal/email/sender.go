package email

import (
	"context"
	"fmt"
)

// NewRequest describes a lead offered to a provider.
type NewRequest struct {
	ProviderName string
	Message      string
	Title        string
	Category     string
	City         string
	Urgent       bool
	ActionURL    string
}

type Sender interface {
	SendNewRequestEmail(ctx context.Context, toEmail string, req NewRequest) error
}

type NoopSender struct{}

func (NoopSender) SendNewRequestEmail(ctx context.Context, toEmail string, req NewRequest) error {
	return nil
}

func newRequestSubject(req NewRequest) string {
	if req.Urgent {
		return fmt.Sprintf(subjectUrgentNewRequestFmt, req.Category, req.Title)
	}
	return fmt.Sprintf(subjectNewRequestFmt, req.Category, req.Title)
}

func renderNewRequest(req NewRequest) (string, error) {
	return renderEmailTemplate("new_request.html", newRequestEmailData{
		baseEmailData: baseEmailData{
			Title:      "New service request",
			Heading:    "A new request matches your services",
			Subheading: req.Title,
			CTALabel:   "View request",
			CTAURL:     req.ActionURL,
		},
		ProviderName: req.ProviderName,
		Message:      req.Message,
		RequestTitle: req.Title,
		Category:     req.Category,
		City:         req.City,
		Urgent:       req.Urgent,
	})
}
