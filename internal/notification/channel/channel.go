// Package channel delivers provider notifications over in-app, email and WhatsApp.
package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace_backend/internal/email"
	"marketplace_backend/internal/notification/inapp"
	providerdomain "marketplace_backend/internal/providers/domain"
	requestdomain "marketplace_backend/internal/requests/domain"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

const TypeNewRequest = "NEW_REQUEST"

// ProviderReader loads notification recipients.
type ProviderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*providerdomain.Provider, error)
}

// RequestReader loads the request a notification is about.
type RequestReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*requestdomain.ServiceRequest, error)
}

// InAppSender stores and pushes in-app notifications.
type InAppSender interface {
	Send(ctx context.Context, p inapp.CreateParams) (inapp.Notification, error)
}

// MessageSender sends a WhatsApp text message.
type MessageSender interface {
	Enabled() bool
	SendMessage(ctx context.Context, phoneNumber, message string) error
}

type Channel struct {
	providers ProviderReader
	requests  RequestReader
	inApp     InAppSender
	email     email.Sender
	emailOn   bool
	whatsapp  MessageSender
	baseURL   string
	log       *logger.Logger
}

// New creates a channel. whatsapp may be nil; emailOn gates the email sender.
func New(providers ProviderReader, requests RequestReader, inApp InAppSender, sender email.Sender, emailOn bool, whatsapp MessageSender, baseURL string, log *logger.Logger) *Channel {
	return &Channel{
		providers: providers,
		requests:  requests,
		inApp:     inApp,
		email:     sender,
		emailOn:   emailOn,
		whatsapp:  whatsapp,
		baseURL:   strings.TrimRight(baseURL, "/"),
		log:       log,
	}
}

type content struct {
	subject   string
	message   string
	actionURL string
	urgent    bool
}

func buildContent(notificationType string, req *requestdomain.ServiceRequest) (content, error) {
	switch notificationType {
	case TypeNewRequest:
		where := req.Address
		if where == "" {
			where = req.City
		}
		message := fmt.Sprintf("You have a new %s request", req.Category)
		if where != "" {
			message += " in " + where
		}
		return content{
			subject:   "New service request available",
			message:   message,
			actionURL: "/provider/requests/" + req.ID.String(),
			urgent:    req.Urgency == requestdomain.UrgencyImmediate,
		}, nil
	default:
		return content{}, fmt.Errorf("unsupported notification type %q", notificationType)
	}
}

// SendProviderNotification notifies a provider about a request on every channel
// they opted in to. In-app is always attempted. It fails when the provider or
// request cannot be loaded, or when every attempted channel failed.
func (c *Channel) SendProviderNotification(ctx context.Context, providerID, requestID uuid.UUID, notificationType, priority string) error {
	provider, err := c.providers.GetByID(ctx, providerID)
	if err != nil {
		return fmt.Errorf("load provider: %w", err)
	}
	req, err := c.requests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}

	msg, err := buildContent(notificationType, req)
	if err != nil {
		return err
	}

	attempted := 0
	var errs []error
	record := func(step string, err error) {
		attempted++
		if err != nil {
			c.log.DeliveryFailed(step, providerID.String(), err)
			errs = append(errs, fmt.Errorf("%s: %w", step, err))
		}
	}

	_, err = c.inApp.Send(ctx, inapp.CreateParams{
		UserID:    providerID,
		Type:      notificationType,
		Title:     msg.subject,
		Message:   msg.message,
		ActionURL: msg.actionURL,
		Priority:  priority,
		RequestID: &req.ID,
	})
	record("in_app", err)

	if c.emailOn && provider.Notify.Email && provider.Email != "" {
		record("email", c.email.SendNewRequestEmail(ctx, provider.Email, email.NewRequest{
			ProviderName: provider.BusinessName,
			Message:      msg.message,
			Title:        req.Title,
			Category:     req.Category,
			City:         req.City,
			Urgent:       msg.urgent,
			ActionURL:    c.baseURL + msg.actionURL,
		}))
	}

	if c.whatsapp != nil && c.whatsapp.Enabled() && provider.Notify.SMS && provider.Phone != "" {
		text := fmt.Sprintf("%s: %s. %s%s", msg.subject, msg.message, c.baseURL, msg.actionURL)
		record("whatsapp", c.whatsapp.SendMessage(ctx, provider.Phone, text))
	}

	if len(errs) == attempted {
		return errors.Join(errs...)
	}
	return nil
}
