// Package notification provides the provider notification channel and the
// in-app notification inbox.
package notification

import (
	"marketplace_backend/internal/email"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/notification/channel"
	"marketplace_backend/internal/notification/handler"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps are the collaborators of the notification module.
type Deps struct {
	Pool      *pgxpool.Pool
	Providers channel.ProviderReader
	Requests  channel.RequestReader
	Email     email.Sender
	WhatsApp  channel.MessageSender
	Pusher    inapp.Pusher
	Config    interface {
		config.EmailConfig
		config.NotificationConfig
	}
	Log *logger.Logger
}

// Module is the notification bounded context module implementing http.Module.
type Module struct {
	inApp   *inapp.Service
	channel *channel.Channel
	handler *handler.HTTPHandler
}

func NewModule(deps Deps) *Module {
	inApp := inapp.NewService(inapp.NewRepository(deps.Pool), deps.Pusher, deps.Log)
	ch := channel.New(
		deps.Providers,
		deps.Requests,
		inApp,
		deps.Email,
		deps.Config.IsEmailEnabled(),
		deps.WhatsApp,
		deps.Config.GetAppBaseURL(),
		deps.Log,
	)
	return &Module{
		inApp:   inApp,
		channel: ch,
		handler: handler.NewHTTPHandler(inApp),
	}
}

func (m *Module) Name() string {
	return "notification"
}

// Channel returns the provider notification channel used by matching.
func (m *Module) Channel() *channel.Channel {
	return m.channel
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
