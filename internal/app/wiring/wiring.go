// Package wiring registers every booking engine handler on the command and
// query buses and wraps them in the middleware pipeline. Storage mode and
// adapters are chosen by the caller.
package wiring

import (
	"log/slog"
	"time"

	"getmyguide/internal/app/commands"
	"getmyguide/internal/app/dto"
	availabilityapp "getmyguide/internal/app/handlers/availability"
	bookingapp "getmyguide/internal/app/handlers/booking"
	cancellationapp "getmyguide/internal/app/handlers/cancellation"
	guidesapp "getmyguide/internal/app/handlers/guides"
	"getmyguide/internal/app/handlers/notifications"
	"getmyguide/internal/app/handlers/reminders"
	"getmyguide/internal/app/middleware"
	"getmyguide/internal/app/outbox"
	"getmyguide/internal/app/policies"
	"getmyguide/internal/app/queries"
	"getmyguide/internal/app/uow"
)

type Deps struct {
	UoW          uow.UoWFactory
	Payments     policies.PaymentsPort
	PaymentKeyID string
	RefundSpeed  policies.RefundSpeed
	Outbox       outbox.Outbox
	Encoder      outbox.EventEncoder
	Idempotency  middleware.IdempotencyStore
	Validator    middleware.Validator
	Alerts       policies.AlertSink
	Notifier     policies.Notifier
	Logger       *slog.Logger
	Now          func() time.Time
	NewID        func() string
}

type App struct {
	Commands      commands.Bus
	Queries       queries.Bus
	Notifications *notifications.Handler
	Reminders     *reminders.Handler
}

func Build(d Deps) App {
	encoder := d.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CreateAdvanceOrderCommand, *dto.OrderHandle](commandBus, &bookingapp.CreateAdvanceOrderHandler{
		Payments: d.Payments,
		KeyID:    d.PaymentKeyID,
	})
	commands.RegisterHandler[bookingapp.ConfirmBookingCommand, *dto.Booking](commandBus, &bookingapp.ConfirmBookingHandler{
		UoWFactory: d.UoW,
		Payments:   d.Payments,
		Outbox:     d.Outbox,
		Encoder:    encoder,
		Alerts:     d.Alerts,
		Logger:     d.Logger,
		Now:        d.Now,
		NewID:      d.NewID,
	})
	commands.RegisterHandler[bookingapp.CreateRemainingOrderCommand, *dto.OrderHandle](commandBus, &bookingapp.CreateRemainingOrderHandler{
		UoWFactory: d.UoW,
		Payments:   d.Payments,
		KeyID:      d.PaymentKeyID,
		Now:        d.Now,
	})
	commands.RegisterHandler[bookingapp.ConfirmRemainingPaymentCommand, *dto.Booking](commandBus, &bookingapp.ConfirmRemainingPaymentHandler{
		UoWFactory: d.UoW,
		Payments:   d.Payments,
		Outbox:     d.Outbox,
		Encoder:    encoder,
		Logger:     d.Logger,
		Now:        d.Now,
	})
	commands.RegisterHandler[bookingapp.MarkCompletedCommand, *dto.Booking](commandBus, &bookingapp.MarkCompletedHandler{
		UoWFactory: d.UoW,
		Outbox:     d.Outbox,
		Encoder:    encoder,
		Now:        d.Now,
	})
	commands.RegisterHandler[bookingapp.DeleteBookingCommand, *bookingapp.DeleteBookingResult](commandBus, &bookingapp.DeleteBookingHandler{
		UoWFactory: d.UoW,
		Outbox:     d.Outbox,
		Encoder:    encoder,
		Alerts:     d.Alerts,
		Logger:     d.Logger,
		Now:        d.Now,
	})
	commands.RegisterHandler[cancellationapp.CancelBookingCommand, *dto.Booking](commandBus, &cancellationapp.Coordinator{
		UoWFactory:  d.UoW,
		Payments:    d.Payments,
		Outbox:      d.Outbox,
		Encoder:     encoder,
		Alerts:      d.Alerts,
		Logger:      d.Logger,
		Now:         d.Now,
		RefundSpeed: d.RefundSpeed,
	})
	commands.RegisterHandler[cancellationapp.AssignSubstituteCommand, *dto.Booking](commandBus, &cancellationapp.AssignSubstituteHandler{
		UoWFactory: d.UoW,
		Outbox:     d.Outbox,
		Encoder:    encoder,
		Alerts:     d.Alerts,
		Logger:     d.Logger,
		Now:        d.Now,
	})
	commands.RegisterHandler[guidesapp.UpsertGuideCommand, *guidesapp.Profile](commandBus, &guidesapp.UpsertGuideHandler{UoWFactory: d.UoW, Now: d.Now})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[bookingapp.ListBookingsQuery, dto.BookingCollection](queryBus, &bookingapp.ListBookingsHandler{UoWFactory: d.UoW})
	queries.RegisterHandler[bookingapp.GetBookingQuery, *dto.Booking](queryBus, &bookingapp.GetBookingHandler{UoWFactory: d.UoW})
	queries.RegisterHandler[availabilityapp.GetCalendarQuery, dto.GuideCalendar](queryBus, &availabilityapp.GetCalendarHandler{UoWFactory: d.UoW, Now: d.Now})
	queries.RegisterHandler[availabilityapp.CheckAvailabilityQuery, dto.Availability](queryBus, &availabilityapp.CheckAvailabilityHandler{UoWFactory: d.UoW})
	queries.RegisterHandler[guidesapp.GetGuideQuery, *guidesapp.Profile](queryBus, &guidesapp.GetGuideHandler{UoWFactory: d.UoW})

	commandMWs := []middleware.CommandMiddleware{
		middleware.Logging(d.Logger),
		middleware.Authorization(middleware.RoleAuthorizer{}),
	}
	queryMWs := []middleware.QueryMiddleware{
		middleware.QueryAuthorization(middleware.RoleAuthorizer{}),
	}
	if d.Validator != nil {
		commandMWs = append(commandMWs, middleware.Validation(d.Validator))
		queryMWs = append(queryMWs, middleware.QueryValidation(d.Validator))
	}
	if d.Idempotency != nil {
		commandMWs = append(commandMWs, middleware.Idempotency(d.Idempotency, nil))
	}
	commandMWs = append(commandMWs, middleware.Transaction(d.UoW, nil))
	if d.Outbox != nil {
		commandMWs = append(commandMWs, middleware.OutboxFlush(d.Outbox, d.Logger))
	}

	return App{
		Commands: middleware.ChainCommands(commandBus, commandMWs...),
		Queries:  middleware.ChainQueries(queryBus, queryMWs...),
		Notifications: &notifications.Handler{
			UoWFactory: d.UoW,
			Notifier:   d.Notifier,
			Logger:     d.Logger,
		},
		Reminders: &reminders.Handler{
			UoWFactory: d.UoW,
			Notifier:   d.Notifier,
			Outbox:     d.Outbox,
			Encoder:    encoder,
			Logger:     d.Logger,
		},
	}
}
