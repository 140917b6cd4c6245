package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"getmyguide/internal/app/commands"
	"getmyguide/internal/app/dto"
	bookingapp "getmyguide/internal/app/handlers/booking"
	cancellationapp "getmyguide/internal/app/handlers/cancellation"
	"getmyguide/internal/app/queries"
)

type BookingHTTP interface {
	CreateOrder(c *gin.Context)
	Confirm(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	CreateRemainingOrder(c *gin.Context)
	ConfirmRemaining(c *gin.Context)
	Cancel(c *gin.Context)
	Complete(c *gin.Context)
	AssignSubstitute(c *gin.Context)
	Delete(c *gin.Context)
}

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger

	// Currency applies when a request names none.
	Currency string
}

type createOrderRequest struct {
	TotalPrice int64  `json:"total_price"`
	Currency   string `json:"currency"`
}

type confirmBookingRequest struct {
	OrderID    string `json:"order_id"`
	PaymentID  string `json:"payment_id"`
	Signature  string `json:"signature"`
	GuideID    string `json:"guide_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	TotalPrice int64  `json:"total_price"`
	Currency   string `json:"currency"`
	Location   string `json:"location"`
	Travelers  int    `json:"travelers"`
	UserEmail  string `json:"user_email"`
}

type paymentRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type substituteRequest struct {
	GuideID string `json:"guide_id"`
}

func (h BookingHandler) CreateOrder(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := bookingapp.CreateAdvanceOrderCommand{Actor: p.Actor, TotalPrice: req.TotalPrice, Currency: h.currency(req.Currency)}
	result, err := commands.Dispatch[bookingapp.CreateAdvanceOrderCommand, *dto.OrderHandle](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Confirm(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req confirmBookingRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	email := strings.TrimSpace(req.UserEmail)
	if email == "" {
		email = p.Email
	}
	cmd := bookingapp.ConfirmBookingCommand{
		Actor:           p.Actor,
		UserEmail:       email,
		OrderID:         req.OrderID,
		PaymentID:       req.PaymentID,
		Signature:       req.Signature,
		GuideID:         req.GuideID,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		TotalPrice:      req.TotalPrice,
		Currency:        h.currency(req.Currency),
		Location:        req.Location,
		Travelers:       req.Travelers,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) List(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	query := bookingapp.ListBookingsQuery{Actor: p.Actor, Status: c.Query("status")}
	result, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	query := bookingapp.GetBookingQuery{Actor: p.Actor, BookingID: bookingID(c)}
	result, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) CreateRemainingOrder(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	cmd := bookingapp.CreateRemainingOrderCommand{Actor: p.Actor, BookingID: bookingID(c)}
	result, err := commands.Dispatch[bookingapp.CreateRemainingOrderCommand, *dto.OrderHandle](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) ConfirmRemaining(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := bookingapp.ConfirmRemainingPaymentCommand{
		Actor:     p.Actor,
		BookingID: bookingID(c),
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	}
	result, err := commands.Dispatch[bookingapp.ConfirmRemainingPaymentCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := cancellationapp.CancelBookingCommand{Actor: p.Actor, BookingID: bookingID(c), Reason: strings.TrimSpace(req.Reason)}
	result, err := commands.Dispatch[cancellationapp.CancelBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Complete(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	cmd := bookingapp.MarkCompletedCommand{Actor: p.Actor, BookingID: bookingID(c)}
	result, err := commands.Dispatch[bookingapp.MarkCompletedCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) AssignSubstitute(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req substituteRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := cancellationapp.AssignSubstituteCommand{Actor: p.Actor, BookingID: bookingID(c), NewGuideID: strings.TrimSpace(req.GuideID)}
	result, err := commands.Dispatch[cancellationapp.AssignSubstituteCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Delete(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	cmd := bookingapp.DeleteBookingCommand{Actor: p.Actor, BookingID: bookingID(c)}
	result, err := commands.Dispatch[bookingapp.DeleteBookingCommand, *bookingapp.DeleteBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) currency(requested string) string {
	if c := strings.TrimSpace(requested); c != "" {
		return c
	}
	return h.Currency
}

func bookingID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

var _ BookingHTTP = BookingHandler{}
