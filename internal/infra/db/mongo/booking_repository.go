package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"getmyguide/internal/domain/booking"
	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/pricing"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/money"
	"getmyguide/internal/domain/user"
)

const (
	bookingsCollection = "bookings"
	paymentOrdersIndex = "payment_orders_unique"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

// EnsureIndexes creates the order uniqueness index used to reject a payment
// settling two bookings or two phases, plus the lookup indexes. The index is
// multikey over advance and balance orders, so an order id is unique across
// both phases of every booking.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "payment_orders", Value: 1}},
			Options: options.Index().
				SetName(paymentOrdersIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"payment_orders": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "guide_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_date", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, models)
	return err
}

func (r *BookingRepository) ByID(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, classify("bookings.find", err)
	}
	return doc.toAggregate(), nil
}

// Save inserts version zero bookings and otherwise replaces the document
// whose stored version still equals b.Version.
func (r *BookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	if b.Version == 0 {
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			return r.writeError("bookings.insert", err)
		}
		b.Version = doc.Version
		return nil
	}
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": b.Version}, doc)
	if err != nil {
		return r.writeError("bookings.replace", err)
	}
	if res.MatchedCount == 0 {
		return booking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) Delete(ctx context.Context, id booking.ID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return classify("bookings.delete", err)
	}
	if res.DeletedCount == 0 {
		return booking.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) List(ctx context.Context, filter booking.ListFilter) ([]*booking.Booking, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = string(filter.UserID)
	}
	if filter.GuideID != "" {
		query["guide_id"] = string(filter.GuideID)
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *BookingRepository) DueReminders(ctx context.Context, day time.Time) ([]*booking.Booking, error) {
	query := bson.M{
		"status":         string(booking.StatusUpcoming),
		"payment_status": string(booking.PaymentAdvancePaid),
		"reminder_sent":  false,
		"start_date":     daterange.Day(day),
	}
	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (r *BookingRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*booking.Booking, error) {
	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, classify("bookings.find", err)
	}
	defer cur.Close(ctx)
	out := make([]*booking.Booking, 0)
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

func (r *BookingRepository) writeError(op string, err error) error {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.HasErrorCode(11000) {
				if strings.Contains(e.Message, paymentOrdersIndex) {
					return booking.ErrPaymentAlreadyUsed
				}
				return booking.ErrConcurrentUpdate
			}
		}
	}
	if mongo.IsDuplicateKeyError(err) {
		return booking.ErrConcurrentUpdate
	}
	return classify(op, err)
}

type bookingDocument struct {
	ID              string                `bson:"_id"`
	GuideID         string                `bson:"guide_id"`
	OriginalGuideID string                `bson:"original_guide_id,omitempty"`
	UserID          string                `bson:"user_id"`
	UserEmail       string                `bson:"user_email"`
	StartDate       time.Time             `bson:"start_date"`
	EndDate         time.Time             `bson:"end_date"`
	Split           splitDocument         `bson:"split"`
	Status          string                `bson:"status"`
	PaymentStatus   string                `bson:"payment_status"`
	ReminderSent    bool                  `bson:"reminder_sent"`
	CancelledBy     *cancellationDocument `bson:"cancelled_by,omitempty"`
	Advance         paymentDocument       `bson:"advance"`
	Remaining       paymentDocument       `bson:"remaining"`
	PaymentOrders   []string              `bson:"payment_orders,omitempty"`
	RefundIDs       []string              `bson:"refund_ids,omitempty"`
	Location        string                `bson:"location"`
	Travelers       int                   `bson:"travelers"`
	CreatedAt       time.Time             `bson:"created_at"`
	UpdatedAt       time.Time             `bson:"updated_at"`
	Version         int64                 `bson:"version"`
}

type splitDocument struct {
	Currency  string `bson:"currency"`
	Total     int64  `bson:"total"`
	Advance   int64  `bson:"advance"`
	Remaining int64  `bson:"remaining"`
}

type paymentDocument struct {
	OrderID   string `bson:"order_id,omitempty"`
	PaymentID string `bson:"payment_id,omitempty"`
	Signature string `bson:"signature,omitempty"`
}

type cancellationDocument struct {
	ActorID string    `bson:"actor_id"`
	Role    string    `bson:"role"`
	Reason  string    `bson:"reason"`
	At      time.Time `bson:"at"`
}

func newBookingDocument(b *booking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:              string(b.ID),
		GuideID:         string(b.GuideID),
		OriginalGuideID: string(b.OriginalGuideID),
		UserID:          string(b.UserID),
		UserEmail:       b.UserEmail,
		StartDate:       b.Range.Start.UTC(),
		EndDate:         b.Range.End.UTC(),
		Split: splitDocument{
			Currency:  b.Split.Total.Currency,
			Total:     b.Split.Total.Amount,
			Advance:   b.Split.Advance.Amount,
			Remaining: b.Split.Remaining.Amount,
		},
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		ReminderSent:  b.ReminderSent,
		Advance:       paymentDocument(b.Advance),
		Remaining:     paymentDocument(b.Remaining),
		PaymentOrders: b.PaymentOrders(),
		RefundIDs:     b.RefundIDs,
		Location:      b.Location,
		Travelers:     b.Travelers,
		CreatedAt:     b.CreatedAt.UTC(),
		UpdatedAt:     b.UpdatedAt.UTC(),
		Version:       b.Version,
	}
	if c := b.CancelledBy; c != nil {
		doc.CancelledBy = &cancellationDocument{ActorID: string(c.ActorID), Role: string(c.Role), Reason: c.Reason, At: c.At.UTC()}
	}
	return doc
}

func (d bookingDocument) toAggregate() *booking.Booking {
	currency := d.Split.Currency
	b := &booking.Booking{
		ID:              booking.ID(d.ID),
		GuideID:         guide.ID(d.GuideID),
		OriginalGuideID: guide.ID(d.OriginalGuideID),
		UserID:          user.ID(d.UserID),
		UserEmail:       d.UserEmail,
		Range:           daterange.DateRange{Start: daterange.Day(d.StartDate), End: daterange.Day(d.EndDate)},
		Split: pricing.Split{
			Total:     money.Money{Amount: d.Split.Total, Currency: currency},
			Advance:   money.Money{Amount: d.Split.Advance, Currency: currency},
			Remaining: money.Money{Amount: d.Split.Remaining, Currency: currency},
		},
		Status:        booking.Status(d.Status),
		PaymentStatus: booking.PaymentStatus(d.PaymentStatus),
		ReminderSent:  d.ReminderSent,
		Advance:       booking.PaymentRef(d.Advance),
		Remaining:     booking.PaymentRef(d.Remaining),
		RefundIDs:     d.RefundIDs,
		Location:      d.Location,
		Travelers:     d.Travelers,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		Version:       d.Version,
	}
	if c := d.CancelledBy; c != nil {
		b.CancelledBy = &user.Cancellation{ActorID: user.ID(c.ActorID), Role: user.Role(c.Role), Reason: c.Reason, At: c.At.UTC()}
	}
	return b
}
