package bluxevents

import (
	"fmt"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Standard event types recognized by the collect-events service. Custom types
// may be any string that passes the same length validation.
const (
	EventTypePurchase          = "purchase"
	EventTypeOrder             = "order"
	EventTypePageView          = "page_view"
	EventTypeProductDetailView = "product_detail_view"
	EventTypeLike              = "like"
	EventTypeCartAdd           = "cartadd"
	EventTypeRate              = "rate"

	EventTypeRecommendationView   = "recommendation_view"
	EventTypeSectionView          = "section_view"
	EventTypePageVisit            = "page_visit"
	EventTypePersistentImpression = "persistent_impression"

	// Event types emitted by the SDK itself rather than the application.
	EventTypeInappDelivered = "inapp_delivered"
	EventTypeInappOpened    = "inapp_opened"
	EventTypePushDelivered  = "push_delivered"
	EventTypePushClicked    = "push_clicked"
)

const (
	minFieldLength = 1
	maxFieldLength = 500

	maxRating = 5
)

// Event is one user or system action to be delivered to the collect-events
// endpoint.
//
// The identity references (BluxID, DeviceID, UserID) are deliberately left
// empty by the builders: sign-in or sign-out may happen between event creation
// and delivery, so the transmitter stamps them from the identity store
// immediately before each send (see WithIdentity).
type Event struct {
	Type       string
	CapturedAt time.Time

	BluxID   ldvalue.OptionalString
	DeviceID ldvalue.OptionalString
	UserID   ldvalue.OptionalString

	ItemID  ldvalue.OptionalString
	OrderID ldvalue.OptionalString
	Page    ldvalue.OptionalString

	// Price and Rating are ldvalue.Null() when unset.
	Price  ldvalue.Value
	Rating ldvalue.Value

	Custom map[string]ldvalue.Value
}

// Identity is the set of identity references stamped onto events at send time.
type Identity struct {
	BluxID   ldvalue.OptionalString
	DeviceID ldvalue.OptionalString
	UserID   ldvalue.OptionalString
}

// WithIdentity returns a copy of the event with the identity references set.
// The original event is not modified.
func (e Event) WithIdentity(id Identity) Event {
	e.BluxID = id.BluxID
	e.DeviceID = id.DeviceID
	e.UserID = id.UserID
	return e
}

// ValidationError is returned by builders when a field fails length or range
// validation. It is the only error surfaced synchronously by this SDK.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid event field %q: %s", e.Field, e.Message)
}

func validateString(field, value string, min, max int) error {
	if len(value) < min || len(value) > max {
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("length must be between %d and %d", min, max),
		}
	}
	return nil
}

func validateOptionalString(field, value string, max int) error {
	if value == "" {
		return nil
	}
	return validateString(field, value, minFieldLength, max)
}

// validateCustomValue enforces the tagged-union contract for custom
// properties: string, integer, double, boolean, null, or an array of strings.
// Objects and heterogeneous arrays are rejected rather than probed.
func validateCustomValue(name string, value ldvalue.Value) error {
	switch value.Type() {
	case ldvalue.NullType, ldvalue.BoolType, ldvalue.NumberType, ldvalue.StringType:
		return nil
	case ldvalue.ArrayType:
		for i := 0; i < value.Count(); i++ {
			if value.GetByIndex(i).Type() != ldvalue.StringType {
				return ValidationError{
					Field:   name,
					Message: "array-valued custom properties may contain only strings",
				}
			}
		}
		return nil
	default:
		return ValidationError{
			Field:   name,
			Message: "custom property values may not be JSON objects",
		}
	}
}

// Builder constructs a single Event with validation at build time.
//
// Builder methods can be chained. If any value fails validation, Build
// returns the first error encountered and a zero Event.
type Builder struct {
	event Event
	err   error
}

// NewBuilder creates a Builder for an event of the given type.
func NewBuilder(eventType string) *Builder {
	b := &Builder{
		event: Event{
			Type:       eventType,
			CapturedAt: time.Now().UTC(),
			Price:      ldvalue.Null(),
			Rating:     ldvalue.Null(),
		},
	}
	if err := validateString("eventType", eventType, minFieldLength, maxFieldLength); err != nil {
		b.err = err
	}
	return b
}

func (b *Builder) setOptional(field, value string, dst *ldvalue.OptionalString) *Builder {
	if b.err == nil {
		if err := validateOptionalString(field, value, maxFieldLength); err != nil {
			b.err = err
			return b
		}
		if value != "" {
			*dst = ldvalue.NewOptionalString(value)
		}
	}
	return b
}

// ItemID sets the item id standard property (1..500 characters).
func (b *Builder) ItemID(itemID string) *Builder {
	return b.setOptional("itemId", itemID, &b.event.ItemID)
}

// OrderID sets the order id standard property.
func (b *Builder) OrderID(orderID string) *Builder {
	return b.setOptional("orderId", orderID, &b.event.OrderID)
}

// Page sets the page standard property.
func (b *Builder) Page(page string) *Builder {
	return b.setOptional("page", page, &b.event.Page)
}

// Section records which named surface of the application produced the event,
// as the "section" custom property.
func (b *Builder) Section(section string) *Builder {
	if b.err == nil {
		if err := validateOptionalString("section", section, maxFieldLength); err != nil {
			b.err = err
			return b
		}
		if section != "" {
			b.CustomProperty("section", ldvalue.String(section))
		}
	}
	return b
}

// RecommendationID ties the event to the recommendation that produced the
// displayed content, as the "recommendation_id" custom property.
func (b *Builder) RecommendationID(recommendationID string) *Builder {
	if b.err == nil {
		if err := validateOptionalString("recommendationId", recommendationID, maxFieldLength); err != nil {
			b.err = err
			return b
		}
		if recommendationID != "" {
			b.CustomProperty("recommendation_id", ldvalue.String(recommendationID))
		}
	}
	return b
}

// Position records where in a list or section the item appeared, as the
// "position" custom property. Negative positions are rejected.
func (b *Builder) Position(position float64) *Builder {
	if b.err == nil {
		if position < 0 {
			b.err = ValidationError{Field: "position", Message: "must not be negative"}
		} else {
			b.CustomProperty("position", ldvalue.Float64(position))
		}
	}
	return b
}

// Price sets the price standard property. Negative prices are rejected.
func (b *Builder) Price(price float64) *Builder {
	if b.err == nil {
		if price < 0 {
			b.err = ValidationError{Field: "price", Message: "must not be negative"}
		} else {
			b.event.Price = ldvalue.Float64(price)
		}
	}
	return b
}

// Rating sets the rating standard property (0..5).
func (b *Builder) Rating(rating float64) *Builder {
	if b.err == nil {
		if rating < 0 || rating > maxRating {
			b.err = ValidationError{
				Field:   "rating",
				Message: fmt.Sprintf("must be between 0 and %d", maxRating),
			}
		} else {
			b.event.Rating = ldvalue.Float64(rating)
		}
	}
	return b
}

// CustomProperty sets one entry in the open-ended custom properties map.
// Allowed value kinds are string, number, boolean, null, and string arrays.
func (b *Builder) CustomProperty(name string, value ldvalue.Value) *Builder {
	if b.err == nil {
		if err := validateString("customPropertyName", name, minFieldLength, maxFieldLength); err != nil {
			b.err = err
			return b
		}
		if err := validateCustomValue(name, value); err != nil {
			b.err = err
			return b
		}
		if b.event.Custom == nil {
			b.event.Custom = make(map[string]ldvalue.Value)
		}
		b.event.Custom[name] = value
	}
	return b
}

// CustomProperties sets multiple custom properties at once.
func (b *Builder) CustomProperties(props map[string]ldvalue.Value) *Builder {
	for name, value := range props {
		b.CustomProperty(name, value)
	}
	return b
}

// CapturedAt overrides the capture timestamp. Intended for replaying
// previously captured actions; new events default to the current time.
func (b *Builder) CapturedAt(t time.Time) *Builder {
	if b.err == nil {
		b.event.CapturedAt = t.UTC()
	}
	return b
}

// Build returns the validated event, or the first validation error.
func (b *Builder) Build() (Event, error) {
	if b.err != nil {
		return Event{}, b.err
	}
	e := b.event
	if len(b.event.Custom) != 0 {
		e.Custom = make(map[string]ldvalue.Value, len(b.event.Custom))
		for k, v := range b.event.Custom {
			e.Custom[k] = v
		}
	}
	return e, nil
}
