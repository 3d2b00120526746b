package bluxevents

import (
	"strconv"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Request is an ordered group of events submitted to the SDK together. The
// order of events in a request is preserved through batching and delivery.
type Request struct {
	events []Event
}

// NewRequest wraps already-built events in a Request.
func NewRequest(events ...Event) Request {
	return Request{events: events}
}

// Events returns the events in submission order.
func (r Request) Events() []Event {
	return r.events
}

// PurchaseBuilder accumulates purchase events. The reported price of each
// purchase is the unit price multiplied by the quantity, and the quantity is
// recorded as the custom property "quantity" (stringified), matching the
// collect-events contract.
type PurchaseBuilder struct {
	events []Event
	err    error
}

// Purchase creates a PurchaseBuilder.
func Purchase() *PurchaseBuilder {
	return &PurchaseBuilder{}
}

// Add appends one purchase of quantity units of an item at the given unit
// price.
func (b *PurchaseBuilder) Add(itemID string, unitPrice float64, quantity int) *PurchaseBuilder {
	return b.AddWithOptions(itemID, unitPrice, quantity, "", nil)
}

// AddWithOptions appends one purchase with an optional order id and custom
// properties.
func (b *PurchaseBuilder) AddWithOptions(
	itemID string,
	unitPrice float64,
	quantity int,
	orderID string,
	custom map[string]ldvalue.Value,
) *PurchaseBuilder {
	if b.err != nil {
		return b
	}
	if quantity <= 0 {
		b.err = ValidationError{Field: "quantity", Message: "must be positive"}
		return b
	}
	if itemID == "" {
		b.err = ValidationError{Field: "itemId", Message: "must not be empty"}
		return b
	}
	eb := NewBuilder(EventTypePurchase).
		ItemID(itemID).
		Price(unitPrice * float64(quantity)).
		CustomProperties(custom).
		CustomProperty("quantity", ldvalue.String(strconv.Itoa(quantity)))
	if orderID != "" {
		eb.OrderID(orderID)
	}
	e, err := eb.Build()
	if err != nil {
		b.err = err
		return b
	}
	b.events = append(b.events, e)
	return b
}

// Build returns the accumulated purchases as a Request.
func (b *PurchaseBuilder) Build() (Request, error) {
	if b.err != nil {
		return Request{}, b.err
	}
	return NewRequest(b.events...), nil
}

// OrderBuilder accumulates order events. Each item line becomes one event
// carrying the shared order id, with price and quantity recorded the same way
// as purchases.
type OrderBuilder struct {
	orderID string
	events  []Event
	err     error
}

// Order creates an OrderBuilder for the given order id.
func Order(orderID string) *OrderBuilder {
	b := &OrderBuilder{orderID: orderID}
	if orderID == "" {
		b.err = ValidationError{Field: "orderId", Message: "must not be empty"}
	}
	return b
}

// Add appends one order line of quantity units of an item at the given unit
// price.
func (b *OrderBuilder) Add(itemID string, unitPrice float64, quantity int) *OrderBuilder {
	if b.err != nil {
		return b
	}
	if quantity <= 0 {
		b.err = ValidationError{Field: "quantity", Message: "must be positive"}
		return b
	}
	if itemID == "" {
		b.err = ValidationError{Field: "itemId", Message: "must not be empty"}
		return b
	}
	e, err := NewBuilder(EventTypeOrder).
		ItemID(itemID).
		OrderID(b.orderID).
		Price(unitPrice * float64(quantity)).
		CustomProperty("quantity", ldvalue.String(strconv.Itoa(quantity))).
		Build()
	if err != nil {
		b.err = err
		return b
	}
	b.events = append(b.events, e)
	return b
}

// Build returns the accumulated order lines as a Request.
func (b *OrderBuilder) Build() (Request, error) {
	if b.err != nil {
		return Request{}, b.err
	}
	return NewRequest(b.events...), nil
}

// PageView builds a single page-view event request.
func PageView(page string) (Request, error) {
	if err := required("page", page); err != nil {
		return Request{}, err
	}
	return single(NewBuilder(EventTypePageView).Page(page))
}

// ProductDetailView builds a single product-detail-view event request.
func ProductDetailView(itemID string) (Request, error) {
	if err := required("itemId", itemID); err != nil {
		return Request{}, err
	}
	return single(NewBuilder(EventTypeProductDetailView).ItemID(itemID))
}

// Like builds a single like event request.
func Like(itemID string) (Request, error) {
	if err := required("itemId", itemID); err != nil {
		return Request{}, err
	}
	return single(NewBuilder(EventTypeLike).ItemID(itemID))
}

// CartAdd builds a single cart-add event request.
func CartAdd(itemID string) (Request, error) {
	if err := required("itemId", itemID); err != nil {
		return Request{}, err
	}
	return single(NewBuilder(EventTypeCartAdd).ItemID(itemID))
}

// Rate builds a single rating event request. The rating must be within 0..5.
func Rate(itemID string, rating float64) (Request, error) {
	if err := required("itemId", itemID); err != nil {
		return Request{}, err
	}
	return single(NewBuilder(EventTypeRate).ItemID(itemID).Rating(rating))
}

// RecommendationView builds a single recommendation-view event request.
func RecommendationView(itemID string) (Request, error) {
	if err := required("itemId", itemID); err != nil {
		return Request{}, err
	}
	return single(NewBuilder(EventTypeRecommendationView).ItemID(itemID))
}

// SectionView builds a single section-view event request. The recommendation
// id may be empty when the section did not come from a recommendation.
func SectionView(section, recommendationID string) (Request, error) {
	if err := required("section", section); err != nil {
		return Request{}, err
	}
	return single(NewBuilder(EventTypeSectionView).
		Section(section).
		RecommendationID(recommendationID))
}

// PageVisit builds a single page-visit event request. Context goes in custom
// properties via NewBuilder when needed.
func PageVisit() (Request, error) {
	return single(NewBuilder(EventTypePageVisit))
}

// PersistentImpression builds a single persistent-impression event request:
// the item was visibly on screen at the given position of a page section.
func PersistentImpression(itemID, page, section string, position float64) (Request, error) {
	if err := required("itemId", itemID); err != nil {
		return Request{}, err
	}
	if err := required("page", page); err != nil {
		return Request{}, err
	}
	if err := required("section", section); err != nil {
		return Request{}, err
	}
	return single(NewBuilder(EventTypePersistentImpression).
		ItemID(itemID).
		Page(page).
		Section(section).
		Position(position))
}

func required(field, value string) error {
	if value == "" {
		return ValidationError{Field: field, Message: "must not be empty"}
	}
	return nil
}

func single(b *Builder) (Request, error) {
	e, err := b.Build()
	if err != nil {
		return Request{}, err
	}
	return NewRequest(e), nil
}
