package bluxevents

import (
	"time"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/slices"
)

// WriteToJSONWriter writes the event in the collect-events wire format.
// Identity references that were never stamped are omitted rather than sent as
// null.
func (e Event) WriteToJSONWriter(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("event_type").String(e.Type)
	obj.Name("captured_at").String(e.CapturedAt.UTC().Format(time.RFC3339))
	writeOptionalString(&obj, "blux_id", e.BluxID)
	writeOptionalString(&obj, "device_id", e.DeviceID)
	writeOptionalString(&obj, "user_id", e.UserID)
	writeOptionalString(&obj, "item_id", e.ItemID)
	writeOptionalString(&obj, "order_id", e.OrderID)
	writeOptionalString(&obj, "page", e.Page)
	if !e.Price.IsNull() {
		obj.Name("price").Float64(e.Price.Float64Value())
	}
	if !e.Rating.IsNull() {
		obj.Name("rating").Float64(e.Rating.Float64Value())
	}
	if len(e.Custom) > 0 {
		propsObj := obj.Name("event_properties").Object()
		for _, name := range sortedKeys(e.Custom) {
			e.Custom[name].WriteToJSONWriter(propsObj.Name(name))
		}
		propsObj.End()
	}
	obj.End()
}

// JSONString returns the event's wire representation, for logging and tests.
func (e Event) JSONString() string {
	w := jwriter.NewWriter()
	e.WriteToJSONWriter(&w)
	return string(w.Bytes())
}

func writeOptionalString(obj *jwriter.ObjectState, name string, value ldvalue.OptionalString) {
	if s, ok := value.Get(); ok {
		obj.Name(name).String(s)
	}
}

// sortedKeys gives the custom properties a stable wire order so payloads are
// reproducible in tests and server-side de-duplication.
func sortedKeys(m map[string]ldvalue.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
