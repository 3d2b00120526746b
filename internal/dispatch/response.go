package dispatch

import (
	"github.com/launchdarkly/go-jsonstream/v3/jreader"

	"github.com/zaikorea/blux-go-client-sdk/internal/inapp"
)

// collectEventsResponse is the decoded body of a collect-events reply. The
// poll delay and the in-app payload are both optional; an absent delay means
// the server wants no further polling, and an absent payload means there is
// nothing to show.
type collectEventsResponse struct {
	hasPollDelay bool
	pollDelayMs  int
	message      *inapp.Message
}

func parseCollectEventsResponse(data []byte) (collectEventsResponse, error) {
	var resp collectEventsResponse
	r := jreader.NewReader(data)
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "next_poll_delay_ms":
			resp.pollDelayMs = r.Int()
			resp.hasPollDelay = true
		case "inapp":
			if inappObj := r.ObjectOrNull(); inappObj.IsDefined() {
				var msg inapp.Message
				for inappObj.Next() {
					switch string(inappObj.Name()) {
					case "notification_id":
						msg.NotificationID = r.String()
					case "html_string":
						msg.HTML = r.String()
					case "inapp_id":
						msg.InappID = r.String()
					case "base_url":
						msg.BaseURL = r.String()
					}
				}
				if r.Error() == nil {
					resp.message = &msg
				}
			}
		}
	}
	if err := r.Error(); err != nil {
		return collectEventsResponse{}, err
	}
	return resp, nil
}
