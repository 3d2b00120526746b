// Package identity maintains the device/user identity used to scope every
// backend operation: the server-assigned blux id and device id, the
// application-assigned user id, and the org (client) id.
//
// Identity values are always read from the preference store at the moment of
// use, never cached by callers, because sign-in and sign-out can change them
// between an event's creation and its delivery.
package identity

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/sync/singleflight"

	"github.com/zaikorea/blux-go-client-sdk/bluxevents"
	"github.com/zaikorea/blux-go-client-sdk/internal/endpoints"
	"github.com/zaikorea/blux-go-client-sdk/internal/prefs"
	"github.com/zaikorea/blux-go-client-sdk/internal/transport"
)

// DeviceInfo describes the device/runtime environment reported at
// registration time.
type DeviceInfo struct {
	Platform     string `json:"platform"`
	DeviceModel  string `json:"device_model,omitempty"`
	OSVersion    string `json:"os_version,omitempty"`
	SDKVersion   string `json:"sdk_version"`
	SDKType      string `json:"sdk_type"`
	Timezone     string `json:"timezone,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
}

// DefaultDeviceInfo fills in what can be determined from the Go runtime.
func DefaultDeviceInfo(sdkType, sdkVersion string) DeviceInfo {
	zone, _ := time.Now().Zone()
	return DeviceInfo{
		Platform:    "go",
		DeviceModel: runtime.GOOS + "/" + runtime.GOARCH,
		SDKVersion:  sdkVersion,
		SDKType:     sdkType,
		Timezone:    zone,
	}
}

// Manager reads and updates identity state in the preference store and
// performs device registration against the backend.
type Manager struct {
	store    prefs.Store
	sender   transport.Sender
	clientID string
	info     DeviceInfo
	loggers  ldlog.Loggers

	registerGroup singleflight.Group
}

// NewManager creates a Manager. If the stored client id differs from the one
// configured now, the device identity is reset so the device re-registers
// under the new client (matching the behavior of SDK re-initialization with a
// different org).
func NewManager(
	store prefs.Store,
	sender transport.Sender,
	clientID string,
	info DeviceInfo,
	loggers ldlog.Loggers,
) *Manager {
	if saved, ok := store.Get(prefs.KeyClientID); !ok || saved != clientID {
		_ = store.Delete(prefs.KeyDeviceID)
		_ = store.Delete(prefs.KeyBluxID)
		_ = store.Delete(prefs.KeyUserID)
		_ = store.Set(prefs.KeyClientID, clientID)
	}
	return &Manager{
		store:    store,
		sender:   sender,
		clientID: clientID,
		info:     info,
		loggers:  loggers,
	}
}

// ClientID returns the org/application id.
func (m *Manager) ClientID() string {
	return m.clientID
}

// BluxID returns the org-scoped user id, if registered.
func (m *Manager) BluxID() ldvalue.OptionalString {
	return m.get(prefs.KeyBluxID)
}

// DeviceID returns the device id, if registered.
func (m *Manager) DeviceID() ldvalue.OptionalString {
	return m.get(prefs.KeyDeviceID)
}

// UserID returns the application-assigned user id, if signed in.
func (m *Manager) UserID() ldvalue.OptionalString {
	return m.get(prefs.KeyUserID)
}

// Current returns a snapshot of the identity references for stamping onto
// outgoing events. The snapshot is taken at call time; callers must not hold
// onto it across sends.
func (m *Manager) Current() bluxevents.Identity {
	return bluxevents.Identity{
		BluxID:   m.BluxID(),
		DeviceID: m.DeviceID(),
		UserID:   m.UserID(),
	}
}

func (m *Manager) get(key string) ldvalue.OptionalString {
	if v, ok := m.store.Get(key); ok && v != "" {
		return ldvalue.NewOptionalString(v)
	}
	return ldvalue.OptionalString{}
}

type registerRequestBody struct {
	DeviceInfo
	DeviceID string `json:"device_id,omitempty"`
}

type registerResponseBody struct {
	BluxID   string `json:"blux_id"`
	DeviceID string `json:"device_id"`
}

// RegisterOrActivate registers this device with the backend, or re-activates
// it if a device id is already stored. Concurrent calls are collapsed into a
// single request. On success the returned identity has been persisted.
func (m *Manager) RegisterOrActivate() error {
	_, err, _ := m.registerGroup.Do("register", func() (interface{}, error) {
		return nil, m.register()
	})
	return err
}

func (m *Manager) register() error {
	savedDeviceID, hadDevice := m.store.Get(prefs.KeyDeviceID)
	if hadDevice {
		m.loggers.Debugf("Saved device id exists, re-activating device")
	} else {
		m.loggers.Debug("No saved device id, registering new device")
	}

	body, err := json.Marshal(registerRequestBody{DeviceInfo: m.info, DeviceID: savedDeviceID})
	if err != nil {
		return err
	}
	respBody, err := m.sender.PostJSON(m.applicationPath(endpoints.InitializeUserPath), body)
	if err != nil {
		return err
	}
	var resp registerResponseBody
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return err
	}
	if resp.DeviceID == "" {
		// Older backend deployments leave id assignment to the client.
		deviceUUID, _ := uuid.NewRandom()
		resp.DeviceID = deviceUUID.String()
	}
	if err := m.store.Set(prefs.KeyBluxID, resp.BluxID); err != nil {
		return err
	}
	if err := m.store.Set(prefs.KeyDeviceID, resp.DeviceID); err != nil {
		return err
	}
	if !hadDevice {
		// A fresh registration starts signed out.
		if err := m.store.Delete(prefs.KeyUserID); err != nil {
			return err
		}
	}
	m.loggers.Debugf("Device registered with blux id %s", resp.BluxID)
	return nil
}

type updateUserRequestBody struct {
	UserID *string `json:"user_id"`
}

type updateUserPropertiesRequestBody struct {
	UserProperties map[string]ldvalue.Value `json:"user_properties"`
}

// SetUserID associates (or, with an empty string, clears) the
// application-assigned user id for this device. It is a silent no-op when the
// device has not finished registering.
func (m *Manager) SetUserID(userID string) error {
	bluxID, ok1 := m.store.Get(prefs.KeyBluxID)
	deviceID, ok2 := m.store.Get(prefs.KeyDeviceID)
	if !ok1 || !ok2 {
		m.loggers.Debug("Ignoring SetUserID before device registration")
		return nil
	}

	var idValue *string
	if userID != "" {
		idValue = &userID
	}
	body, err := json.Marshal(updateUserRequestBody{UserID: idValue})
	if err != nil {
		return err
	}
	path := m.applicationPath(fmt.Sprintf("/blux-users/%s/devices/%s", bluxID, deviceID))
	if _, err := m.sender.PutJSON(path, body); err != nil {
		return err
	}
	if userID == "" {
		return m.store.Delete(prefs.KeyUserID)
	}
	return m.store.Set(prefs.KeyUserID, userID)
}

// UserProperties are profile attributes attached to the registered user.
// Empty strings mean "leave unset".
type UserProperties struct {
	PhoneNumber  string
	EmailAddress string
	Custom       map[string]ldvalue.Value
}

// SetUserProperties pushes profile attributes for the current user to the
// backend. Like SetUserID it is a silent no-op before device registration.
func (m *Manager) SetUserProperties(props UserProperties) error {
	bluxID, ok1 := m.store.Get(prefs.KeyBluxID)
	deviceID, ok2 := m.store.Get(prefs.KeyDeviceID)
	if !ok1 || !ok2 {
		m.loggers.Debug("Ignoring SetUserProperties before device registration")
		return nil
	}

	merged := make(map[string]ldvalue.Value, len(props.Custom)+2)
	for k, v := range props.Custom {
		merged[k] = v
	}
	if props.PhoneNumber != "" {
		merged["phone_number"] = ldvalue.String(props.PhoneNumber)
	}
	if props.EmailAddress != "" {
		merged["email_address"] = ldvalue.String(props.EmailAddress)
	}
	body, err := json.Marshal(updateUserPropertiesRequestBody{UserProperties: merged})
	if err != nil {
		return err
	}
	path := m.applicationPath(fmt.Sprintf("/blux-users/%s/devices/%s", bluxID, deviceID))
	_, err = m.sender.PutJSON(path, body)
	return err
}

func (m *Manager) applicationPath(suffix string) string {
	return "/applications/" + m.clientID + suffix
}
