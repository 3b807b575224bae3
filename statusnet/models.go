package statusnet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeFormat is the Twitter-compatible created_at layout StatusNet uses
const TimeFormat = time.RubyDate

// ID is a status or user identifier.
// StatusNet sends ids as JSON numbers, other servers send strings, and
// reply targets are often null, so all three are accepted.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id %s: %w", string(b), err)
		}
		*id = ID(n.String())
	}
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, ok := id.Int(); ok && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Int returns the numeric value of the id, if it has one
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (id ID) String() string {
	return string(id)
}

// FlexInt is an integer that StatusNet sometimes sends as a quoted string
type FlexInt int64

func (v *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("integer %s: %w", string(b), err)
	}
	*v = FlexInt(n)
	return nil
}

// FlexBool is a boolean that StatusNet sometimes sends as "0"/"1" or 0/1
type FlexBool bool

func (v *FlexBool) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`))
	switch s {
	case "true", "1", "yes", "on":
		*v = true
	case "false", "0", "no", "off", "", "null":
		*v = false
	default:
		return fmt.Errorf("boolean %s: unrecognized value", string(b))
	}
	return nil
}

// User is the author of a status
type User struct {
	ID               ID     `json:"id"`
	ScreenName       string `json:"screen_name"`
	Name             string `json:"name,omitempty"`
	ProfileImageURL  string `json:"profile_image_url,omitempty"`
	ProfileURL       string `json:"statusnet_profile_url,omitempty"`
	URL              string `json:"url,omitempty"`
	Description      string `json:"description,omitempty"`
	StatusesCount    int    `json:"statuses_count,omitempty"`
	FollowersCount   int    `json:"followers_count,omitempty"`
	FriendsCount     int    `json:"friends_count,omitempty"`
	ProtectedAccount bool   `json:"protected,omitempty"`
}

// Status is a Twitter-compatible status with the StatusNet extensions
type Status struct {
	ID                  ID       `json:"id"`
	Text                string   `json:"text"`
	Truncated           bool     `json:"truncated"`
	CreatedAt           string   `json:"created_at"`
	InReplyToStatusID   ID       `json:"in_reply_to_status_id"`
	InReplyToUserID     ID       `json:"in_reply_to_user_id"`
	InReplyToScreenName string   `json:"in_reply_to_screen_name,omitempty"`
	ConversationID      ID       `json:"statusnet_conversation_id"`
	HTML                string   `json:"statusnet_html,omitempty"`
	URI                 string   `json:"uri,omitempty"`
	URL                 string   `json:"external_url,omitempty"`
	Source              string   `json:"source,omitempty"`
	Favorited           FlexBool `json:"favorited"`
	Repeated            FlexBool `json:"repeated"`
	User                *User    `json:"user,omitempty"`

	Raw json.RawMessage `json:"-"` // document as received
}

// Timestamp parses CreatedAt, returning the zero time if it can't
func (s Status) Timestamp() time.Time {
	for _, layout := range []string{TimeFormat, time.RFC3339} {
		if t, err := time.Parse(layout, s.CreatedAt); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ScreenName is the author's screen name, if the status carries a user
func (s Status) ScreenName() string {
	if s.User == nil {
		return ""
	}
	return s.User.ScreenName
}

// JSON returns the received document, or marshals the status if there is none
func (s Status) JSON() []byte {
	if len(s.Raw) > 0 {
		return s.Raw
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return b
}

// ParseStatus decodes a single status document
func ParseStatus(b []byte) (Status, error) {
	var s Status
	if isNull(b) {
		return s, fmt.Errorf("empty status document")
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("decoding status: %w", err)
	}
	s.Raw = append(json.RawMessage(nil), bytes.TrimSpace(b)...)
	return s, nil
}

// ParseStatuses decodes a status list. An empty array is a valid result,
// a null document is not.
func ParseStatuses(b []byte) ([]Status, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return nil, fmt.Errorf("decoding status list: %w", err)
	}
	if raws == nil {
		return nil, fmt.Errorf("decoding status list: null document")
	}
	statuses := make([]Status, 0, len(raws))
	for i, raw := range raws {
		s, err := ParseStatus(raw)
		if err != nil {
			return nil, fmt.Errorf("status %d: %w", i, err)
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

type SiteConfig struct {
	Name           string   `json:"name"`
	Server         string   `json:"server"`
	Theme          string   `json:"theme,omitempty"`
	Logo           string   `json:"logo,omitempty"`
	Language       string   `json:"language,omitempty"`
	Email          string   `json:"email,omitempty"`
	BroughtBy      string   `json:"broughtby,omitempty"`
	BroughtByURL   string   `json:"broughtbyurl,omitempty"`
	Timezone       string   `json:"timezone,omitempty"`
	Closed         FlexBool `json:"closed"`
	InviteOnly     FlexBool `json:"inviteonly"`
	Private        FlexBool `json:"private"`
	TextLimit      FlexInt  `json:"textlimit"`
	SSL            string   `json:"ssl,omitempty"`
	SSLServer      string   `json:"sslserver,omitempty"`
	ShortURLLength FlexInt  `json:"shorturllength"`
}

type LicenseConfig struct {
	Type  string `json:"type,omitempty"`
	Owner string `json:"owner,omitempty"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
	Image string `json:"image,omitempty"`
}

type AttachmentsConfig struct {
	Uploads   FlexBool `json:"uploads"`
	FileQuota FlexInt  `json:"file_quota"`
}

type ThrottleConfig struct {
	Enabled  FlexBool `json:"enabled"`
	Count    FlexInt  `json:"count"`
	Timespan FlexInt  `json:"timespan"`
}

type URLConfig struct {
	MaxURLLength    FlexInt `json:"maxurllength"`
	MaxNoticeLength FlexInt `json:"maxnoticelength"`
}

type IntegrationConfig struct {
	Source string `json:"source,omitempty"`
}

// ServerConfig is the document served at /statusnet/config.json
type ServerConfig struct {
	Site        SiteConfig        `json:"site"`
	License     LicenseConfig     `json:"license"`
	Attachments AttachmentsConfig `json:"attachments"`
	Throttle    ThrottleConfig    `json:"throttle"`
	URL         URLConfig         `json:"url"`
	Integration IntegrationConfig `json:"integration"`

	Raw json.RawMessage `json:"-"` // document as received
}

// TextLimit is the maximum notice length, 0 meaning unlimited
func (c ServerConfig) TextLimit() int {
	if c.Site.TextLimit < 0 {
		return 0
	}
	return int(c.Site.TextLimit)
}

// JSON returns the received document, or marshals the config if there is none
func (c ServerConfig) JSON() []byte {
	if len(c.Raw) > 0 {
		return c.Raw
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	return b
}

// ParseServerConfig decodes a config document, which must be a JSON object
func ParseServerConfig(b []byte) (ServerConfig, error) {
	var c ServerConfig
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return c, fmt.Errorf("decoding config: not a json object")
	}
	if err := json.Unmarshal(trimmed, &c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	c.Raw = append(json.RawMessage(nil), trimmed...)
	return c, nil
}

func isNull(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}
