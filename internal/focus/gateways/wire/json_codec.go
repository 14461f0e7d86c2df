package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

// ErrMalformedMessage is returned when a message is not a JSON object of
// the expected shape.
var ErrMalformedMessage = errors.New("malformed control message")

type requestJSON struct {
	Type            string          `json:"type"`
	DurationMinutes json.RawMessage `json:"durationMinutes,omitempty"`
	URL             string          `json:"url,omitempty"`
	Sites           []string        `json:"sites,omitempty"`
	Index           *int            `json:"index,omitempty"`
}

type responseJSON struct {
	Status     string  `json:"status,omitempty"`
	Error      string  `json:"error,omitempty"`
	IsBlocking *bool   `json:"isBlocking,omitempty"`
	BlockEnd   *int64  `json:"blockEnd,omitempty"`
	Blocked    *bool   `json:"blocked,omitempty"`
	RuleID     *uint32 `json:"ruleId,omitempty"`
	Pattern    string  `json:"pattern,omitempty"`
	Source     string  `json:"source,omitempty"`
	// Sites is a pointer so an empty list still encodes as [].
	Sites *[]string `json:"sites,omitempty"`
}

type jsonCodec struct{}

// NewJSONCodec returns the JSON lines ControlCodec.
func NewJSONCodec() ControlCodec { return jsonCodec{} }

func (jsonCodec) DecodeRequest(data []byte) (domain.ControlRequest, error) {
	var raw requestJSON
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return domain.ControlRequest{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if raw.Type == "" {
		return domain.ControlRequest{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	req := domain.ControlRequest{
		Type:            domain.RequestType(raw.Type),
		DurationMinutes: coerceMinutes(raw.DurationMinutes),
		URL:             strings.TrimSpace(raw.URL),
		Sites:           raw.Sites,
	}
	if req.Type == domain.RequestSitesRemove {
		if raw.Index == nil {
			return domain.ControlRequest{}, fmt.Errorf("%w: missing index", ErrMalformedMessage)
		}
		req.Index = *raw.Index
	}
	return req, nil
}

// coerceMinutes accepts a JSON number or a numeric string. Anything else,
// including null or a missing field, yields 0 so the default applies.
func coerceMinutes(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return 0
}

func (jsonCodec) EncodeResponse(resp domain.ControlResponse) ([]byte, error) {
	var out responseJSON
	switch {
	case resp.Failed():
		out.Status = resp.Status
		out.Error = resp.Error
	case resp.Type == domain.RequestStart:
		out.Status = domain.StatusStarted
		out.BlockEnd = ptr(unixMillis(resp.BlockEnd))
	case resp.Type == domain.RequestStop:
		out.Status = domain.StatusStopped
	case resp.Type == domain.RequestStatus:
		out.IsBlocking = ptr(resp.IsBlocking)
		out.BlockEnd = ptr(unixMillis(resp.BlockEnd))
	case resp.Type == domain.RequestCheck:
		out.Blocked = ptr(resp.Decision.Blocked)
		if resp.Decision.Blocked {
			out.RuleID = ptr(resp.Decision.RuleID)
			out.Pattern = resp.Decision.Pattern
			out.Source = resp.Decision.Source
		}
	case resp.Type.IsSiteEdit():
		out.Status = resp.Status
		out.Sites = ptr(resp.Sites)
		if resp.Sites == nil {
			out.Sites = ptr([]string{})
		}
	default:
		out.Status = resp.Status
	}
	return json.Marshal(out)
}

func (jsonCodec) EncodeRequest(req domain.ControlRequest) ([]byte, error) {
	raw := requestJSON{Type: string(req.Type), URL: req.URL, Sites: req.Sites}
	if req.Type == domain.RequestSitesRemove {
		raw.Index = ptr(req.Index)
	}
	if req.DurationMinutes != 0 {
		b, err := json.Marshal(req.DurationMinutes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		raw.DurationMinutes = b
	}
	return json.Marshal(raw)
}

func (jsonCodec) DecodeResponse(reqType domain.RequestType, data []byte) (domain.ControlResponse, error) {
	var raw responseJSON
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return domain.ControlResponse{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	resp := domain.ControlResponse{Type: reqType, Status: raw.Status, Error: raw.Error}
	if raw.IsBlocking != nil {
		resp.IsBlocking = *raw.IsBlocking
	}
	if raw.BlockEnd != nil && *raw.BlockEnd > 0 {
		resp.BlockEnd = time.UnixMilli(*raw.BlockEnd).UTC()
	}
	if resp.Status == domain.StatusStarted {
		resp.IsBlocking = true
	}
	if raw.Sites != nil {
		resp.Sites = *raw.Sites
	}
	if raw.Blocked != nil {
		resp.Decision.Blocked = *raw.Blocked
		resp.Decision.Pattern = raw.Pattern
		resp.Decision.Source = raw.Source
		if raw.RuleID != nil {
			resp.Decision.RuleID = *raw.RuleID
		}
	}
	return resp, nil
}

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func ptr[T any](v T) *T { return &v }
