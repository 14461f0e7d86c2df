package domain

import "time"

// RequestType names a control request.
type RequestType string

const (
	RequestStart  RequestType = "start"
	RequestStop   RequestType = "stop"
	RequestStatus RequestType = "getStatus"
	RequestCheck  RequestType = "check"

	RequestSitesList    RequestType = "sites.list"
	RequestSitesAdd     RequestType = "sites.add"
	RequestSitesRemove  RequestType = "sites.remove"
	RequestSitesReplace RequestType = "sites.replace"
)

// Response status values.
const (
	StatusStarted  = "started"
	StatusStopped  = "stopped"
	StatusDeclined = "declined"
	StatusUpdated  = "updated"
	StatusError    = "error"
)

// ControlRequest is a decoded command from a control client. A
// DurationMinutes of zero means "use the default". Sites carries the
// specifiers for sites.add and sites.replace, Index the position for
// sites.remove.
type ControlRequest struct {
	Type            RequestType
	DurationMinutes float64
	URL             string
	Sites           []string
	Index           int
}

// ControlResponse is the single answer to one ControlRequest. Type selects
// which fields are meaningful.
type ControlResponse struct {
	Type       RequestType
	Status     string
	Error      string
	IsBlocking bool
	BlockEnd   time.Time
	Decision   BlockDecision
	Sites      []string
}

// ErrorResponse builds a failed response for a request type.
func ErrorResponse(t RequestType, err error) ControlResponse {
	return ControlResponse{Type: t, Status: StatusError, Error: err.Error()}
}

// IsSiteEdit reports whether t reads or edits the site list.
func (t RequestType) IsSiteEdit() bool {
	switch t {
	case RequestSitesList, RequestSitesAdd, RequestSitesRemove, RequestSitesReplace:
		return true
	}
	return false
}

// Failed reports whether the response carries an error.
func (r ControlResponse) Failed() bool {
	return r.Status == StatusError || r.Status == StatusDeclined
}
