// Package wire converts control requests and responses to and from their
// line-delimited JSON form.
package wire

import "github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"

// ControlCodec encodes and decodes control messages. Each encoded message
// is a single line without the trailing newline.
type ControlCodec interface {
	// Server side
	DecodeRequest(data []byte) (domain.ControlRequest, error)
	EncodeResponse(resp domain.ControlResponse) ([]byte, error)

	// Client side
	EncodeRequest(req domain.ControlRequest) ([]byte, error)
	DecodeResponse(reqType domain.RequestType, data []byte) (domain.ControlResponse, error)
}
