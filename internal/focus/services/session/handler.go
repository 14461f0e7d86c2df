package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

// Handler answers control requests by dispatching them to the Controller
// and, for URL checks and site list edits, to the engine and site list.
type Handler struct {
	controller *Controller
	checker    URLChecker
	sites      SiteEditor
	logger     log.Logger
}

// NewHandler returns a Handler. checker and sites may be nil, in which case
// the matching requests fail.
func NewHandler(controller *Controller, checker URLChecker, sites SiteEditor, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Handler{controller: controller, checker: checker, sites: sites, logger: logger}
}

// HandleRequest produces exactly one response for req.
func (h *Handler) HandleRequest(ctx context.Context, req domain.ControlRequest) domain.ControlResponse {
	switch req.Type {
	case domain.RequestStart:
		st, err := h.controller.Start(ctx, req.DurationMinutes)
		if errors.Is(err, domain.ErrConfigurationEmpty) {
			return domain.ControlResponse{Type: req.Type, Status: domain.StatusDeclined, Error: err.Error()}
		}
		if err != nil {
			return domain.ErrorResponse(req.Type, err)
		}
		return domain.ControlResponse{Type: req.Type, Status: domain.StatusStarted, IsBlocking: true, BlockEnd: st.BlockEnd}

	case domain.RequestStop:
		if _, err := h.controller.Stop(ctx); err != nil {
			return domain.ErrorResponse(req.Type, err)
		}
		return domain.ControlResponse{Type: req.Type, Status: domain.StatusStopped}

	case domain.RequestStatus:
		st, err := h.controller.Status(ctx)
		if err != nil {
			return domain.ErrorResponse(req.Type, err)
		}
		return domain.ControlResponse{Type: req.Type, IsBlocking: st.IsBlocking, BlockEnd: st.BlockEnd}

	case domain.RequestCheck:
		if h.checker == nil {
			return domain.ErrorResponse(req.Type, errors.New("url checks are not available"))
		}
		if req.URL == "" {
			return domain.ErrorResponse(req.Type, errors.New("url is required"))
		}
		return domain.ControlResponse{Type: req.Type, Decision: h.checker.Decide(req.URL)}

	case domain.RequestSitesList, domain.RequestSitesAdd, domain.RequestSitesRemove, domain.RequestSitesReplace:
		return h.handleSites(ctx, req)

	default:
		h.logger.Warn(map[string]any{"type": string(req.Type)}, "unknown request type")
		return domain.ErrorResponse(req.Type, fmt.Errorf("unknown request type %q", req.Type))
	}
}

// handleSites answers the site list requests. Edits take effect at the next
// session start.
func (h *Handler) handleSites(ctx context.Context, req domain.ControlRequest) domain.ControlResponse {
	if h.sites == nil {
		return domain.ErrorResponse(req.Type, errors.New("site editing is not available"))
	}

	var (
		list []string
		err  error
	)
	switch req.Type {
	case domain.RequestSitesList:
		if list, err = h.sites.List(ctx); err != nil {
			return domain.ErrorResponse(req.Type, err)
		}
		return domain.ControlResponse{Type: req.Type, Sites: list}
	case domain.RequestSitesAdd:
		list, err = h.sites.Add(ctx, req.Sites...)
	case domain.RequestSitesRemove:
		list, err = h.sites.RemoveAt(ctx, req.Index)
	case domain.RequestSitesReplace:
		if err = h.sites.Replace(ctx, req.Sites); err == nil {
			list, err = h.sites.List(ctx)
		}
	}
	if err != nil {
		return domain.ErrorResponse(req.Type, err)
	}

	h.logger.Info(map[string]any{"request": string(req.Type), "sites": len(list)}, "site list updated")
	return domain.ControlResponse{Type: req.Type, Status: domain.StatusUpdated, Sites: list}
}
