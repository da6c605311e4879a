package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// comparisonRequest is the body of POST /v1/sessions/comparison.
type comparisonRequest struct {
	AnalysisID       string `json:"analysis_id"`
	TransformationID string `json:"transformation_id"`
}

// param copies a route parameter out of the request buffer, which fasthttp
// reuses once the handler returns.
func param(c *fiber.Ctx, name string) string {
	return utils.CopyString(strings.TrimSpace(c.Params(name)))
}

// OpenAnalysisHandler opens a single-pane session for an analysis preview.
func OpenAnalysisHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := param(c, "id")
		if id == "" {
			return errBadRequest(c, "analysis id is required")
		}

		v, err := deps.Sessions.OpenAnalysis(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Location("/v1/sessions/" + v.ID)
		return c.Status(fiber.StatusCreated).JSON(v)
	}
}

// OpenComparisonHandler opens a side-by-side session. The transformation is
// optional; without it both panes show the original data.
func OpenComparisonHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req comparisonRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if strings.TrimSpace(req.AnalysisID) == "" {
			return errBadRequest(c, "analysis_id is required")
		}

		v, err := deps.Sessions.OpenComparison(c.UserContext(), strings.TrimSpace(req.AnalysisID), req.TransformationID)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Location("/v1/sessions/" + v.ID)
		return c.Status(fiber.StatusCreated).JSON(v)
	}
}

// ListSessionsHandler lists live sessions, oldest first.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessions := deps.Sessions.List()
		offset, limit := pageParams(c, 50, 200)

		pg := Pagination{Offset: offset, Limit: limit, Total: len(sessions)}
		sessions = page(sessions, offset, limit)

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: sessions, Pagination: pg})
	}
}

// SessionHistoryHandler returns persisted snapshots, most recent first.
func SessionHistoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, limit := pageParams(c, 50, 500)
		snaps, err := deps.Sessions.History(c.UserContext(), limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if snaps == nil {
			snaps = []domain.SessionSnapshot{}
		}
		return c.JSON(snaps)
	}
}

// GetSessionHandler returns one live session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(v)
	}
}

// MoveCameraHandler applies a camera change to one pane as if the user had
// panned or zoomed it. Linked panes follow.
func MoveCameraHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var cam domain.Camera
		if err := c.BodyParser(&cam); err != nil {
			return errBadRequest(c, "invalid camera body")
		}

		v, err := deps.Sessions.Move(c.UserContext(), c.Params("id"), c.Params("pane"), cam)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(v)
	}
}

// RefreshSessionHandler re-fetches the previews and redraws them in place.
func RefreshSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := deps.Sessions.Refresh(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(v)
	}
}

// ResumeSessionHandler reopens a closed session from its last snapshot.
func ResumeSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := deps.Sessions.Resume(c.UserContext(), param(c, "id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(v)
	}
}

// CloseSessionHandler disposes a session.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
