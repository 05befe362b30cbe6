package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/courtcaller/court-booking-engine/internal/repository"
	"github.com/courtcaller/court-booking-engine/internal/schedule"
	"github.com/courtcaller/court-booking-engine/internal/service"
)

// AvailabilityHandler serves the bookable-week calendar of a branch.
type AvailabilityHandler struct {
	Coordinator *service.Coordinator
}

func NewAvailabilityHandler(coord *service.Coordinator) *AvailabilityHandler {
	if coord == nil {
		panic("nil coordinator passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Coordinator: coord}
}

// Week handles GET /v1/branches/:id/availability?week=YYYY-MM-DD.  The
// week parameter names the Sunday anchoring the generator week and
// defaults to the current week.  Any other date in the week is
// normalised to its anchor, so clients may simply pass "today".
func (h *AvailabilityHandler) Week(c echo.Context) error {
	branchID := c.Param("id")
	if branchID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid branch id"})
	}

	// A Sunday counts as the anchor of the week it starts, hence the
	// one-day shift before normalising.
	anchor := service.WeekAnchorOf(time.Now().UTC().AddDate(0, 0, 1))
	if raw := c.QueryParam("week"); raw != "" {
		parsed, err := time.Parse(schedule.DateLayout, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "week must be YYYY-MM-DD"})
		}
		anchor = service.WeekAnchorOf(parsed.AddDate(0, 0, 1))
	}

	days, err := h.Coordinator.Availability(c.Request().Context(), branchID, anchor)
	if err != nil {
		if errors.Is(err, repository.ErrBranchNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "branch not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load availability"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"branch_id":   branchID,
		"week_anchor": anchor.Format(schedule.DateLayout),
		"days":        days,
	})
}
