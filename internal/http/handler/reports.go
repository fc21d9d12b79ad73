package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"legalease/internal/auth"
	"legalease/internal/service"
)

// ListReports returns the caller's reports, newest first, with limit & offset.
//
// @Summary  List reports
// @Tags     reports
// @Produce  json
// @Param    limit  query int false "page size" default(20)
// @Param    offset query int false "offset"    default(0)
// @Success  200 {object} service.ReportListResult
// @Failure  400 {object} errorPayload
// @Security BearerAuth
// @Router   /reports [get]
func ListReports(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := auth.FromCtx(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}
		limit, err := strconv.Atoi(c.Query("limit", "20"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), id.UID, limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// GetReport returns one of the caller's reports.
//
// @Summary  Get report
// @Tags     reports
// @Produce  json
// @Param    id path int true "report id"
// @Success  200 {object} model.ReportRecord
// @Failure  404 {object} errorPayload
// @Security BearerAuth
// @Router   /reports/{id} [get]
func GetReport(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := auth.FromCtx(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}
		reportID, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil || reportID <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		rec, err := svc.Get(c.UserContext(), id.UID, reportID)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "report not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(rec)
	}
}
