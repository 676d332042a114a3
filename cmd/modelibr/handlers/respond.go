package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/modelibr/modelibr/common/apperrors"
)

// respondError maps the error taxonomy onto HTTP statuses. Anything without
// a kind is an internal error and keeps its detail out of the response.
func respondError(c echo.Context, err error) error {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperrors.KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperrors.KindConflict:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case apperrors.KindInvalidState:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
