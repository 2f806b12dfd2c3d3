package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// queryLimit parses the optional ?limit= parameter.  Missing or invalid
// values yield 0 so the repository default applies.
func queryLimit(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func errorBody(msg string) echo.Map {
	return echo.Map{"error": msg}
}
