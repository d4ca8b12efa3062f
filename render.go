package folio

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// ErrorPage is the minimal HTML page served for non-API errors.
func ErrorPage(siteName string, code int, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>%d | %s</title></head>
<body><main><h1>%d</h1><p>%s</p><p><a href="/">Back to %s</a></p></main></body>
</html>
`, code, templ.EscapeString(siteName), code, templ.EscapeString(message), templ.EscapeString(siteName))
		return err
	})
}
