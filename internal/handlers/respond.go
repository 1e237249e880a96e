package handlers

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/arkuspay/internal/middleware"
	"github.com/example/arkuspay/internal/services"
)

func wantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

func clientID(c *fiber.Ctx) (string, error) {
	id, ok := middleware.GetClientID(c)
	if !ok {
		return "", fiber.NewError(fiber.StatusBadRequest, "missing client id")
	}
	return id, nil
}

// renderPage answers a page visit with its view model.
func renderPage(c *fiber.Ctx, page string, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"page":    page,
		"data":    data,
	})
}

// formResult answers a form post. Failures are 422 with field and form
// errors; success redirects browsers and tells JSON clients where to go.
func formResult(c *fiber.Ctx, redirect string, errs services.FieldErrors, formError string, data any) error {
	if len(errs) > 0 || formError != "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"message": formError,
			"errors":  errs,
		})
	}
	if redirect != "" && !wantsJSON(c) {
		return c.Redirect(redirect, fiber.StatusSeeOther)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"redirect": redirect,
		"data":     data,
	})
}

// multipartFromRequest copies an incoming multipart form for forwarding.
func multipartFromRequest(c *fiber.Ctx) (*services.Multipart, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "expected multipart form data")
	}

	out := &services.Multipart{Fields: form.Value}
	for field, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, err
			}
			out.Files = append(out.Files, services.FilePart{
				Field:       field,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Data:        data,
			})
		}
	}
	return out, nil
}
