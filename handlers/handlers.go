// Package handlers exposes the marketplace over HTTP. Handlers parse input,
// call a service and return its errors unchanged; the app's ErrorHandler
// turns them into responses.
package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"thriftly_backend/models"
)

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(models.SuccessResponse(data, nil))
}

func created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(models.SuccessResponse(data, nil))
}

func message(c *fiber.Ctx, msg string) error {
	return c.JSON(models.SuccessResponse(fiber.Map{"message": msg}, nil))
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return models.NewValidationError("Invalid input")
	}
	return nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewValidationError("Invalid " + name)
	}
	return uint(id), nil
}

// readUpload returns the named multipart file. present is false when the
// request carries no such file.
func readUpload(c *fiber.Ctx, field string) (filename string, data []byte, present bool, err error) {
	header, err := c.FormFile(field)
	if err != nil {
		return "", nil, false, nil
	}
	f, err := header.Open()
	if err != nil {
		return "", nil, false, models.NewValidationError("Could not read upload")
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, false, models.NewValidationError("Could not read upload")
	}
	return header.Filename, data, true, nil
}

// clientMessage is the user-facing text of err.
func clientMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong"
}
