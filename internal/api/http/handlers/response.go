package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-tracker/internal/auth"
	"github.com/spec-kit/bug-tracker/internal/policy"
	apperrors "github.com/spec-kit/bug-tracker/pkg/util/errorutil"
)

// respond writes the success envelope every endpoint shares.
func respond(c *fiber.Ctx, status int, message string, fields fiber.Map) error {
	body := fiber.Map{"success": true, "message": message}
	for k, v := range fields {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// decodeStrict decodes exactly one JSON object into v, rejecting unknown keys.
func decodeStrict(c *fiber.Ctx, v any) error {
	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return apperrors.NewValidationError("request body is required", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.NewValidationError(decodeMessage(err), nil)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return apperrors.NewValidationError("request body must contain a single JSON object", nil)
	}
	return nil
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return typeErr.Field + " has the wrong type"
		}
		return "request body must be a JSON object"
	case errors.As(err, &syntaxErr):
		return "malformed JSON"
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	default:
		return "invalid request body"
	}
}

// actorFrom returns the authenticated caller as a policy actor.
func actorFrom(c *fiber.Ctx) (policy.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return policy.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

// queryInt parses an optional positive integer query parameter; absent means 0.
func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.NewValidationError(key+" must be a positive integer", nil)
	}
	return n, nil
}
