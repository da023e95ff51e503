package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/airbot/internal/airquality"
	"github.com/i474232898/airbot/internal/report"
	"github.com/i474232898/airbot/internal/store"
)

var validate = validator.New()

// Reports is the read side of airquality.Service.
type Reports interface {
	GetLatest(source airquality.Source) (airquality.Snapshot, error)
	GetRange(source airquality.Source, from, to time.Time) ([]airquality.Snapshot, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service Reports) {
	v1 := app.Group("/api/v1/reports/:source")

	v1.Get("/latest", func(c *fiber.Ctx) error {
		source, err := parseSource(c)
		if err != nil {
			return err
		}

		snapshot, err := service.GetLatest(source)
		if err != nil {
			return lookupError(err, "no report for requested source")
		}
		return c.JSON(snapshot)
	})

	v1.Get("/text", func(c *fiber.Ctx) error {
		source, err := parseSource(c)
		if err != nil {
			return err
		}

		snapshot, err := service.GetLatest(source)
		if err != nil {
			return lookupError(err, "no report for requested source")
		}

		text, err := report.String(snapshot)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render report")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(text)
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		source, err := parseSource(c)
		if err != nil {
			return err
		}

		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshots, err := service.GetRange(source, req.From, req.To)
		if err != nil {
			return lookupError(err, "no report history for requested range")
		}

		return c.JSON(fiber.Map{
			"source":    source,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})
}

// sourceParam holds the path parameter identifying the sensor network.
type sourceParam struct {
	Source string `validate:"required,oneof=airly gios"`
}

func parseSource(c *fiber.Ctx) (airquality.Source, error) {
	p := sourceParam{Source: c.Params("source")}
	if err := validate.Struct(p); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "source must be one of: airly, gios")
	}
	return airquality.Source(p.Source), nil
}

func lookupError(err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, notFound)
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch report")
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
