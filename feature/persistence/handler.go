package persistence

import (
	"errors"
	"fmt"
	"net/url"

	"entity-persister/core/logger"
	"entity-persister/core/metadata"
	"entity-persister/core/normalize"
	"entity-persister/core/reconcile"
	"entity-persister/core/subject"
	"entity-persister/core/utils"
	"entity-persister/core/value"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for entity persistence.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the persistence routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/persist")
	group.Get("/schema", h.HandleSchemaCheck)
	group.Post("/:entity", h.HandlePersist)
	group.Get("/:entity/:id", h.HandleFind)
	group.Delete("/:entity/:id", h.HandleRemove)
}

// HandlePersist inserts or updates the entity graph in the request body.
// The dry_run query parameter returns the plan without executing it.
// @Summary Persist Entity
// @Description Inserts or updates the entity graph in the body, cascading through related entities.
// @Tags persistence
// @Accept json
// @Produce json
// @Param entity path string true "Entity name (e.g. 'post')"
// @Param dry_run query bool false "Return the plan without executing it"
// @Success 200 {object} Result "Persist Result"
// @Failure 400 {object} map[string]string "Invalid Body"
// @Failure 404 {object} map[string]string "Unknown Entity"
// @Failure 409 {object} map[string]string "Conflicting Operation"
// @Failure 422 {object} map[string]string "Invalid Value"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /persist/{entity} [post]
func (h *Handler) HandlePersist(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	entity := c.Params("entity")
	dryRun := c.QueryBool("dry_run", false)

	body, err := value.ParseJSON(c.Body())
	if err != nil || !body.IsObject() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "request body must be a JSON object"})
	}

	res, err := h.service.Persist(c.Context(), entity, body.Record(), dryRun)
	if err != nil {
		l.Error("Persist failed", zap.String("entity", entity), zap.Error(err))
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	l.Info("Persisted entity",
		zap.String("entity", entity),
		zap.Bool("dry_run", dryRun),
		zap.Int("executed", res.Executed))
	return c.JSON(res)
}

// HandleRemove deletes the addressed entity.
// @Summary Remove Entity
// @Description Deletes the addressed row and the rows reached through cascading removes.
// @Tags persistence
// @Produce json
// @Param entity path string true "Entity name (e.g. 'post')"
// @Param id path string true "Identifier, a JSON object for composite keys"
// @Param dry_run query bool false "Return the plan without executing it"
// @Success 200 {object} Result "Remove Result"
// @Failure 400 {object} map[string]string "Invalid Identifier"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /persist/{entity}/{id} [delete]
func (h *Handler) HandleRemove(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	entity := c.Params("entity")
	dryRun := c.QueryBool("dry_run", false)

	id, err := h.identifier(entity, c.Params("id"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.service.Remove(c.Context(), entity, id, dryRun)
	if err != nil {
		l.Error("Remove failed", zap.String("entity", entity), zap.Error(err))
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	l.Info("Removed entity",
		zap.String("entity", entity),
		zap.Bool("dry_run", dryRun),
		zap.Int("executed", res.Executed))
	return c.JSON(res)
}

// HandleFind returns the stored row of the addressed entity.
// @Summary Find Entity
// @Tags persistence
// @Produce json
// @Param entity path string true "Entity name (e.g. 'post')"
// @Param id path string true "Identifier, a JSON object for composite keys"
// @Success 200 {object} map[string]interface{} "Stored Row"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /persist/{entity}/{id} [get]
func (h *Handler) HandleFind(c *fiber.Ctx) error {
	entity := c.Params("entity")
	id, err := h.identifier(entity, c.Params("id"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	rec, err := h.service.Find(c.Context(), entity, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.WithRayID(h.service.logger, c).Error("Find failed", zap.String("entity", entity), zap.Error(err))
		}
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(rec)
}

// HandleSchemaCheck compares the entity definitions with the database schema.
// @Summary Check Schema
// @Description Verifies that every entity table and join table exists with the expected columns.
// @Tags persistence
// @Produce json
// @Success 200 {object} SchemaReport "Schema Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /persist/schema [get]
func (h *Handler) HandleSchemaCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Starting schema check")

	report, err := h.service.CheckSchema()
	if err != nil {
		l.Error("Schema check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// identifier parses a path identifier. Composite keys are passed as a JSON
// object, numeric keys are converted to integers.
func (h *Handler) identifier(entity, raw string) (value.Value, error) {
	meta := h.service.Registry().Entity(entity)
	if meta == nil {
		return value.Undefined(), fmt.Errorf("%w: %s", reconcile.ErrUnknownEntity, entity)
	}
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return ParseIdentifier(meta, raw)
}

// ParseIdentifier converts the textual form of an identifier of meta.
func ParseIdentifier(meta *metadata.Entity, raw string) (value.Value, error) {
	if meta.HasCompositeKey() {
		v, err := value.ParseJSON([]byte(raw))
		if err != nil || !v.IsObject() {
			return value.Undefined(), errInvalidIdentifier
		}
		return value.Composite(v.Record()), nil
	}
	if n, ok := utils.ToInt64(raw); ok {
		return value.Scalar(n), nil
	}
	return value.Scalar(raw), nil
}

var errInvalidIdentifier = errors.New("composite identifiers must be a JSON object")

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var normErr *normalize.ValueNormalizationError
	switch {
	case errors.Is(err, subject.ErrConflictingOperation):
		return fiber.StatusConflict
	case errors.As(err, &normErr):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, reconcile.ErrUnknownEntity), errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errInvalidIdentifier):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
