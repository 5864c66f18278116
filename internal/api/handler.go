package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/store"
)

// Store is the slice of store.Store the handlers need; tests stub it.
type Store interface {
	CreateClient(ctx context.Context, c *models.Client) error
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	UpdateClient(ctx context.Context, id int64, upd store.ClientUpdate) (*models.Client, error)
	DeleteClient(ctx context.Context, id int64) error

	CreateStatement(ctx context.Context, st *models.Statement) error
	GetStatement(ctx context.Context, id int64) (*models.Statement, error)
	ListStatements(ctx context.Context, clientID *int64) ([]models.Statement, error)
	DeleteStatement(ctx context.Context, id int64) (string, error)

	ListTransactionsByStatement(ctx context.Context, statementID int64) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	store Store
	cfg   Config
	log   *slog.Logger
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/health", h.handleHealth)

	api.Get("/clients", h.handleListClients)
	api.Post("/clients", h.handleCreateClient)
	api.Get("/clients/:id", h.handleGetClient)
	api.Put("/clients/:id", h.handleUpdateClient)
	api.Delete("/clients/:id", h.handleDeleteClient)

	api.Get("/statements", h.handleListStatements)
	api.Post("/statements", h.handleUploadStatement)
	api.Get("/statements/:id", h.handleGetStatement)
	api.Get("/statements/:id/progress", h.handleStatementProgress)
	api.Get("/statements/:id/transactions", h.handleStatementTransactions)
	api.Delete("/statements/:id", h.handleDeleteStatement)

	api.Get("/transactions/:id", h.handleGetTransaction)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": h.cfg.Version,
	})
}

// --- Clients ---

type clientInput struct {
	Name         string `json:"name"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
}

func (h *Handler) handleCreateClient(c *fiber.Ctx) error {
	var in clientInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "name is required")
	}

	client := &models.Client{
		Name:         in.Name,
		ContactName:  strings.TrimSpace(in.ContactName),
		ContactEmail: strings.TrimSpace(in.ContactEmail),
	}
	if err := h.store.CreateClient(c.Context(), client); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

func (h *Handler) handleListClients(c *fiber.Ctx) error {
	clients, err := h.store.ListClients(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(clients)
}

func (h *Handler) handleGetClient(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	client, err := h.store.GetClient(c.Context(), id)
	if err != nil {
		return notFoundOr(err, "client")
	}
	return c.JSON(client)
}

func (h *Handler) handleUpdateClient(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var upd store.ClientUpdate
	if err := c.BodyParser(&upd); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "name cannot be empty")
	}

	client, err := h.store.UpdateClient(c.Context(), id, upd)
	if err != nil {
		return notFoundOr(err, "client")
	}
	return c.JSON(client)
}

func (h *Handler) handleDeleteClient(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.store.DeleteClient(c.Context(), id); err != nil {
		return notFoundOr(err, "client")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- Statements ---

func (h *Handler) handleUploadStatement(c *fiber.Ctx) error {
	clientID := int64(c.QueryInt("client_id"))
	if clientID < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "client_id query parameter is required")
	}
	if _, err := h.store.GetClient(c.Context(), clientID); err != nil {
		return notFoundOr(err, "client")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "no file uploaded, use form field 'file'")
	}
	if !isPDF(fh) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "only PDF files are supported")
	}
	if fh.Size > h.cfg.MaxUploadBytes {
		return fiber.NewError(fiber.StatusUnprocessableEntity,
			fmt.Sprintf("file exceeds the %dMB limit", h.cfg.MaxUploadBytes>>20))
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(h.cfg.UploadDir, uploadName(fh.Filename))
	if err := c.SaveFile(fh, path); err != nil {
		return fmt.Errorf("failed to store upload: %w", err)
	}

	st := &models.Statement{ClientID: clientID, FilePath: path, Status: models.StatusPending}
	if err := h.store.CreateStatement(c.Context(), st); err != nil {
		os.Remove(path)
		return err
	}

	h.log.Info("statement uploaded",
		"statement_id", st.ID, "client_id", clientID, "file", path, "bytes", fh.Size)
	return c.Status(fiber.StatusCreated).JSON(st)
}

func (h *Handler) handleListStatements(c *fiber.Ctx) error {
	var clientID *int64
	if q := c.Query("client_id"); q != "" {
		id, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid client_id")
		}
		clientID = &id
	}
	statements, err := h.store.ListStatements(c.Context(), clientID)
	if err != nil {
		return err
	}
	return c.JSON(statements)
}

func (h *Handler) handleGetStatement(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	st, err := h.store.GetStatement(c.Context(), id)
	if err != nil {
		return notFoundOr(err, "statement")
	}
	return c.JSON(st)
}

func (h *Handler) handleStatementProgress(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	st, err := h.store.GetStatement(c.Context(), id)
	if err != nil {
		return notFoundOr(err, "statement")
	}
	return c.JSON(fiber.Map{
		"id":       st.ID,
		"status":   st.Status,
		"progress": st.Progress,
	})
}

func (h *Handler) handleStatementTransactions(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if _, err := h.store.GetStatement(c.Context(), id); err != nil {
		return notFoundOr(err, "statement")
	}
	txns, err := h.store.ListTransactionsByStatement(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(txns)
}

func (h *Handler) handleDeleteStatement(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	path, err := h.store.DeleteStatement(c.Context(), id)
	if err != nil {
		return notFoundOr(err, "statement")
	}
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			h.log.Warn("failed to remove stored file", "file", path, "error", err)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- Transactions ---

func (h *Handler) handleGetTransaction(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	txn, err := h.store.GetTransaction(c.Context(), id)
	if err != nil {
		return notFoundOr(err, "transaction")
	}
	return c.JSON(txn)
}

// --- helpers ---

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, what+" not found")
	}
	return err
}

func isPDF(fh *multipart.FileHeader) bool {
	if strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return true
	}
	return fh.Header.Get("Content-Type") == "application/pdf"
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// uploadName builds a collision-free stored name that still carries the
// original filename for operators browsing the upload directory.
func uploadName(original string) string {
	base := unsafeNameChars.ReplaceAllString(filepath.Base(original), "_")
	return fmt.Sprintf("%s_%s_%s",
		uuid.New().String(), time.Now().UTC().Format("20060102_150405"), base)
}
