package server

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"kalys/internal/apperrors"
	"kalys/internal/domain"
	"kalys/internal/ingest"
	"kalys/internal/locale"
	"kalys/internal/logger"
	"kalys/internal/service"
	"kalys/internal/session"
	"kalys/internal/vectorstore"
)

var errFileNotFound = errors.New("file not found")

type ragController struct {
	assistant     Asker
	sessions      *session.Store
	index         vectorstore.Index
	pdfDir        string
	pattern       string
	defaultLocale locale.Locale
	timeout       time.Duration
	validate      *validator.Validate
	log           logger.ILogger
}

func newRagController(deps Deps, timeout time.Duration, validate *validator.Validate) *ragController {
	return &ragController{
		assistant:     deps.Assistant,
		sessions:      deps.Sessions,
		index:         deps.Index,
		pdfDir:        deps.PDFDir,
		pattern:       deps.Pattern,
		defaultLocale: deps.DefaultLocale,
		timeout:       timeout,
		validate:      validate,
		log:           deps.Log,
	}
}

func (c *ragController) RegisterRoutes(r fiber.Router) {
	r.Post("/rag", c.Ask)
	r.Delete("/rag/sessions/:id", c.DeleteSession)
	r.Get("/download/:filename", c.Download)
	r.Get("/documents", c.Documents)
	r.Get("/healthz", c.Health)
}

// Ask answers one question. With session_id the server keeps the
// conversation; otherwise it is rebuilt from history on every request.
func (c *ragController) Ask(ctx *fiber.Ctx) error {
	var req RagRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperrors.Validation("server.ask", "malformed body: %v", err)
	}
	loc, err := c.locale(ctx, req.Language)
	if err != nil {
		return err
	}
	if err := c.validate.Struct(req); err != nil {
		return apperrors.Validation("server.ask", "%v", err)
	}

	turns := historyTurns(req.History)
	var conv *domain.Conversation
	sessionID := ""
	if req.SessionID != "" && c.sessions != nil {
		conv, _ = c.sessions.GetOrCreate(req.SessionID, turns...)
		sessionID = conv.ID()
	} else {
		conv = domain.NewConversation("", turns...)
	}

	reqCtx, cancel := context.WithTimeout(ctx.UserContext(), c.timeout)
	defer cancel()

	answer, err := c.assistant.Ask(reqCtx, service.AskInput{
		Question:     req.Question,
		Conversation: conv,
		TopK:         req.TopK,
		Sources:      req.Filters,
		Locale:       loc,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(RagResponse{Answer: *answer, SessionID: sessionID})
}

func (c *ragController) DeleteSession(ctx *fiber.Ctx) error {
	if c.sessions == nil || !c.sessions.Delete(ctx.Params("id")) {
		return apperrors.NotFound("server.delete_session", errors.New("unknown session"))
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// Download serves a corpus PDF by base name.
func (c *ragController) Download(ctx *fiber.Ctx) error {
	name := ctx.Params("filename")
	if !safePDFName(name) {
		return apperrors.NotFound("server.download", errFileNotFound)
	}
	data, err := os.ReadFile(filepath.Join(c.pdfDir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperrors.NotFound("server.download", errFileNotFound)
		}
		return err
	}
	ctx.Attachment(name)
	ctx.Type("pdf")
	return ctx.Send(data)
}

// Documents lists the PDFs available for filtering and download.
func (c *ragController) Documents(ctx *fiber.Ctx) error {
	loc, err := c.locale(ctx, ctx.Query("language"))
	if err != nil {
		return err
	}
	files, err := ingest.Discover(c.pdfDir, c.pattern)
	if err != nil {
		c.log.Warn("server", "pdf directory unavailable", map[string]interface{}{"dir": c.pdfDir, "error": err.Error()})
		files = nil
	}
	out := make([]DocumentResponse, 0, len(files))
	for _, f := range files {
		name := filepath.Base(f)
		out = append(out, DocumentResponse{File: name, Title: locale.DisplayName(name, loc)})
	}
	return ctx.JSON(out)
}

func (c *ragController) Health(ctx *fiber.Ctx) error {
	res := fiber.Map{"status": "ok"}
	if c.index != nil {
		hctx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
		defer cancel()
		if n, err := c.index.Count(hctx); err != nil {
			res["index"] = "unavailable"
		} else {
			res["records"] = n
		}
	}
	if c.sessions != nil {
		res["sessions"] = c.sessions.Len()
	}
	return ctx.JSON(res)
}

// locale resolves the request language and remembers it for the error handler.
func (c *ragController) locale(ctx *fiber.Ctx, raw string) (locale.Locale, error) {
	loc, err := locale.ParseOr(raw, c.defaultLocale)
	if err != nil {
		return c.defaultLocale, apperrors.Validation("server.locale", "%v", err)
	}
	ctx.Locals(localeKey, loc)
	return loc, nil
}

func safePDFName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || filepath.Base(name) != name {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
