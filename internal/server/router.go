package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/quicknotes/internal/keystore"
	"github.com/MarcoPoloResearchLab/quicknotes/internal/notes"
	"github.com/MarcoPoloResearchLab/quicknotes/internal/users"
)

const userIDContextKey = "quicknotes_user_id"

const heartbeatInterval = 25 * time.Second

var (
	errMissingTokenManager  = errors.New("session token manager dependency required")
	errMissingUserService   = errors.New("user service dependency required")
	errMissingNoteStore     = errors.New("note store dependency required")
	errMissingKeystore      = errors.New("keystore dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// SessionTokenManager issues and validates session tokens for the login gate.
type SessionTokenManager interface {
	IssueSessionToken(username string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

type Dependencies struct {
	TokenManager SessionTokenManager
	UserService  *users.Service
	NoteStore    *notes.Store
	Keys         *keystore.Store
	Dispatcher   *RefreshDispatcher
	RefreshDelay time.Duration
	Logger       *zap.Logger
}

// NewHTTPHandler wires the presentation boundary: it renders display lists as
// JSON and maps incoming requests onto note store intents.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UserService == nil {
		return nil, errMissingUserService
	}
	if deps.NoteStore == nil {
		return nil, errMissingNoteStore
	}
	if deps.Keys == nil {
		return nil, errMissingKeystore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewRefreshDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:   deps.TokenManager,
		users:    deps.UserService,
		store:    deps.NoteStore,
		keys:     deps.Keys,
		refresh:  dispatcher,
		notifier: newRefreshNotifier(dispatcher, deps.RefreshDelay, nil),
		logger:   logger,
	}

	router.POST("/auth/login", handler.handleLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/auth/logout", handler.handleLogout)
	protected.GET("/notes", handler.handleListNotes)
	protected.POST("/notes", handler.handleCreateNote)
	protected.POST("/notes/quick", handler.handleCreateQuickNote)
	protected.PUT("/notes/:id", handler.handleUpdateNote)
	protected.DELETE("/notes/:id", handler.handleDeleteNote)
	protected.POST("/notes/:id/pin", handler.handleTogglePin)
	protected.GET("/notes/export", handler.handleExportNotes)
	protected.POST("/notes/import", handler.handleImportNotes)
	protected.GET("/notes/events", handler.handleNotesEvents)
	protected.GET("/draft", handler.handleGetDraft)
	protected.PUT("/draft", handler.handlePutDraft)
	protected.DELETE("/draft", handler.handleDeleteDraft)
	protected.GET("/preferences/theme", handler.handleGetTheme)
	protected.PUT("/preferences/theme", handler.handlePutTheme)

	return router, nil
}

type httpHandler struct {
	tokens   SessionTokenManager
	users    *users.Service
	store    *notes.Store
	keys     *keystore.Store
	refresh  *RefreshDispatcher
	notifier *refreshNotifier
	logger   *zap.Logger
}

type loginRequestPayload struct {
	Username string `json:"username"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	identity, err := h.users.Login(request.Username)
	if err != nil {
		if errors.Is(err, users.ErrInvalidUsername) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_username"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(identity.Username)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Username:    identity.Username,
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	if err := h.users.Logout(); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	currentUser, ok := h.currentUser(c)
	if !ok {
		return
	}

	display := notes.DisplayList(h.store.List(), currentUser, c.Query("search"))
	c.JSON(http.StatusOK, gin.H{"notes": display})
}

type notePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	h.createNote(c, true)
}

// The quick composer is the same create intent minus the draft: it never
// loaded one, so saving it must not discard an unrelated in-progress draft.
func (h *httpHandler) handleCreateQuickNote(c *gin.Context) {
	h.createNote(c, false)
}

func (h *httpHandler) createNote(c *gin.Context, clearDraft bool) {
	currentUser, ok := h.currentUser(c)
	if !ok {
		return
	}

	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.store.Create(currentUser, request.Title, request.Content)
	if err != nil && !errors.Is(err, notes.ErrSaveFailed) {
		h.renderStoreError(c, err)
		return
	}

	if clearDraft {
		h.store.ClearDraft()
	}
	h.notifier.NoteChanged(currentUser.String(), note.ID)

	response := gin.H{"status": "created", "note": note}
	if err != nil {
		response["warning"] = "storage_write_failed"
	}
	c.JSON(http.StatusCreated, response)
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	currentUser, ok := h.currentUser(c)
	if !ok {
		return
	}
	noteID, ok := h.noteIDParam(c)
	if !ok {
		return
	}

	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.store.Update(noteID, request.Title, request.Content)
	if err != nil && !errors.Is(err, notes.ErrSaveFailed) {
		h.renderStoreError(c, err)
		return
	}

	h.store.ClearDraft()
	h.notifier.NoteChanged(currentUser.String(), note.ID)

	response := gin.H{"status": "updated", "note": note}
	if err != nil {
		response["warning"] = "storage_write_failed"
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	currentUser, ok := h.currentUser(c)
	if !ok {
		return
	}
	noteID, ok := h.noteIDParam(c)
	if !ok {
		return
	}

	err := h.store.Delete(noteID)
	if err != nil && !errors.Is(err, notes.ErrSaveFailed) {
		h.renderStoreError(c, err)
		return
	}

	h.notifier.NoteChanged(currentUser.String(), noteID.String())

	response := gin.H{"status": "deleted"}
	if err != nil {
		response["warning"] = "storage_write_failed"
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleTogglePin(c *gin.Context) {
	currentUser, ok := h.currentUser(c)
	if !ok {
		return
	}
	noteID, ok := h.noteIDParam(c)
	if !ok {
		return
	}

	note, err := h.store.TogglePin(noteID)
	if err != nil && !errors.Is(err, notes.ErrSaveFailed) {
		h.renderStoreError(c, err)
		return
	}

	h.notifier.NoteChanged(currentUser.String(), note.ID)

	status := "unpinned"
	if note.Pinned {
		status = "pinned"
	}
	response := gin.H{"status": status, "note": note}
	if err != nil {
		response["warning"] = "storage_write_failed"
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleExportNotes(c *gin.Context) {
	data, filename, err := h.store.Export()
	if err != nil {
		if errors.Is(err, notes.ErrNothingToExport) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nothing_to_export"})
			return
		}
		h.logger.Error("export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export_failed"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

func (h *httpHandler) handleImportNotes(c *gin.Context) {
	currentUser, ok := h.currentUser(c)
	if !ok {
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	count, err := h.store.ImportBatch(payload)
	if err != nil && !errors.Is(err, notes.ErrSaveFailed) {
		h.renderStoreError(c, err)
		return
	}

	h.notifier.NoteChanged(currentUser.String())

	response := gin.H{"status": "imported", "count": count}
	if err != nil {
		response["warning"] = "storage_write_failed"
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetDraft(c *gin.Context) {
	draft, ok := h.store.LoadDraft()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"draft": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

func (h *httpHandler) handlePutDraft(c *gin.Context) {
	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	h.store.SaveDraft(notes.Draft{Title: request.Title, Content: request.Content})
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *httpHandler) handleDeleteDraft(c *gin.Context) {
	h.store.ClearDraft()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (h *httpHandler) handleGetTheme(c *gin.Context) {
	value, present, err := h.keys.Get(keystore.KeyTheme)
	if err != nil {
		h.logger.Error("theme read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "theme_read_failed"})
		return
	}
	if !present {
		c.JSON(http.StatusOK, gin.H{"theme": ""})
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": value})
}

type themePayload struct {
	Theme string `json:"theme"`
}

func (h *httpHandler) handlePutTheme(c *gin.Context) {
	var request themePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	theme := strings.ToLower(strings.TrimSpace(request.Theme))
	if theme != "dark" && theme != "light" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_theme"})
		return
	}

	if err := h.keys.Put(keystore.KeyTheme, theme); err != nil {
		h.logger.Error("theme write failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "theme_write_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "theme": theme})
}

func (h *httpHandler) handleNotesEvents(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stream, cancel := h.refresh.Subscribe(c.Request.Context(), userID)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(message.EventType, gin.H{
				"note_ids":  message.NoteIDs,
				"timestamp": message.Timestamp.Unix(),
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(refreshEventHeartbeat, gin.H{})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) currentUser(c *gin.Context) (notes.UserID, bool) {
	subject := c.GetString(userIDContextKey)
	currentUser, err := notes.NewUserID(subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return currentUser, true
}

func (h *httpHandler) noteIDParam(c *gin.Context) (notes.NoteID, bool) {
	noteID, err := notes.NewNoteID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_note_id"})
		return "", false
	}
	return noteID, true
}

func (h *httpHandler) renderStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, notes.ErrEmptyNote):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_note"})
	case errors.Is(err, notes.ErrNoteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
	case errors.Is(err, notes.ErrInvalidImport):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_import"})
	default:
		h.logger.Error("note store operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
