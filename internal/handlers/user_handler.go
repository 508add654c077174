package handlers

import (
	mw "edulearn-connect/internal/middleware"
	"edulearn-connect/internal/services"
	"edulearn-connect/internal/storage"
	"edulearn-connect/internal/views"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SaveFailedMessage is the plain-text body of every failed add-user response.
const SaveFailedMessage = "Gagal menyimpan data."

// UserHandler serves the listing page and the add-user form
type UserHandler struct {
	userService services.UserService
	appName     string
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService services.UserService, appName string) *UserHandler {
	return &UserHandler{
		userService: userService,
		appName:     appName,
	}
}

// Home handles GET / requests. Read failures go to the app ErrorHandler.
func (h *UserHandler) Home(c *fiber.Ctx) error {
	fileLogger := mw.GetRequestFileLogger(c)

	users, err := h.userService.ListUsers(c.Context(), fileLogger)
	if err != nil {
		return err
	}

	success := c.Query("success") == "true"
	fileLogger.Debug("Rendering home page", zap.Int("users", len(users)), zap.Bool("success", success))
	return c.Render(views.HomeTemplate, views.NewHomePage(h.appName, success, users))
}

// AddUser handles POST /add requests (multipart/form-data)
func (h *UserHandler) AddUser(c *fiber.Ctx) error {
	fileLogger := mw.GetRequestFileLogger(c)

	var input services.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		fileLogger.Warn("Failed to parse add user form data", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString(SaveFailedMessage)
	}

	file, err := c.FormFile("profile_pic")
	if err != nil {
		fileLogger.Warn("No profile_pic in add user request", zap.Error(err))
		file = nil
	}

	user, err := h.userService.RegisterUser(c.Context(), fileLogger, input, file)
	if err != nil {
		fileLogger.Error("Add user failed", zap.String("name", input.Name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString(SaveFailedMessage)
	}

	mw.GetRequestSQLiteLogger(c).Info("User added", zap.Int64("userID", user.ID))
	return c.Redirect("/?success=true", fiber.StatusFound)
}

// userResponse is the JSON shape of a user in the API listing.
type userResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"image_url"`
}

// ListUsersJSON handles GET /api/v1/users requests
func (h *UserHandler) ListUsersJSON(c *fiber.Ctx) error {
	users, err := h.userService.ListUsers(c.Context(), mw.GetRequestFileLogger(c))
	if err != nil {
		return err
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{ID: u.ID, Name: u.Name, Email: u.Email, ImageURL: storage.PublicURL(u.ProfilePic)})
	}
	return c.JSON(fiber.Map{"users": out, "count": len(out)})
}

// SetupUserRoutes registers the page routes and the read-only API
func (h *UserHandler) SetupUserRoutes(app fiber.Router) {
	app.Get("/", h.Home)
	app.Post("/add", h.AddUser)
	app.Get("/api/v1/users", h.ListUsersJSON)
}
