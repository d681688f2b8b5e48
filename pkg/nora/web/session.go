package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/config"
	"github.com/norahq/nora/pkg/nora/log"
	"github.com/norahq/nora/pkg/nora/models"
	"gorm.io/gorm"
)

const (
	sessionKeyUserID = "user_id"

	// LoginURL is where anonymous browsers are sent
	LoginURL = "/login/"
	// HomeURL is the landing page after login
	HomeURL = "/home/"
)

// Sessions returns the cookie session middleware
func Sessions(cfg *config.SecurityConfig) gin.HandlerFunc {
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   cfg.SessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(cfg.SessionCookieName, store)
}

// RequireLogin redirects anonymous browsers to the login page and puts the
// session user in the context like the API auth middleware does
func RequireLogin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(sessionKeyUserID).(uint)
		if !ok {
			redirectToLogin(c)
			return
		}

		var user models.User
		if err := db.Where("id = ? AND active = ?", userID, true).First(&user).Error; err != nil {
			session.Clear()
			_ = session.Save()
			redirectToLogin(c)
			return
		}

		auth.SetUser(c, user.ID, user.Email, user.IsStaff)
		c.Next()
	}
}

func redirectToLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, LoginURL+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
	c.Abort()
}

// safeNext keeps only local redirect targets
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return HomeURL
	}
	return next
}

// Handler serves the login, logout and landing pages
type Handler struct {
	db     *gorm.DB
	logger *log.Logger
}

// NewHandler creates a new web session handler
func NewHandler(db *gorm.DB, logger *log.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

type loginForm struct {
	Email    string `form:"email" binding:"notblank"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`
}

type loginPage struct {
	Email  string
	Next   string
	Errors []string
}

// LoginPage shows the login form
func (h *Handler) LoginPage(c *gin.Context) {
	Render(c, http.StatusOK, "login.html", "Ingresar", loginPage{Next: c.Query("next")})
}

// Login checks the credentials and starts a session
func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	errs := BindForm(c, &form)
	page := loginPage{Email: form.Email, Next: form.Next}
	if errs.Any() {
		page.Errors = []string{"Ingresa tu correo y tu clave."}
		Render(c, http.StatusOK, "login.html", "Ingresar", page)
		return
	}

	user, err := auth.Authenticate(h.db, form.Email, form.Password)
	if err != nil {
		h.logger.LogAuth(0, form.Email, "session", false)
		page.Errors = []string{"Por favor, introduzca un correo y clave correctos."}
		Render(c, http.StatusOK, "login.html", "Ingresar", page)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionKeyUserID, user.ID)
	if err := session.Save(); err != nil {
		h.logger.WithError(err).Error("Failed to save session")
		Fail(c)
		return
	}

	h.logger.LogAuth(user.ID, user.Email, "session", true)
	Redirect(c, safeNext(form.Next))
}

// Logout ends the session
func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	Redirect(c, LoginURL)
}

// Home is the landing page of a logged in staff user
func (h *Handler) Home(c *gin.Context) {
	Render(c, http.StatusOK, "home.html", "Inicio", nil)
}

// RegisterRoutes registers the session pages. requireLogin guards /home/.
func (h *Handler) RegisterRoutes(r gin.IRoutes, requireLogin gin.HandlerFunc) {
	r.GET("/", func(c *gin.Context) { Redirect(c, HomeURL) })
	r.GET(LoginURL, h.LoginPage)
	r.POST(LoginURL, h.Login)
	r.GET("/logout/", h.Logout)
	r.GET(HomeURL, requireLogin, h.Home)
}
