// Package views holds the server-rendered pages and their view models.
package views

import (
	"embed"
	"io/fs"
	"net/http"
	"time"

	"edulearn-connect/internal/models"
	"edulearn-connect/internal/storage"

	"github.com/gofiber/template/html/v2"
)

// HomeTemplate is the template name of the listing page.
const HomeTemplate = "index"

//go:embed templates/*.html
var content embed.FS

// NewEngine returns a Fiber view engine over the embedded templates.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(content, "templates")
	if err != nil {
		// Only fails if the embed pattern above is wrong.
		panic(err)
	}
	return html.NewFileSystem(http.FS(sub), ".html")
}

// UserCard is one entry of the listing grid.
type UserCard struct {
	Name     string
	Email    string
	ImageURL string
}

// HomePage is the data rendered by HomeTemplate.
type HomePage struct {
	AppName string
	Success bool
	Users   []UserCard
	Year    int
}

// NewHomePage builds the listing page model, keeping the order of users.
func NewHomePage(appName string, success bool, users []models.User) HomePage {
	cards := make([]UserCard, 0, len(users))
	for _, u := range users {
		cards = append(cards, UserCard{
			Name:     u.Name,
			Email:    u.Email,
			ImageURL: storage.PublicURL(u.ProfilePic),
		})
	}
	return HomePage{
		AppName: appName,
		Success: success,
		Users:   cards,
		Year:    time.Now().Year(),
	}
}
