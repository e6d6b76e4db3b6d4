package users

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/auth"
)

const maxUsernameLen = 150

var usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)

type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	IsStaff     bool      `json:"-"`
	IsSuperuser bool      `json:"-"`
	DateJoined  time.Time `json:"-"`
}

// NewUser is the registration payload.
type NewUser struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	IsStaff     bool   `json:"-"`
	IsSuperuser bool   `json:"-"`
}

func (n *NewUser) Normalize() {
	n.Username = strings.TrimSpace(n.Username)
	n.Email = strings.TrimSpace(n.Email)
}

func (n NewUser) Validate() error {
	fe := apperr.FieldErrors{}
	switch {
	case n.Username == "":
		fe.Add("username", "This field is required.")
	case utf8.RuneCountInString(n.Username) > maxUsernameLen:
		fe.Add("username", "Ensure this field has no more than 150 characters.")
	case !usernameRe.MatchString(n.Username):
		fe.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if n.Email != "" && !strings.Contains(n.Email, "@") {
		fe.Add("email", "Enter a valid email address.")
	}
	if len(n.Password) < auth.MinPasswordLen {
		fe.Add("password", auth.ErrPasswordTooShort.Error())
	}
	return fe.Err()
}

// Group names exposed under /groups/{slug}/users.
var GroupBySlug = map[string]string{
	"manager":       auth.GroupManager,
	"delivery-crew": auth.GroupDeliveryCrew,
}
