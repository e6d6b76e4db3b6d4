package catalog

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/money"
)

const maxTitleLen = 255

var slugRe = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

type Category struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

type MenuItem struct {
	ID       int64        `json:"id"`
	Title    string       `json:"title"`
	Price    money.Amount `json:"price"`
	Featured bool         `json:"featured"`
	Category Category     `json:"category"`
}

// CategoryPatch is the write shape for a category. Nil fields are left
// unchanged on PATCH.
type CategoryPatch struct {
	Slug  *string `json:"slug"`
	Title *string `json:"title"`
}

// Validate checks the supplied fields. With full set, every field must be
// present (POST and PUT).
func (p CategoryPatch) Validate(full bool) error {
	fe := apperr.FieldErrors{}
	if p.Slug == nil {
		if full {
			fe.Add("slug", "This field is required.")
		}
	} else {
		s := strings.TrimSpace(*p.Slug)
		switch {
		case s == "":
			fe.Add("slug", "This field may not be blank.")
		case utf8.RuneCountInString(s) > maxTitleLen:
			fe.Add("slug", "Ensure this field has no more than 255 characters.")
		case !slugRe.MatchString(s):
			fe.Add("slug", "Enter a valid slug consisting of letters, numbers, underscores or hyphens.")
		}
	}
	checkTitle(fe, p.Title, full)
	return fe.Err()
}

type MenuItemPatch struct {
	Title      *string       `json:"title"`
	Price      *money.Amount `json:"price"`
	Featured   *bool         `json:"featured"`
	CategoryID *int64        `json:"category_id"`
}

func (p MenuItemPatch) Validate(full bool) error {
	fe := apperr.FieldErrors{}
	checkTitle(fe, p.Title, full)
	if p.Price == nil {
		if full {
			fe.Add("price", "This field is required.")
		}
	} else if *p.Price < 0 {
		fe.Add("price", "Ensure this value is greater than or equal to 0.")
	} else if *p.Price > money.Max {
		fe.Add("price", "Ensure that there are no more than 6 digits in total.")
	}
	if p.CategoryID == nil {
		if full {
			fe.Add("category_id", "This field is required.")
		}
	} else if *p.CategoryID <= 0 {
		fe.Add("category_id", "Invalid pk - object does not exist.")
	}
	return fe.Err()
}

func checkTitle(fe apperr.FieldErrors, title *string, full bool) {
	if title == nil {
		if full {
			fe.Add("title", "This field is required.")
		}
		return
	}
	t := strings.TrimSpace(*title)
	switch {
	case t == "":
		fe.Add("title", "This field may not be blank.")
	case utf8.RuneCountInString(t) > maxTitleLen:
		fe.Add("title", "Ensure this field has no more than 255 characters.")
	}
}
