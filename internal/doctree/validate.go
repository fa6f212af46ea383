package doctree

import (
	"errors"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/models"
)

var (
	nameRules = []validation.Rule{validation.Required, validation.RuneLength(1, maxNameLength)}
	tagRules  = []validation.Rule{validation.Length(0, maxTags), validation.Each(validation.Required)}
	urlRules  = []validation.Rule{validation.Required, is.URL, validation.By(httpURL)}
)

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http or https URL")
	}
	return nil
}

// reservedRootName is the name of the seeded facility root folder.
const reservedRootName = "/"

// checkReservedName rejects a top-level node named like the seeded root.
func checkReservedName(name, parentID string) error {
	if name == reservedRootName && parentID == models.RootID {
		return apperr.Validation("name %q is reserved at the top level", reservedRootName)
	}
	return nil
}

// invalid turns an ozzo error into a client-facing validation error.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Validation("%s", err.Error())
}

func checkField(name string, value any, rules ...validation.Rule) error {
	if err := validation.Validate(value, rules...); err != nil {
		return invalid(validation.Errors{name: err})
	}
	return nil
}
