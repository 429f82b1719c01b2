package service

import (
	"net/url"
	"regexp"

	"github.com/go-playground/validator/v10"
)

const (
	MaxURLLength   = 2048
	MaxAliasLength = 128
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reservedAliases collide with fixed routes.
var reservedAliases = map[string]struct{}{
	"api":     {},
	"stats":   {},
	"health":  {},
	"metrics": {},
}

// URLChecker decides whether a string is an acceptable redirect target.
type URLChecker interface {
	Valid(raw string) bool
}

// ValidatorChecker accepts absolute URLs with an explicit scheme and host.
type ValidatorChecker struct {
	validate *validator.Validate
}

// NewValidatorChecker creates a checker backed by go-playground/validator.
func NewValidatorChecker() *ValidatorChecker {
	return &ValidatorChecker{validate: newValidator()}
}

func (c *ValidatorChecker) Valid(raw string) bool {
	if err := c.validate.Var(raw, "required,url"); err != nil {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Host != ""
}

// ValidAlias reports whether alias can be used as a custom short code.
func (c *ValidatorChecker) ValidAlias(alias string) bool {
	return c.validate.Var(alias, "required,max=128,shortalias") == nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("shortalias", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if _, reserved := reservedAliases[s]; reserved {
			return false
		}
		return aliasPattern.MatchString(s)
	})
	return v
}
