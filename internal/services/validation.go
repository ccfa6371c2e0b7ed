package services

import (
	"errors"
	"regexp"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/mouldconnect/apiserver/types"
)

const (
	msgFieldsRequired = "All fields are required"
	msgEmailFormat    = "Invalid email format"
	msgUsernameFormat = "Username must be 3-30 characters long and can only contain letters, numbers, and underscores"
	msgNameFormat     = "Name must be 2-50 characters long and can only contain letters and spaces"
	msgPasswordFormat = "Password must be at least 10 characters long and contain at least one uppercase letter, one lowercase letter, and one digit"
	msgMobileFormat   = "Mobile number must be exactly 10 digits"

	msgAboutMeLength = "About Me (Bio) cannot exceed 255 characters."
	msgSkillsLength  = "Skills cannot exceed 1000 characters."
	msgLinkedInURL   = "Invalid LinkedIn URL. Must start with http:// or https://"
	msgTwitterURL    = "Invalid Twitter URL. Must start with http:// or https://"

	minPasswordLength = 10
	maxAboutMeLength  = 255
	maxSkillsLength   = 1000
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	namePattern     = regexp.MustCompile(`^[a-zA-Z\s]{2,50}$`)
	mobilePattern   = regexp.MustCompile(`^\d{10}$`)
	httpPattern     = regexp.MustCompile(`(?i)^https?://\S+$`)
)

// fieldCheck is one field with its rules. Checks run in slice order so the
// first violation is deterministic.
type fieldCheck struct {
	field string
	value any
	rules []validation.Rule
}

func check(field string, value any, rules ...validation.Rule) fieldCheck {
	return fieldCheck{field: field, value: value, rules: rules}
}

// collect runs every check and returns the violations in order. Each field
// reports at most its first failing rule.
func collect(checks ...fieldCheck) []Violation {
	var violations []Violation
	for _, c := range checks {
		if err := validation.Validate(c.value, c.rules...); err != nil {
			violations = append(violations, Violation{Field: c.field, Message: err.Error()})
		}
	}
	return violations
}

// firstViolation wraps violations into a validation error carrying the first
// message, or returns nil.
func firstViolation(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return invalid(violations[0].Message, violations...)
}

var (
	emailRules    = []validation.Rule{validation.Required.Error(msgEmailFormat), validation.Match(emailPattern).Error(msgEmailFormat)}
	usernameRules = []validation.Rule{validation.Required.Error(msgUsernameFormat), validation.Match(usernamePattern).Error(msgUsernameFormat)}
	nameRules     = []validation.Rule{validation.Required.Error(msgNameFormat), validation.Match(namePattern).Error(msgNameFormat)}
	passwordRules = []validation.Rule{validation.Required.Error(msgPasswordFormat), validation.By(passwordStrength)}
	mobileRules   = []validation.Rule{validation.Required.Error(msgMobileFormat), validation.Match(mobilePattern).Error(msgMobileFormat)}
)

func validateRegistration(in RegisterInput) []Violation {
	return collect(
		check("email", in.Email, emailRules...),
		check("username", in.Username, usernameRules...),
		check("name", in.Name, nameRules...),
		check("password", in.Password, passwordRules...),
		check("mobile", in.Mobile, mobileRules...),
	)
}

// validateUserUpdate applies the registration rules to whichever fields are
// present.
func validateUserUpdate(in UpdateUserInput) []Violation {
	var checks []fieldCheck
	if in.FullName != nil {
		checks = append(checks, check("fullName", *in.FullName, nameRules...))
	}
	if in.Mobile != nil {
		checks = append(checks, check("mobile", *in.Mobile, mobileRules...))
	}
	return collect(checks...)
}

func validateProfileFields(f types.ProfileFields) []Violation {
	return collect(
		check("about_me", f.AboutMe, validation.By(maxRunes(maxAboutMeLength, msgAboutMeLength))),
		check("skills", f.Skills, validation.By(maxRunes(maxSkillsLength, msgSkillsLength))),
		check("linkedin_profile_url", f.LinkedInProfileURL,
			is.RequestURL.Error(msgLinkedInURL), validation.Match(httpPattern).Error(msgLinkedInURL)),
		check("twitter_profile_url", f.TwitterProfileURL,
			is.RequestURL.Error(msgTwitterURL), validation.Match(httpPattern).Error(msgTwitterURL)),
	)
}

func passwordStrength(value any) error {
	s, _ := value.(string)
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case 'A' <= r && r <= 'Z':
			upper = true
		case 'a' <= r && r <= 'z':
			lower = true
		case '0' <= r && r <= '9':
			digit = true
		}
	}
	if utf8.RuneCountInString(s) < minPasswordLength || !upper || !lower || !digit {
		return errors.New(msgPasswordFormat)
	}
	return nil
}

// maxRunes limits a nullable text field. Nil and empty values pass.
func maxRunes(limit int, message string) validation.RuleFunc {
	return func(value any) error {
		v, _ := validation.Indirect(value)
		str, ok := v.(string)
		if !ok || utf8.RuneCountInString(str) <= limit {
			return nil
		}
		return errors.New(message)
	}
}
