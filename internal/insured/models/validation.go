package models

import (
	"regexp"
	"strings"

	dErrors "insured/pkg/domain-errors"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// JSON field names used as keys of the violation map.
const (
	FieldFirstName     = "firstName"
	FieldFirstSurname  = "firstSurname"
	FieldSecondSurname = "secondSurname"
	FieldPhone         = "phone"
	FieldEmail         = "email"
	FieldBirthDate     = "birthDate"
	FieldInsuredValue  = "insuredValue"
)

// Rule checks one aspect of a candidate record and records violations.
type Rule func(p *InsuredPerson, violations dErrors.FieldErrors)

// Rules is the full rule set applied to every create and update.
var Rules = []Rule{
	required(FieldFirstName, "first name is required", func(p *InsuredPerson) string { return p.FirstName }),
	required(FieldFirstSurname, "first surname is required", func(p *InsuredPerson) string { return p.FirstSurname }),
	required(FieldSecondSurname, "second surname is required", func(p *InsuredPerson) string { return p.SecondSurname }),
	required(FieldPhone, "phone is required", func(p *InsuredPerson) string { return p.Phone }),
	emailRule,
	birthDateRule,
	insuredValueRule,
}

// Validate applies Rules and returns every violation, or nil when p is valid.
func Validate(p *InsuredPerson) dErrors.FieldErrors {
	violations := dErrors.FieldErrors{}
	if p == nil {
		violations.Add("body", "insured person is required")
		return violations
	}
	for _, rule := range Rules {
		rule(p, violations)
	}
	if len(violations) == 0 {
		return nil
	}
	return violations
}

// Validate returns a CodeValidation error listing all violated fields.
func (p *InsuredPerson) Validate() error {
	if violations := Validate(p); violations != nil {
		return dErrors.NewValidation("insured person failed validation", violations)
	}
	return nil
}

func required(field, message string, get func(*InsuredPerson) string) Rule {
	return func(p *InsuredPerson, violations dErrors.FieldErrors) {
		if strings.TrimSpace(get(p)) == "" {
			violations.Add(field, message)
		}
	}
}

// emailRule checks the address exactly as it will be stored, so surrounding
// whitespace is a format violation.
func emailRule(p *InsuredPerson, violations dErrors.FieldErrors) {
	if strings.TrimSpace(p.Email) == "" {
		violations.Add(FieldEmail, "email is required")
		return
	}
	if !emailPattern.MatchString(p.Email) {
		violations.Add(FieldEmail, "email format is invalid")
	}
}

func birthDateRule(p *InsuredPerson, violations dErrors.FieldErrors) {
	if p.BirthDate.IsZero() {
		violations.Add(FieldBirthDate, "birth date is required")
	}
}

func insuredValueRule(p *InsuredPerson, violations dErrors.FieldErrors) {
	if !p.InsuredValue.Valid {
		violations.Add(FieldInsuredValue, "insured value is required")
	}
}
