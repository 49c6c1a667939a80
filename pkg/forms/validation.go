package forms

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Validator validates a field value.
type Validator interface {
	// Validate checks if the value is valid.
	Validate(value any) error

	// Message returns the error message.
	Message() string
}

// RequiredValidator validates that a field is not empty.
type RequiredValidator struct {
	Msg string
}

func (v RequiredValidator) Validate(value any) error {
	if isEmpty(value) {
		return errors.New("required")
	}
	return nil
}

func (v RequiredValidator) Message() string {
	return orDefault(v.Msg, "This field is required")
}

// EmailValidator validates email format.
type EmailValidator struct {
	Msg string
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func (v EmailValidator) Validate(value any) error {
	str := stringOf(value)
	if str == "" {
		return nil // Skip if empty (use Required for that)
	}
	if !emailRegex.MatchString(str) {
		return errors.New("invalid email")
	}
	return nil
}

func (v EmailValidator) Message() string {
	return orDefault(v.Msg, "Please enter a valid email address")
}

// URLValidator validates URL format.
type URLValidator struct {
	Msg string
}

var urlRegex = regexp.MustCompile(`^https?://[a-zA-Z0-9.-]+(:\d+)?(/.*)?$`)

func (v URLValidator) Validate(value any) error {
	str := stringOf(value)
	if str == "" {
		return nil
	}
	if !urlRegex.MatchString(str) {
		return errors.New("invalid URL")
	}
	return nil
}

func (v URLValidator) Message() string {
	return orDefault(v.Msg, "Please enter a valid URL")
}

// MinLengthValidator validates minimum string length.
type MinLengthValidator struct {
	Min int
	Msg string
}

func (v MinLengthValidator) Validate(value any) error {
	if utf8.RuneCountInString(stringOf(value)) < v.Min {
		return fmt.Errorf("too short (min %d)", v.Min)
	}
	return nil
}

func (v MinLengthValidator) Message() string {
	return orDefault(v.Msg, fmt.Sprintf("Must be at least %d characters", v.Min))
}

// MaxLengthValidator validates maximum string length.
type MaxLengthValidator struct {
	Max int
	Msg string
}

func (v MaxLengthValidator) Validate(value any) error {
	if utf8.RuneCountInString(stringOf(value)) > v.Max {
		return fmt.Errorf("too long (max %d)", v.Max)
	}
	return nil
}

func (v MaxLengthValidator) Message() string {
	return orDefault(v.Msg, fmt.Sprintf("Must be at most %d characters", v.Max))
}

// PatternValidator validates against a regex pattern.
type PatternValidator struct {
	Pattern string
	Msg     string
}

func (v PatternValidator) Validate(value any) error {
	str := stringOf(value)
	if str == "" {
		return nil
	}
	matched, err := regexp.MatchString(v.Pattern, str)
	if err != nil {
		return err
	}
	if !matched {
		return errors.New("pattern mismatch")
	}
	return nil
}

func (v PatternValidator) Message() string {
	return orDefault(v.Msg, "Invalid format")
}

// NumberValidator checks that the value parses as a number.
type NumberValidator struct {
	Integer bool
	Msg     string
}

func (v NumberValidator) Validate(value any) error {
	num, ok := toFloat64(value)
	if !ok {
		return errors.New("not a number")
	}
	if v.Integer && num != math.Trunc(num) {
		return errors.New("not an integer")
	}
	return nil
}

func (v NumberValidator) Message() string {
	if v.Integer {
		return orDefault(v.Msg, "Must be a whole number")
	}
	return orDefault(v.Msg, "Must be a number")
}

// MinValidator validates minimum numeric value.
type MinValidator struct {
	Min float64
	Msg string
}

func (v MinValidator) Validate(value any) error {
	num, ok := toFloat64(value)
	if !ok || num < v.Min {
		return fmt.Errorf("must be at least %v", v.Min)
	}
	return nil
}

func (v MinValidator) Message() string {
	return orDefault(v.Msg, fmt.Sprintf("Must be at least %v", v.Min))
}

// MaxValidator validates maximum numeric value.
type MaxValidator struct {
	Max float64
	Msg string
}

func (v MaxValidator) Validate(value any) error {
	num, ok := toFloat64(value)
	if !ok || num > v.Max {
		return fmt.Errorf("must be at most %v", v.Max)
	}
	return nil
}

func (v MaxValidator) Message() string {
	return orDefault(v.Msg, fmt.Sprintf("Must be at most %v", v.Max))
}

// RangeValidator validates a numeric range.
type RangeValidator struct {
	Min float64
	Max float64
	Msg string
}

func (v RangeValidator) Validate(value any) error {
	num, ok := toFloat64(value)
	if !ok || num < v.Min || num > v.Max {
		return fmt.Errorf("must be between %v and %v", v.Min, v.Max)
	}
	return nil
}

func (v RangeValidator) Message() string {
	return orDefault(v.Msg, fmt.Sprintf("Must be between %v and %v", v.Min, v.Max))
}

// PositiveValidator requires a number strictly greater than zero. Like
// parseInt, only the integer part is considered.
type PositiveValidator struct {
	Msg string
}

func (v PositiveValidator) Validate(value any) error {
	num, ok := toFloat64(value)
	if !ok || math.Trunc(num) <= 0 {
		return errors.New("not positive")
	}
	return nil
}

func (v PositiveValidator) Message() string {
	return orDefault(v.Msg, "Must be a positive number")
}

// OneOfValidator validates that value is one of allowed values.
type OneOfValidator struct {
	Values []string
	Msg    string
}

func (v OneOfValidator) Validate(value any) error {
	str := stringOf(value)
	for _, allowed := range v.Values {
		if str == allowed {
			return nil
		}
	}
	return errors.New("invalid option")
}

func (v OneOfValidator) Message() string {
	return orDefault(v.Msg, "Invalid selection")
}

// CustomValidator allows custom validation functions.
type CustomValidator struct {
	Fn  func(value any) error
	Msg string
}

func (v CustomValidator) Validate(value any) error {
	return v.Fn(value)
}

func (v CustomValidator) Message() string {
	return v.Msg
}

// Helper functions

// toFloat64 interprets numbers and numeric strings.
func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func orDefault(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}

func firstMsg(msg []string) string {
	if len(msg) > 0 {
		return msg[0]
	}
	return ""
}

// Convenience constructors

// Required returns a required validator.
func Required(msg ...string) Validator {
	return RequiredValidator{Msg: firstMsg(msg)}
}

// Email returns an email validator.
func Email(msg ...string) Validator {
	return EmailValidator{Msg: firstMsg(msg)}
}

// URL returns a URL validator.
func URL(msg ...string) Validator {
	return URLValidator{Msg: firstMsg(msg)}
}

// MinLength returns a minimum length validator.
func MinLength(n int, msg ...string) Validator {
	return MinLengthValidator{Min: n, Msg: firstMsg(msg)}
}

// MaxLength returns a maximum length validator.
func MaxLength(n int, msg ...string) Validator {
	return MaxLengthValidator{Max: n, Msg: firstMsg(msg)}
}

// Pattern returns a pattern validator.
func Pattern(pattern string, msg ...string) Validator {
	return PatternValidator{Pattern: pattern, Msg: firstMsg(msg)}
}

// Number returns a numeric validator.
func Number(msg ...string) Validator {
	return NumberValidator{Msg: firstMsg(msg)}
}

// Integer returns a whole-number validator.
func Integer(msg ...string) Validator {
	return NumberValidator{Integer: true, Msg: firstMsg(msg)}
}

// Min returns a minimum value validator.
func Min(n float64, msg ...string) Validator {
	return MinValidator{Min: n, Msg: firstMsg(msg)}
}

// Max returns a maximum value validator.
func Max(n float64, msg ...string) Validator {
	return MaxValidator{Max: n, Msg: firstMsg(msg)}
}

// Range returns a range validator.
func Range(min, max float64, msg ...string) Validator {
	return RangeValidator{Min: min, Max: max, Msg: firstMsg(msg)}
}

// Positive returns a positive number validator.
func Positive(msg ...string) Validator {
	return PositiveValidator{Msg: firstMsg(msg)}
}

// OneOf returns a one-of validator.
func OneOf(values ...string) Validator {
	return OneOfValidator{Values: values}
}

// Custom returns a custom validator.
func Custom(fn func(value any) error, msg string) Validator {
	return CustomValidator{Fn: fn, Msg: msg}
}
