package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/apiverse/internal/models"
)

// ErrInvalid is matched by every validation failure.
var ErrInvalid = errors.New("invalid request")

// Error describes a rejected input. The message states the received value.
type Error struct {
	Field  string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}

func invalid(field, value, reason string) error {
	return &Error{Field: field, Value: value, Reason: reason}
}

// Limits.
const (
	DefaultLimit  = 10
	MaxLimit      = 100
	MaxDimension  = 4000
	MaxParagraphs = 50
	MaxWeightSum  = 100
)

var courseIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("courseid", func(fl validator.FieldLevel) bool {
		return courseIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateDate parses a YYYY-MM-DD calendar date.
func ValidateDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid("date", s, "expected YYYY-MM-DD")
	}
	return t, nil
}

// ValidateMonth parses a YYYY-MM month and returns its first day.
func ValidateMonth(s string) (time.Time, error) {
	t, err := time.Parse(models.MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid("month", s, "expected YYYY-MM")
	}
	return t, nil
}

// ValidatePagination parses limit and skip query values. Empty limit uses
// DefaultLimit; empty skip is 0.
func ValidatePagination(limitStr, skipStr string) (limit, offset int, err error) {
	limit, err = intParam("limit", limitStr, DefaultLimit, 1, MaxLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err = intParam("skip", skipStr, 0, 0, -1)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// ValidateEntityID parses a positive reference entity id.
func ValidateEntityID(s string) (int, error) {
	return intParam("id", s, -1, 1, -1)
}

// ValidateImageSize parses width and height within [1, MaxDimension].
func ValidateImageSize(widthStr, heightStr string) (int, int, error) {
	w, err := intParam("width", widthStr, -1, 1, MaxDimension)
	if err != nil {
		return 0, 0, err
	}
	h, err := intParam("height", heightStr, -1, 1, MaxDimension)
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

// ValidateParagraphCount parses the paragraph count; empty means 1.
func ValidateParagraphCount(s string) (int, error) {
	return intParam("count", s, 1, 1, MaxParagraphs)
}

// ValidateName checks an image category or name path segment.
func ValidateName(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return "", invalid(field, s, "must be a plain name")
	}
	return s, nil
}

// ValidateCourse checks field bounds and that the three weights sum to exactly 100.
func ValidateCourse(spec models.CourseSpec) error {
	if err := validate.Struct(spec); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return invalid(fe.Field(), fmt.Sprint(fe.Value()), describeTag(fe))
		}
		return invalid("course", spec.CourseID, err.Error())
	}
	total := spec.HomeworkWeight + spec.DiscussionWeight + spec.ExamWeight
	if total != MaxWeightSum {
		return invalid("weightage", strconv.Itoa(total), fmt.Sprintf("total weightage must be exactly 100%%, provided %d%%", total))
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "courseid":
		return "must be 1-64 letters, digits, '-' or '_'"
	}
	return "failed " + fe.Tag()
}

// intParam parses s. def < 0 makes the value required; hi < 0 means unbounded.
func intParam(field, s string, def, lo, hi int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if def < 0 {
			return 0, invalid(field, s, "is required")
		}
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalid(field, s, "must be an integer")
	}
	if n < lo || (hi >= 0 && n > hi) {
		if hi >= 0 {
			return 0, invalid(field, s, fmt.Sprintf("must be between %d and %d", lo, hi))
		}
		return 0, invalid(field, s, fmt.Sprintf("must be at least %d", lo))
	}
	return n, nil
}
