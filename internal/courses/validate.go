package courses

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON names, not Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidationError lists failing fields by their JSON path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate checks v against its `validate` struct tags.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe.Namespace())] = fe.Translate(translator)
	}
	return out
}

// fieldPath drops the root struct name: "CreateCourseInput.sections[0].price" -> "sections[0].price".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Inputs accepted at the HTTP boundary.

type CreateCourseInput struct {
	Title                  string               `json:"title" validate:"required,min=3,max=1500"`
	Description            string               `json:"description" validate:"max=9000"`
	ShortDescription       string               `json:"short_description" validate:"max=3000"`
	CourseImg              string               `json:"course_img" validate:"omitempty,url"`
	Level                  CourseLevel          `json:"level" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	EstimatedDurationHours float64              `json:"estimated_duration_hours" validate:"gte=0"`
	InstructorID           string               `json:"-"`
	Sections               []CreateSectionInput `json:"sections" validate:"required,min=1,dive"`
}

type CreateSectionInput struct {
	Title       string             `json:"title" validate:"required,min=3,max=1200"`
	Description string             `json:"description" validate:"max=3000"`
	PriceCents  *int64             `json:"price_cents" validate:"required,gte=0"`
	SortOrder   *int               `json:"sort_order" validate:"required,gt=0"`
	Videos      []CreateVideoInput `json:"videos" validate:"dive"`
	Files       []CreateFileInput  `json:"files" validate:"dive"`
}

type CreateVideoInput struct {
	Title           string `json:"title" validate:"required,min=3,max=1500"`
	VideoURL        string `json:"video_url" validate:"required,url"`
	SortOrder       *int   `json:"sort_order" validate:"required,gte=0"`
	DurationSeconds *int   `json:"duration_seconds" validate:"required,gte=0"`
	IsPreview       bool   `json:"is_preview"`
}

type CreateFileInput struct {
	Title     string `json:"title" validate:"required,min=3,max=1600"`
	FileURL   string `json:"file_url" validate:"required,url"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
	IsPreview bool   `json:"is_preview"`
}

type CreateEnrollmentInput struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
}

type RecordPaymentInput struct {
	ExternalID  string `json:"external_id" validate:"required,max=128"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
}

type UpdateStatusInput struct {
	Status EnrollmentStatus `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
}

type UpdateProgressInput struct {
	WatchDurationSeconds *int `json:"watch_duration_seconds" validate:"required,gte=0"`
}
