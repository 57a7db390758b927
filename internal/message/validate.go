package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+[0-9]+$`)

// fieldOrder fixes the order violations are reported in.
var fieldOrder = []string{"message_id", "from", "to", "ts", "text"}

// FieldError describes a single violated field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

// ErrInvalid is matched by every *ValidationError.
var ErrInvalid = errors.New("invalid payload")

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// payload mirrors the wire format. Strings are decoded separately so that
// type errors can be reported per field.
type payload struct {
	MessageID string  `json:"message_id" validate:"required"`
	From      string  `json:"from" validate:"required,phone"`
	To        string  `json:"to" validate:"required,phone"`
	TS        string  `json:"ts" validate:"required,utcts"`
	Text      *string `json:"text" validate:"omitempty,max=4096"`
}

// Validator decodes and validates raw webhook bodies. Safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a Validator with the phone and utcts rules registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("utcts", func(fl validator.FieldLevel) bool {
		_, err := ParseTimestamp(fl.Field().String())
		return err == nil
	})
	return &Validator{v: v}
}

var defaultValidator = NewValidator()

// Decode parses raw as a message and validates it with the default Validator.
func Decode(raw []byte) (Message, error) {
	return defaultValidator.Decode(raw)
}

// Decode parses raw as a message. On failure it returns a *ValidationError
// enumerating every violated field.
func (v *Validator) Decode(raw []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Message{}, &ValidationError{Fields: []FieldError{{Field: "body", Message: "must be a JSON object"}}}
	}

	problems := map[string]string{}
	var p payload

	decodeString := func(name string, dst *string) {
		rawVal, ok := fields[name]
		if !ok || isNull(rawVal) {
			return
		}
		if err := json.Unmarshal(rawVal, dst); err != nil {
			problems[name] = "must be a string"
		}
	}
	decodeString("message_id", &p.MessageID)
	decodeString("from", &p.From)
	decodeString("to", &p.To)
	decodeString("ts", &p.TS)
	if rawVal, ok := fields["text"]; ok && !isNull(rawVal) {
		var text string
		if err := json.Unmarshal(rawVal, &text); err != nil {
			problems["text"] = "must be a string"
		} else {
			p.Text = &text
		}
	}

	if err := v.v.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Message{}, fmt.Errorf("validate payload: %w", err)
		}
		for _, fe := range verrs {
			if _, seen := problems[fe.Field()]; seen {
				continue
			}
			problems[fe.Field()] = describe(fe)
		}
	}

	if len(problems) > 0 {
		verr := &ValidationError{}
		for _, name := range fieldOrder {
			if msg, ok := problems[name]; ok {
				verr.Fields = append(verr.Fields, FieldError{Field: name, Message: msg})
			}
		}
		return Message{}, verr
	}

	ts, err := ParseTimestamp(p.TS)
	if err != nil {
		// utcts already accepted it
		return Message{}, fmt.Errorf("parse ts: %w", err)
	}
	return Message{
		ID:   p.MessageID,
		From: p.From,
		To:   p.To,
		TS:   ts,
		Text: p.Text,
	}, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "phone":
		return "must be in E.164 format (+ followed by digits)"
	case "utcts":
		return "must be an ISO-8601 UTC timestamp ending in Z"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "invalid value"
	}
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
