package manager

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"diffusiond/pkg/types"
)

// Request defaults.
const (
	DefaultNegativePrompt = "hands, text, watermark, logo, frame, extra limbs, distorted, grotesque, lowres, blurry"
	DefaultWidth          = 1024
	DefaultHeight         = 1024
	DefaultSteps          = 28
	DefaultCFG            = 7.5
)

// Params is a request with defaults applied. Field names in errors follow the
// json tags.
type Params struct {
	Prompt         string  `json:"prompt" validate:"notblank"`
	NegativePrompt string  `json:"negative_prompt"`
	Width          int     `json:"width" validate:"min=512,max=1024"`
	Height         int     `json:"height" validate:"min=512,max=1024"`
	Steps          int     `json:"steps" validate:"min=10,max=50"`
	CFG            float64 `json:"cfg" validate:"min=1,max=20"`
	Seed           *int64  `json:"seed" validate:"omitempty,min=0"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate = v
	})
	return validate
}

// ParamsFromRequest applies defaults to req. A negative prompt given as an
// explicit empty string is kept empty.
func ParamsFromRequest(req types.GenerateRequest) Params {
	p := Params{
		Prompt:         req.Prompt,
		NegativePrompt: DefaultNegativePrompt,
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		Steps:          DefaultSteps,
		CFG:            DefaultCFG,
		Seed:           req.Seed,
	}
	if req.NegativePrompt != nil {
		p.NegativePrompt = *req.NegativePrompt
	}
	if req.Width != nil {
		p.Width = *req.Width
	}
	if req.Height != nil {
		p.Height = *req.Height
	}
	if req.Steps != nil {
		p.Steps = *req.Steps
	}
	if req.CFG != nil {
		p.CFG = *req.CFG
	}
	return p
}

// Validate checks p against its field constraints.
func (p Params) Validate() error {
	err := getValidator().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]types.FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, types.FieldError{
			Loc:  []string{"body", fe.Field()},
			Msg:  fieldMessage(fe),
			Type: fe.Tag(),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return fmt.Sprintf("%s must not be blank", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
