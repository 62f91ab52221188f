package handlers

import (
	"reflect"
	"strings"
	"sync"

	"nva-backoffice/internal/utils"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules on gin's validator
// and reports fields by their json or form name. Safe to call repeatedly.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
		_ = v.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
			_, err := utils.ParseMonth(fl.Field().String())
			return err == nil
		})
	})
}

// monthQuery is shared by every endpoint taking ?month=YYYY-MM.
type monthQuery struct {
	Month string `form:"month" binding:"omitempty,yearmonth"`
}
