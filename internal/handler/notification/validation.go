package notification

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/pushmint/notify-api/internal/model"
)

// registerValidations adds enum checks to gin's binding validator so
// malformed requests are rejected before they reach the service.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("targettype", func(fl validator.FieldLevel) bool {
		switch model.TargetType(fl.Field().String()) {
		case model.TargetTypeSingleUser, model.TargetTypeUserGroup, model.TargetTypeAllUsers:
			return true
		default:
			return false
		}
	})

	_ = v.RegisterValidation("scheduletype", func(fl validator.FieldLevel) bool {
		switch model.ScheduleType(fl.Field().String()) {
		case model.ScheduleTypeImmediate, model.ScheduleTypeScheduled:
			return true
		default:
			return false
		}
	})
}
