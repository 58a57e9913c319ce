package model

import (
	"github.com/google/uuid"

	"github.com/pushmint/notify-api/pkg/errors"
)

// Target is the tagged union of audiences a notification can address.
// Exactly one variant applies to any request.
type Target interface {
	targetType() TargetType
}

type SingleUser struct {
	UserID uuid.UUID
}

type UserGroup struct {
	GroupID uuid.UUID
}

type AllUsers struct {
	ExcludeAdmins bool
}

func (SingleUser) targetType() TargetType { return TargetTypeSingleUser }
func (UserGroup) targetType() TargetType  { return TargetTypeUserGroup }
func (AllUsers) targetType() TargetType   { return TargetTypeAllUsers }

// TargetFromRequest builds the Target variant for a request, enforcing the
// target_type/target_id consistency invariant.
func TargetFromRequest(req *NotificationRequest) (Target, error) {
	switch req.TargetType {
	case TargetTypeSingleUser:
		if req.TargetID == nil {
			return nil, errors.Validation("target_id is required for single_user targets")
		}
		return SingleUser{UserID: *req.TargetID}, nil
	case TargetTypeUserGroup:
		if req.TargetID == nil {
			return nil, errors.Validation("target_id is required for user_group targets")
		}
		return UserGroup{GroupID: *req.TargetID}, nil
	case TargetTypeAllUsers:
		if req.TargetID != nil {
			return nil, errors.Validation("target_id must be empty for all_users targets")
		}
		return AllUsers{ExcludeAdmins: req.ExcludeAdmins}, nil
	default:
		return nil, errors.Validation("unknown target type: " + string(req.TargetType))
	}
}
