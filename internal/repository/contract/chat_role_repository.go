package contract

import "context"

type ChatRoleRepository interface {
	// Assign tags a number with a role. Repeated calls are no-ops.
	Assign(ctx context.Context, number string, roleId int64) error
}
