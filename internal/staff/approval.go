package staff

// ApprovalPolicy decides who may resolve transfers waiting for approval.
type ApprovalPolicy interface {
	IsApprover(p *Person) bool
	CanApprove(approver *Person, fromUserID int64) bool
}

// PermissionApprovalPolicy grants approval to holders of any listed
// permission or role. A sender can never approve their own request.
type PermissionApprovalPolicy struct {
	Permissions []string
	Roles       []string
}

func NewApprovalPolicy() *PermissionApprovalPolicy {
	return &PermissionApprovalPolicy{
		Permissions: []string{PermissionApproveTransfers, PermissionAdmin},
		Roles:       []string{RoleManager, RoleAdmin},
	}
}

func (a *PermissionApprovalPolicy) IsApprover(p *Person) bool {
	if p == nil || !p.IsActive {
		return false
	}
	for _, role := range a.Roles {
		if p.Role == role {
			return true
		}
	}
	return p.HasAnyPermission(a.Permissions...)
}

func (a *PermissionApprovalPolicy) CanApprove(approver *Person, fromUserID int64) bool {
	if approver == nil || approver.ID == fromUserID {
		return false
	}
	return a.IsApprover(approver)
}
