package request

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DeviceLabel string `json:"device_label,omitempty"`
}

// SignUpRequest is the request body for filling an invitation slot
type SignUpRequest struct {
	SlotID      string `json:"slot_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DeviceLabel string `json:"device_label,omitempty"`
}

// InviteRequest is the request body for creating an invitation slot
type InviteRequest struct {
	TempName        string   `json:"temp_name"`
	Permissions     []string `json:"permissions"`
	PermissionGroup int      `json:"permission_group"`
}

// SetPermissionsRequest is the request body for replacing a member's permissions
type SetPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// SetPermissionGroupRequest is the request body for moving a member to another group
type SetPermissionGroupRequest struct {
	PermissionGroup int `json:"permission_group"`
}
