package usercontext

// PlatformClaims are the platform provider's claims carried by an
// authenticated request, validated at the boundary before entering the
// core.
type PlatformClaims struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	AccessToken string `json:"-"`
}

// DirectoryClaims are the corporate directory provider's claims carried
// by an authenticated request.
type DirectoryClaims struct {
	ObjectID    string `json:"oid"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// RequestUser is the dual-provider claim set of one inbound request.
// Either provider's claims may be absent.
type RequestUser struct {
	GitHub *PlatformClaims  `json:"github,omitempty"`
	Azure  *DirectoryClaims `json:"azure,omitempty"`
}
