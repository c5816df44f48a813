package transfer

type LinkedInUserInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LinkedInRegisterUploadRequest struct {
	RegisterUploadRequest LinkedInUploadSpec `json:"registerUploadRequest"`
}

type LinkedInUploadSpec struct {
	Recipes              []string                      `json:"recipes"`
	Owner                string                        `json:"owner"`
	ServiceRelationships []LinkedInServiceRelationship `json:"serviceRelationships"`
}

type LinkedInServiceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type LinkedInRegisterUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism struct {
			HTTPRequest struct {
				UploadURL string            `json:"uploadUrl"`
				Headers   map[string]string `json:"headers"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

type LinkedInUGCPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent LinkedInSpecificContent `json:"specificContent"`
	Visibility      LinkedInVisibility      `json:"visibility"`
}

type LinkedInSpecificContent struct {
	ShareContent LinkedInShareContent `json:"com.linkedin.ugc.ShareContent"`
}

type LinkedInShareContent struct {
	ShareCommentary    LinkedInText    `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
	Media              []LinkedInMedia `json:"media,omitempty"`
}

type LinkedInText struct {
	Text string `json:"text"`
}

type LinkedInMedia struct {
	Status string `json:"status"`
	Media  string `json:"media"`
}

type LinkedInVisibility struct {
	MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
}

type LinkedInUGCPostResponse struct {
	ID string `json:"id"`
}

type LinkedInErrorResponse struct {
	Status           int    `json:"status"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
	Message          string `json:"message"`
}
