package dto

// CreateStudyGroupRequest creates a new study group owned by the caller.
type CreateStudyGroupRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Course      string `json:"course" validate:"required,max=60"`
	Description string `json:"description" validate:"max=2000"`
	Capacity    int    `json:"capacity" validate:"min=0,max=500"`
	MeetingInfo string `json:"meeting_info" validate:"max=500"`
}

// UpdateStudyGroupRequest modifies group metadata, owner only.
type UpdateStudyGroupRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Course      string `json:"course" validate:"required,max=60"`
	Description string `json:"description" validate:"max=2000"`
	Capacity    int    `json:"capacity" validate:"min=0,max=500"`
	MeetingInfo string `json:"meeting_info" validate:"max=500"`
}

// StudyGroupDetail is a group together with its membership count.
type StudyGroupDetail struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Course      string `json:"course"`
	Description string `json:"description"`
	OwnerID     string `json:"owner_id"`
	Capacity    int    `json:"capacity"`
	MeetingInfo string `json:"meeting_info"`
	MemberCount int    `json:"member_count"`
}
