package debate

// Role distinguishes the moderator from ordinary debaters.
type Role string

const (
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
)

// Participant is one configured voice in the debate. The first participant
// in a session's list must hold RoleModerator; list order defines turn
// rotation. Color and Avatar are passed through for the frontend only.
type Participant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	Model        string `json:"model"`
	ModelName    string `json:"modelName,omitempty"`
	Instructions string `json:"instructions"`
	Color        string `json:"color,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
}
