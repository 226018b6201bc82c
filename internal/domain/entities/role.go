package entities

// Role identifies which side of an interview produced an audio object
type Role string

const (
	// RoleOrganizer is the interviewer-side human participant
	RoleOrganizer Role = "organizer"
	// RoleCandidate is the candidate-side human participant
	RoleCandidate Role = "candidate"
	// RoleSpeechService is the automated voice coming back from the speech service
	RoleSpeechService Role = "bot"
	// RoleMerged tags the single mixed recording produced after a session ends
	RoleMerged Role = "merged"
)

// ParticipantRoles lists the roles a live connection may persist chunks under.
// The merged role is reserved for the post-processing pipeline.
func ParticipantRoles() []Role {
	return []Role{RoleOrganizer, RoleCandidate, RoleSpeechService}
}

// IsValid checks the role against the closed set
func (r Role) IsValid() bool {
	switch r {
	case RoleOrganizer, RoleCandidate, RoleSpeechService, RoleMerged:
		return true
	}
	return false
}

// IsParticipant reports whether the role may produce live chunks
func (r Role) IsParticipant() bool {
	return r == RoleOrganizer || r == RoleCandidate || r == RoleSpeechService
}

func (r Role) String() string {
	return string(r)
}
