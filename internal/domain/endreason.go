package domain

// EndReason is the closed enumeration of ways a session record is finalized.
// Once set on the ledger it never changes.
type EndReason string

const (
	EndedByMentor EndReason = "ended_by_mentor"
	EndedByMentee EndReason = "ended_by_mentee"
	NoShowBoth    EndReason = "no_show_both"
	NoShowMentor  EndReason = "no_show_mentor"
	NoShowMentee  EndReason = "no_show_mentee"
)

// EndReasonFor maps the role that terminated the session to its reason.
func EndReasonFor(r Role) EndReason {
	if r == RoleHost {
		return EndedByMentor
	}
	return EndedByMentee
}
