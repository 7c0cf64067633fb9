package identity

// Authorize reports whether the principal may invoke operations of the given
// department. It fails closed: inactive users, missing profiles, and
// unapproved or mismatched profiles are all denied. Staff status does not
// grant department access by itself.
func Authorize(p Principal, dept Department) bool {
	if p.User == nil || !p.User.Active {
		return false
	}
	if p.Profile == nil || !p.Profile.Approved {
		return false
	}
	return p.Profile.Department == dept
}

// AuthorizeAdmin reports whether the principal may use the administrative
// surface (user management, audit log).
func AuthorizeAdmin(p Principal) bool {
	return p.User != nil && p.User.Active && p.User.Staff
}

// Destination is where a freshly authenticated user is routed.
type Destination string

const (
	DestPending   Destination = "pending"
	DestAdmin     Destination = "admin"
	DestDashboard Destination = "dashboard"
)

// RouteAfterLogin computes the post-login destination for a principal.
func RouteAfterLogin(p Principal) Destination {
	if p.Profile == nil {
		if p.User != nil && p.User.Staff {
			return DestAdmin
		}
		return DestDashboard
	}
	if !p.Profile.Approved {
		return DestPending
	}
	switch p.Profile.Department {
	case DeptFinance:
		return Destination(DeptFinance)
	case DeptAdmissions:
		return Destination(DeptAdmissions)
	case DeptStores:
		return Destination(DeptStores)
	case DeptExaminations:
		return Destination(DeptExaminations)
	default:
		return DestDashboard
	}
}
