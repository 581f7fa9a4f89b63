// Package snapshot holds the point-in-time identity data a risk run works on.
package snapshot

type User struct {
	UserID              string `json:"UserID" yaml:"UserID"`
	Name                string `json:"Name" yaml:"Name"`
	Email               string `json:"Email" yaml:"Email"`
	Department          string `json:"Department" yaml:"Department"`
	Position            string `json:"Position" yaml:"Position"`
	EmploymentStartDate string `json:"EmploymentStartDate" yaml:"EmploymentStartDate"`
	LastLogin           string `json:"LastLogin" yaml:"LastLogin"`
	MFAStatus           string `json:"MFAStatus" yaml:"MFAStatus"`
	AccountType         string `json:"AccountType" yaml:"AccountType"`
	Status              string `json:"Status" yaml:"Status"`
}

type Role struct {
	RoleID          string   `json:"RoleID" yaml:"RoleID"`
	RoleName        string   `json:"RoleName" yaml:"RoleName"`
	Description     string   `json:"Description" yaml:"Description"`
	Permissions     []string `json:"Permissions" yaml:"Permissions"`
	AssociatedUsers []string `json:"AssociatedUsers" yaml:"AssociatedUsers"`
}

type Application struct {
	ApplicationID   string   `json:"ApplicationID" yaml:"ApplicationID"`
	ApplicationName string   `json:"ApplicationName" yaml:"ApplicationName"`
	Description     string   `json:"Description" yaml:"Description"`
	AssociatedUsers []string `json:"AssociatedUsers" yaml:"AssociatedUsers"`
}

type Group struct {
	GroupID         string   `json:"GroupID" yaml:"GroupID"`
	GroupName       string   `json:"GroupName" yaml:"GroupName"`
	Description     string   `json:"Description" yaml:"Description"`
	AssociatedUsers []string `json:"AssociatedUsers" yaml:"AssociatedUsers"`
}

type Resource struct {
	ResourceID      string   `json:"ResourceID" yaml:"ResourceID"`
	ResourceName    string   `json:"ResourceName" yaml:"ResourceName"`
	Description     string   `json:"Description" yaml:"Description"`
	AccessPolicies  []string `json:"AccessPolicies" yaml:"AccessPolicies"`
	AssociatedRoles []string `json:"AssociatedRoles" yaml:"AssociatedRoles"`
}

// Snapshot is treated as immutable once loaded; nothing in the module mutates it.
type Snapshot struct {
	Users        []User        `json:"Users" yaml:"Users"`
	Roles        []Role        `json:"Roles" yaml:"Roles"`
	Applications []Application `json:"Applications" yaml:"Applications"`
	Groups       []Group       `json:"Groups" yaml:"Groups"`
	Resources    []Resource    `json:"Resources" yaml:"Resources"`
}

type IDSet map[string]struct{}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s *Snapshot) UserIDs() IDSet {
	ids := make(IDSet, len(s.Users))
	for _, u := range s.Users {
		ids[u.UserID] = struct{}{}
	}
	return ids
}

func (s *Snapshot) RoleIDs() IDSet {
	ids := make(IDSet, len(s.Roles))
	for _, r := range s.Roles {
		ids[r.RoleID] = struct{}{}
	}
	return ids
}

// UsersWithLingeringAccess returns every user ID still listed by an application or a group.
func (s *Snapshot) UsersWithLingeringAccess() IDSet {
	ids := make(IDSet)
	for _, app := range s.Applications {
		for _, id := range app.AssociatedUsers {
			ids[id] = struct{}{}
		}
	}
	for _, g := range s.Groups {
		for _, id := range g.AssociatedUsers {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func (s *Snapshot) Counts() map[string]int {
	return map[string]int{
		"users":        len(s.Users),
		"roles":        len(s.Roles),
		"applications": len(s.Applications),
		"groups":       len(s.Groups),
		"resources":    len(s.Resources),
	}
}
