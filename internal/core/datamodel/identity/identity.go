// Package identity holds the row models of the risk database.
package identity

type User struct {
	UserID              string  `gorm:"column:UserID;primaryKey"`
	Name                string  `gorm:"column:Name;not null"`
	Email               string  `gorm:"column:Email;not null"`
	Department          string  `gorm:"column:Department;not null"`
	Position            string  `gorm:"column:Position;not null"`
	EmploymentStartDate string  `gorm:"column:EmploymentStartDate;not null"`
	LastLogin           string  `gorm:"column:LastLogin;not null"`
	MFAStatus           string  `gorm:"column:MFAStatus;not null"`
	AccountType         string  `gorm:"column:AccountType;not null"`
	Status              string  `gorm:"column:Status;not null"`
	RiskTopic           *string `gorm:"column:risk_topic"`
}

func (User) TableName() string { return "Users" }

type Role struct {
	RoleID      string `gorm:"column:RoleID;primaryKey"`
	RoleName    string `gorm:"column:RoleName;not null"`
	Description string `gorm:"column:Description;not null"`
	Permissions string `gorm:"column:Permissions;not null"`
}

func (Role) TableName() string { return "Roles" }

type Application struct {
	ApplicationID   string `gorm:"column:ApplicationID;primaryKey"`
	ApplicationName string `gorm:"column:ApplicationName;not null"`
	Description     string `gorm:"column:Description;not null"`
}

func (Application) TableName() string { return "Applications" }

type Group struct {
	GroupID     string `gorm:"column:GroupID;primaryKey"`
	GroupName   string `gorm:"column:GroupName;not null"`
	Description string `gorm:"column:Description;not null"`
}

func (Group) TableName() string { return "Groups" }

type Resource struct {
	ResourceID     string `gorm:"column:ResourceID;primaryKey"`
	ResourceName   string `gorm:"column:ResourceName;not null"`
	Description    string `gorm:"column:Description;not null"`
	AccessPolicies string `gorm:"column:AccessPolicies;not null"`
}

func (Resource) TableName() string { return "Resources" }

type UserRole struct {
	UserID string `gorm:"column:UserID;primaryKey"`
	RoleID string `gorm:"column:RoleID;primaryKey"`
}

func (UserRole) TableName() string { return "UserRoles" }

type UserApplication struct {
	UserID        string `gorm:"column:UserID;primaryKey"`
	ApplicationID string `gorm:"column:ApplicationID;primaryKey"`
}

func (UserApplication) TableName() string { return "UserApplications" }

type UserGroup struct {
	UserID  string `gorm:"column:UserID;primaryKey"`
	GroupID string `gorm:"column:GroupID;primaryKey"`
}

func (UserGroup) TableName() string { return "UserGroups" }

type ResourceRole struct {
	ResourceID string `gorm:"column:ResourceID;primaryKey"`
	RoleID     string `gorm:"column:RoleID;primaryKey"`
}

func (ResourceRole) TableName() string { return "ResourceRoles" }

// RiskCount is one row of a per-topic aggregate. RiskTopic is nil for users without risk.
type RiskCount struct {
	RiskTopic *string `gorm:"column:risk_topic" db:"risk_topic"`
	Total     int64   `gorm:"column:total" db:"total"`
}
