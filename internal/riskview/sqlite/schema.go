package sqlite

// schemaStatements create the risk database. Every statement is idempotent so an
// existing store can be refreshed in place.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS Users (
    UserID TEXT PRIMARY KEY,
    Name TEXT NOT NULL,
    Email TEXT NOT NULL,
    Department TEXT NOT NULL,
    Position TEXT NOT NULL,
    EmploymentStartDate TEXT NOT NULL,
    LastLogin TEXT NOT NULL,
    MFAStatus TEXT NOT NULL,
    AccountType TEXT NOT NULL DEFAULT 'regular',
    Status TEXT NOT NULL DEFAULT 'active',
    risk_topic TEXT
)`,
	`CREATE TABLE IF NOT EXISTS Roles (
    RoleID TEXT PRIMARY KEY,
    RoleName TEXT NOT NULL,
    Description TEXT NOT NULL,
    Permissions TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS UserRoles (
    UserID TEXT,
    RoleID TEXT,
    PRIMARY KEY (UserID, RoleID),
    FOREIGN KEY (UserID) REFERENCES Users(UserID),
    FOREIGN KEY (RoleID) REFERENCES Roles(RoleID)
)`,
	`CREATE TABLE IF NOT EXISTS Applications (
    ApplicationID TEXT PRIMARY KEY,
    ApplicationName TEXT NOT NULL,
    Description TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS UserApplications (
    UserID TEXT,
    ApplicationID TEXT,
    PRIMARY KEY (UserID, ApplicationID),
    FOREIGN KEY (UserID) REFERENCES Users(UserID),
    FOREIGN KEY (ApplicationID) REFERENCES Applications(ApplicationID)
)`,
	`CREATE TABLE IF NOT EXISTS Groups (
    GroupID TEXT PRIMARY KEY,
    GroupName TEXT NOT NULL,
    Description TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS UserGroups (
    UserID TEXT,
    GroupID TEXT,
    PRIMARY KEY (UserID, GroupID),
    FOREIGN KEY (UserID) REFERENCES Users(UserID),
    FOREIGN KEY (GroupID) REFERENCES Groups(GroupID)
)`,
	`CREATE TABLE IF NOT EXISTS Resources (
    ResourceID TEXT PRIMARY KEY,
    ResourceName TEXT NOT NULL,
    Description TEXT NOT NULL,
    AccessPolicies TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS ResourceRoles (
    ResourceID TEXT,
    RoleID TEXT,
    PRIMARY KEY (ResourceID, RoleID),
    FOREIGN KEY (ResourceID) REFERENCES Resources(ResourceID),
    FOREIGN KEY (RoleID) REFERENCES Roles(RoleID)
)`,
	`CREATE VIEW IF NOT EXISTS UserRiskView AS
SELECT
    UserID, Name, Email, Department, Position, EmploymentStartDate,
    LastLogin, MFAStatus, AccountType, Status, risk_topic
FROM Users
WHERE risk_topic IS NOT NULL`,
}

// Tables lists the entity and association tables in creation order.
var Tables = []string{
	"Users", "Roles", "UserRoles", "Applications", "UserApplications",
	"Groups", "UserGroups", "Resources", "ResourceRoles",
}

const RiskView = "UserRiskView"
