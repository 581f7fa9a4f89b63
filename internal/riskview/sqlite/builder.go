package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/core/datamodel/identity"
	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/internal/riskview"
	"github.com/frahmantamala/iam-copilot/internal/snapshot"
)

const (
	defaultBatchSize = 200

	defaultAccountType = "regular"
	defaultStatus      = "active"
)

type Builder struct {
	path      string
	batchSize int
	logger    *slog.Logger
}

func NewBuilder(path string, batchSize int, logger *slog.Logger) *Builder {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Builder{path: path, batchSize: batchSize, logger: logger}
}

func (b *Builder) Path() string {
	return b.path
}

// Build writes the tagged snapshot to the risk database. A fresh database is written
// next to the destination and renamed over it, so readers see either the old file or
// the complete new one. Without ForceRecreate an existing database is emptied and
// refilled in a single transaction instead. Either way no row of an earlier snapshot
// survives.
func (b *Builder) Build(ctx context.Context, snap *snapshot.Snapshot, assignment risk.Assignment, opts riskview.BuildOptions) (*riskview.BuildReport, error) {
	start := time.Now()

	_, statErr := os.Stat(b.path)
	exists := statErr == nil

	var (
		report *riskview.BuildReport
		err    error
	)
	if opts.ForceRecreate || !exists {
		report, err = b.buildFresh(ctx, snap, assignment)
	} else {
		report, err = b.writeDatabase(ctx, b.path, snap, assignment)
	}
	if err != nil {
		b.logger.Error("risk database build failed", "path", b.path, "error", err)
		return nil, err
	}

	report.Path = b.path
	report.Recreated = opts.ForceRecreate || !exists
	report.Duration = time.Since(start)

	b.logger.Info("risk database built",
		"path", b.path,
		"recreated", report.Recreated,
		"users", report.Users,
		"at_risk", report.AtRisk,
		"skipped_associations", report.Skipped,
		"duration", report.Duration)
	return report, nil
}

func (b *Builder) buildFresh(ctx context.Context, snap *snapshot.Snapshot, assignment risk.Assignment) (*riskview.BuildReport, error) {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, internal.NewStoreBuildError("cannot create database directory", internal.ErrCodeWriteFailed, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(b.path), uuid.NewString()))
	report, err := b.writeDatabase(ctx, tmp, snap, assignment)
	if err != nil {
		removeDatabaseFiles(tmp)
		return nil, err
	}

	if err := os.Rename(tmp, b.path); err != nil {
		removeDatabaseFiles(tmp)
		return nil, internal.NewStoreBuildError("cannot replace risk database", internal.ErrCodeReplaceFailed, err)
	}
	// A journal left by an earlier crashed writer must not be replayed onto the new file.
	_ = os.Remove(b.path + "-journal")
	return report, nil
}

func (b *Builder) writeDatabase(ctx context.Context, path string, snap *snapshot.Snapshot, assignment risk.Assignment) (report *riskview.BuildReport, err error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, internal.NewStoreBuildError("cannot open risk database", internal.ErrCodeWriteFailed, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, internal.NewStoreBuildError("cannot open risk database", internal.ErrCodeWriteFailed, err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil && err == nil {
			err = internal.NewStoreBuildError("cannot close risk database", internal.ErrCodeWriteFailed, cerr)
		}
	}()

	report = &riskview.BuildReport{Associations: make(map[string]int)}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createSchema(tx); err != nil {
			return err
		}
		if err := clearTables(tx); err != nil {
			return err
		}
		if err := b.writeEntities(tx, snap, assignment, report); err != nil {
			return err
		}
		if err := b.writeAssociations(tx, snap, report); err != nil {
			return err
		}
		return b.countTopics(tx, report)
	})
	if err != nil {
		if _, ok := internal.IsAppError(err); !ok {
			err = internal.NewStoreBuildError("risk database transaction failed", internal.ErrCodeWriteFailed, err)
		}
		return nil, err
	}
	return report, nil
}

func createSchema(tx *gorm.DB) error {
	for _, stmt := range schemaStatements {
		if err := tx.Exec(stmt).Error; err != nil {
			return internal.NewStoreBuildError("cannot create risk schema", internal.ErrCodeSchemaFailed, err)
		}
	}
	return nil
}

// clearTables empties an existing store in reverse creation order, so referencing rows go first.
func clearTables(tx *gorm.DB) error {
	for i := len(Tables) - 1; i >= 0; i-- {
		if err := tx.Exec(`DELETE FROM "` + Tables[i] + `"`).Error; err != nil {
			return writeError(Tables[i], err)
		}
	}
	return nil
}

func (b *Builder) writeEntities(tx *gorm.DB, snap *snapshot.Snapshot, assignment risk.Assignment, report *riskview.BuildReport) error {
	users := make([]identity.User, 0, len(snap.Users))
	for _, u := range snap.Users {
		users = append(users, userRow(u, assignment))
	}
	if err := insert(tx, users, "OR REPLACE", b.batchSize); err != nil {
		return writeError("Users", err)
	}
	report.Users = len(users)

	roles := make([]identity.Role, 0, len(snap.Roles))
	for _, r := range snap.Roles {
		perms, err := encodeList(r.Permissions)
		if err != nil {
			return writeError("Roles", err)
		}
		roles = append(roles, identity.Role{RoleID: r.RoleID, RoleName: r.RoleName, Description: r.Description, Permissions: perms})
	}
	if err := insert(tx, roles, "OR REPLACE", b.batchSize); err != nil {
		return writeError("Roles", err)
	}
	report.Roles = len(roles)

	apps := make([]identity.Application, 0, len(snap.Applications))
	for _, a := range snap.Applications {
		apps = append(apps, identity.Application{ApplicationID: a.ApplicationID, ApplicationName: a.ApplicationName, Description: a.Description})
	}
	if err := insert(tx, apps, "OR REPLACE", b.batchSize); err != nil {
		return writeError("Applications", err)
	}
	report.Applications = len(apps)

	groups := make([]identity.Group, 0, len(snap.Groups))
	for _, g := range snap.Groups {
		groups = append(groups, identity.Group{GroupID: g.GroupID, GroupName: g.GroupName, Description: g.Description})
	}
	if err := insert(tx, groups, "OR REPLACE", b.batchSize); err != nil {
		return writeError("Groups", err)
	}
	report.Groups = len(groups)

	resources := make([]identity.Resource, 0, len(snap.Resources))
	for _, r := range snap.Resources {
		policies, err := encodeList(r.AccessPolicies)
		if err != nil {
			return writeError("Resources", err)
		}
		resources = append(resources, identity.Resource{ResourceID: r.ResourceID, ResourceName: r.ResourceName, Description: r.Description, AccessPolicies: policies})
	}
	if err := insert(tx, resources, "OR REPLACE", b.batchSize); err != nil {
		return writeError("Resources", err)
	}
	report.Resources = len(resources)

	return nil
}

// writeAssociations drops references to IDs the snapshot does not contain.
// SQLite does not enforce the declared foreign keys unless asked to.
func (b *Builder) writeAssociations(tx *gorm.DB, snap *snapshot.Snapshot, report *riskview.BuildReport) error {
	userIDs := snap.UserIDs()
	roleIDs := snap.RoleIDs()

	var userRoles []identity.UserRole
	for _, r := range snap.Roles {
		for _, uid := range r.AssociatedUsers {
			if !userIDs.Has(uid) {
				report.Skipped++
				continue
			}
			userRoles = append(userRoles, identity.UserRole{UserID: uid, RoleID: r.RoleID})
		}
	}

	var userApps []identity.UserApplication
	for _, a := range snap.Applications {
		for _, uid := range a.AssociatedUsers {
			if !userIDs.Has(uid) {
				report.Skipped++
				continue
			}
			userApps = append(userApps, identity.UserApplication{UserID: uid, ApplicationID: a.ApplicationID})
		}
	}

	var userGroups []identity.UserGroup
	for _, g := range snap.Groups {
		for _, uid := range g.AssociatedUsers {
			if !userIDs.Has(uid) {
				report.Skipped++
				continue
			}
			userGroups = append(userGroups, identity.UserGroup{UserID: uid, GroupID: g.GroupID})
		}
	}

	var resourceRoles []identity.ResourceRole
	for _, r := range snap.Resources {
		for _, rid := range r.AssociatedRoles {
			if !roleIDs.Has(rid) {
				report.Skipped++
				continue
			}
			resourceRoles = append(resourceRoles, identity.ResourceRole{ResourceID: r.ResourceID, RoleID: rid})
		}
	}

	if err := insert(tx, userRoles, "OR IGNORE", b.batchSize); err != nil {
		return writeError("UserRoles", err)
	}
	if err := insert(tx, userApps, "OR IGNORE", b.batchSize); err != nil {
		return writeError("UserApplications", err)
	}
	if err := insert(tx, userGroups, "OR IGNORE", b.batchSize); err != nil {
		return writeError("UserGroups", err)
	}
	if err := insert(tx, resourceRoles, "OR IGNORE", b.batchSize); err != nil {
		return writeError("ResourceRoles", err)
	}

	report.Associations["UserRoles"] = len(userRoles)
	report.Associations["UserApplications"] = len(userApps)
	report.Associations["UserGroups"] = len(userGroups)
	report.Associations["ResourceRoles"] = len(resourceRoles)

	if report.Skipped > 0 {
		b.logger.Debug("skipped dangling associations", "count", report.Skipped)
	}
	return nil
}

func (b *Builder) countTopics(tx *gorm.DB, report *riskview.BuildReport) error {
	var rows []identity.RiskCount
	err := tx.Model(&identity.User{}).
		Select("risk_topic, COUNT(*) AS total").
		Group("risk_topic").
		Scan(&rows).Error
	if err != nil {
		return writeError("Users", err)
	}

	report.TopicCounts = make(map[risk.Topic]int, len(risk.All()))
	for _, t := range risk.All() {
		report.TopicCounts[t] = 0
	}
	for _, row := range rows {
		if row.RiskTopic == nil {
			continue
		}
		if t, ok := risk.ParseTopic(*row.RiskTopic); ok {
			report.TopicCounts[t] = int(row.Total)
			report.AtRisk += int(row.Total)
		}
	}

	for _, t := range risk.All() {
		b.logger.Info("verified users with risk", "topic", t.String(), "count", report.TopicCounts[t])
	}
	return nil
}

func insert[T any](tx *gorm.DB, rows []T, modifier string, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.Insert{Modifier: modifier}).CreateInBatches(&rows, batchSize).Error
}

func userRow(u snapshot.User, assignment risk.Assignment) identity.User {
	row := identity.User{
		UserID:              u.UserID,
		Name:                u.Name,
		Email:               u.Email,
		Department:          u.Department,
		Position:            u.Position,
		EmploymentStartDate: u.EmploymentStartDate,
		LastLogin:           u.LastLogin,
		MFAStatus:           u.MFAStatus,
		AccountType:         orDefault(u.AccountType, defaultAccountType),
		Status:              orDefault(u.Status, defaultStatus),
	}
	if t, ok := assignment.TopicFor(u.UserID); ok && t.Valid() {
		name := t.String()
		row.RiskTopic = &name
	}
	return row
}

// encodeList stores list fields as JSON arrays; nil becomes "[]".
func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func writeError(table string, err error) error {
	var appErr *internal.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return internal.NewStoreBuildError(fmt.Sprintf("cannot write %s", table), internal.ErrCodeWriteFailed, err)
}

func removeDatabaseFiles(path string) {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
}
