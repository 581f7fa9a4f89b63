package sqlite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/internal/riskview"
	riskSQLite "github.com/frahmantamala/iam-copilot/internal/riskview/sqlite"
	"github.com/frahmantamala/iam-copilot/internal/snapshot"
	"github.com/frahmantamala/iam-copilot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRiskViewSQLite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Risk View SQLite Suite")
}

var reference = time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)

func fixture() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Users: []snapshot.User{
			{UserID: "U1", Name: "Ann", Email: "ann@example.com", MFAStatus: "none", LastLogin: "", Status: "active", AccountType: "regular"},
			{UserID: "U2", Name: "Bob", Email: "bob@example.com", MFAStatus: "sms", LastLogin: "2024-06-20", Status: "offboarded", AccountType: "regular"},
			{UserID: "U3", Name: "Svc", Email: "svc@example.com", MFAStatus: "app", LastLogin: "2024-06-29", EmploymentStartDate: "2019-01-01", AccountType: "service"},
			{UserID: "U4", Name: "Cat", Email: "cat@example.com", MFAStatus: "app", LastLogin: "2024-06-29", EmploymentStartDate: "2019-01-01", Status: "active", AccountType: "regular"},
		},
		Roles: []snapshot.Role{
			{RoleID: "R1", RoleName: "Admin", Description: "all access", Permissions: []string{"read", "write"}, AssociatedUsers: []string{"U1", "U_missing", "U1"}},
			{RoleID: "R2", RoleName: "Viewer", Description: "read only"},
		},
		Applications: []snapshot.Application{{ApplicationID: "A1", ApplicationName: "CRM", AssociatedUsers: []string{"U2", "U3"}}},
		Groups:       []snapshot.Group{{GroupID: "G1", GroupName: "Sales", AssociatedUsers: []string{"U2", "U_gone"}}},
		Resources:    []snapshot.Resource{{ResourceID: "S1", ResourceName: "Bucket", AccessPolicies: []string{"private"}, AssociatedRoles: []string{"R1", "R_missing"}}},
	}
}

type tableDump map[string][]map[string]interface{}

func dump(path string) tableDump {
	db, err := sqlx.Open("sqlite3", "file:"+path+"?mode=ro")
	Expect(err).NotTo(HaveOccurred())
	defer db.Close()

	out := tableDump{}
	for _, table := range append(riskSQLite.Tables, riskSQLite.RiskView) {
		rows, err := db.Queryx("SELECT * FROM " + table + " ORDER BY 1, 2")
		Expect(err).NotTo(HaveOccurred())
		for rows.Next() {
			row := map[string]interface{}{}
			Expect(rows.MapScan(row)).To(Succeed())
			for k, v := range row {
				if b, ok := v.([]byte); ok {
					row[k] = string(b)
				}
			}
			out[table] = append(out[table], row)
		}
		Expect(rows.Close()).To(Succeed())
	}
	return out
}

var _ = Describe("Builder", func() {
	var (
		ctx        context.Context
		dir        string
		path       string
		snap       *snapshot.Snapshot
		assignment risk.Assignment
		builder    *riskSQLite.Builder
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "nested", "risk.db")
		snap = fixture()
		assignment = risk.NewDetector(logger.Discard(), risk.WithReferenceDate(reference)).Assign(snap)
		builder = riskSQLite.NewBuilder(path, 2, logger.Discard())
	})

	It("creates the schema and tags users", func() {
		report, err := builder.Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Recreated).To(BeTrue())
		Expect(report.Users).To(Equal(4))
		Expect(report.AtRisk).To(Equal(3))
		Expect(report.TopicCounts[risk.NoMFAUsers]).To(Equal(1))
		Expect(report.TopicCounts[risk.WeakMFAUsers]).To(Equal(1))
		Expect(report.TopicCounts[risk.ServiceAccounts]).To(Equal(1))
		Expect(report.TopicNames()).To(HaveKeyWithValue("LOCAL_ACCOUNTS", 0))

		tables := dump(path)
		Expect(tables["Users"]).To(HaveLen(4))
		Expect(tables["Users"][2]).To(HaveKeyWithValue("Status", "active"))
		Expect(tables["Users"][3]).To(HaveKeyWithValue("risk_topic", BeNil()))
		Expect(tables["Roles"][0]).To(HaveKeyWithValue("Permissions", `["read","write"]`))
		Expect(tables["Roles"][1]).To(HaveKeyWithValue("Permissions", "[]"))
		Expect(tables["Resources"][0]).To(HaveKeyWithValue("AccessPolicies", `["private"]`))
	})

	It("omits dangling associations without failing", func() {
		report, err := builder.Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Skipped).To(Equal(3))

		tables := dump(path)
		Expect(tables["UserRoles"]).To(ConsistOf(map[string]interface{}{"UserID": "U1", "RoleID": "R1"}))
		Expect(tables["UserGroups"]).To(ConsistOf(map[string]interface{}{"UserID": "U2", "GroupID": "G1"}))
		Expect(tables["UserApplications"]).To(HaveLen(2))
		Expect(tables["ResourceRoles"]).To(ConsistOf(map[string]interface{}{"ResourceID": "S1", "RoleID": "R1"}))
	})

	It("exposes exactly the tagged users through UserRiskView", func() {
		_, err := builder.Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())

		got := map[string]string{}
		for _, row := range dump(path)[riskSQLite.RiskView] {
			got[row["UserID"].(string)] = row["risk_topic"].(string)
		}
		want := map[string]string{}
		for id, t := range assignment {
			want[id] = t.String()
		}
		Expect(got).To(Equal(want))
		Expect(got).To(Equal(map[string]string{
			"U1": "NO_MFA_USERS",
			"U2": "WEAK_MFA_USERS",
			"U3": "SERVICE_ACCOUNTS",
		}))
	})

	It("produces identical contents when recreated twice", func() {
		_, err := builder.Build(ctx, snap, assignment, riskview.BuildOptions{ForceRecreate: true})
		Expect(err).NotTo(HaveOccurred())
		first := dump(path)

		_, err = builder.Build(ctx, snap, assignment, riskview.BuildOptions{ForceRecreate: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(dump(path)).To(Equal(first))
	})

	It("refreshes an existing database in place", func() {
		_, err := builder.Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())

		snap.Users[3].AccountType = "local"
		assignment = risk.NewDetector(logger.Discard(), risk.WithReferenceDate(reference)).Assign(snap)

		report, err := builder.Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Recreated).To(BeFalse())
		Expect(report.TopicCounts[risk.LocalAccounts]).To(Equal(1))
		Expect(dump(path)["Users"]).To(HaveLen(4))
	})

	It("drops rows of the previous snapshot when rebuilding in place", func() {
		_, err := builder.Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())

		snap.Users = snap.Users[2:]
		snap.Groups[0].AssociatedUsers = nil
		snap.Roles = snap.Roles[1:]
		assignment = risk.NewDetector(logger.Discard(), risk.WithReferenceDate(reference)).Assign(snap)

		report, err := builder.Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Recreated).To(BeFalse())
		Expect(report.AtRisk).To(Equal(1))

		tables := dump(path)
		Expect(tables["Users"]).To(HaveLen(2))
		Expect(tables[riskSQLite.RiskView]).To(HaveLen(1))
		Expect(tables[riskSQLite.RiskView][0]).To(HaveKeyWithValue("UserID", "U3"))
		Expect(tables["Roles"]).To(ConsistOf(HaveKeyWithValue("RoleID", "R2")))
		Expect(tables["UserGroups"]).To(BeEmpty())
		Expect(tables["UserRoles"]).To(BeEmpty())
		Expect(tables["UserApplications"]).To(ConsistOf(map[string]interface{}{"UserID": "U3", "ApplicationID": "A1"}))
	})

	It("matches a forced rebuild after an in-place rebuild", func() {
		_, err := builder.Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())

		snap.Users = snap.Users[1:]
		assignment = risk.NewDetector(logger.Discard(), risk.WithReferenceDate(reference)).Assign(snap)

		_, err = builder.Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())
		inPlace := dump(path)

		_, err = builder.Build(ctx, snap, assignment, riskview.BuildOptions{ForceRecreate: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(dump(path)).To(Equal(inPlace))
	})

	It("leaves the previous database and no temporary files behind on failure", func() {
		_, err := builder.Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())
		before := dump(path)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err = builder.Build(cancelled, &snapshot.Snapshot{}, risk.Assignment{}, riskview.BuildOptions{ForceRecreate: true})
		Expect(err).To(HaveOccurred())
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeStoreBuild))

		_, err = builder.Build(cancelled, &snapshot.Snapshot{}, risk.Assignment{}, riskview.BuildOptions{})
		Expect(err).To(HaveOccurred())

		Expect(dump(path)).To(Equal(before))
		entries, err := os.ReadDir(filepath.Dir(path))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})
})

var _ = Describe("Executor", func() {
	var (
		ctx      context.Context
		path     string
		executor *riskSQLite.Executor
	)

	BeforeEach(func() {
		ctx = context.Background()
		path = filepath.Join(GinkgoT().TempDir(), "risk.db")
		snap := fixture()
		assignment := risk.NewDetector(logger.Discard(), risk.WithReferenceDate(reference)).Assign(snap)
		_, err := riskSQLite.NewBuilder(path, 0, logger.Discard()).Build(ctx, snap, assignment, riskview.BuildOptions{})
		Expect(err).NotTo(HaveOccurred())

		executor, err = riskSQLite.OpenExecutor(ctx, path, logger.Discard(), riskSQLite.WithSampleRows(2))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(executor.Close)
	})

	It("renders rows with a header and a row count", func() {
		out, err := executor.Execute(ctx, "SELECT UserID, risk_topic FROM UserRiskView ORDER BY UserID")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("UserID | risk_topic\nU1 | NO_MFA_USERS\nU2 | WEAK_MFA_USERS\nU3 | SERVICE_ACCOUNTS\n(3 row(s) returned)"))
	})

	It("renders NULL values", func() {
		out, err := executor.Execute(ctx, "SELECT UserID, risk_topic FROM Users WHERE UserID = 'U4'")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("U4 | NULL"))
	})

	It("reports an empty result as an error", func() {
		_, err := executor.Execute(ctx, "SELECT UserID FROM Users WHERE UserID = 'nobody'")
		Expect(errors.Is(err, internal.ErrEmptyResult)).To(BeTrue())
	})

	It("reports invalid SQL as an execution error", func() {
		_, err := executor.Execute(ctx, "SELECT missing_column FROM Users")
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeQueryFailed))
	})

	It("refuses anything but a single SELECT", func() {
		_, err := executor.Execute(ctx, "DELETE FROM Users")
		Expect(errors.Is(err, internal.ErrNotReadOnly)).To(BeTrue())

		_, err = executor.Execute(ctx, "SELECT 1; DELETE FROM Users")
		Expect(errors.Is(err, internal.ErrNotReadOnly)).To(BeTrue())

		out, err := executor.Execute(ctx, "SELECT COUNT(*) AS n FROM Users")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HavePrefix("n\n4\n"))
	})

	It("describes the schema with DDL and sample rows", func() {
		meta, err := executor.SchemaMetadata(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta).To(ContainSubstring("UserID TEXT PRIMARY KEY"))
		Expect(meta).To(ContainSubstring("WHERE risk_topic IS NOT NULL"))
		Expect(meta).To(ContainSubstring("2 rows from Users table:"))
		Expect(meta).To(ContainSubstring("risk_topic"))
	})

	It("counts users per topic", func() {
		counts, err := executor.TopicCounts(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(counts).To(HaveLen(8))
		Expect(counts[risk.NoMFAUsers]).To(Equal(1))
		Expect(counts[risk.RecentlyJoinedUsers]).To(Equal(0))
	})

	It("fails to open a database that was never built", func() {
		_, err := riskSQLite.OpenExecutor(ctx, filepath.Join(GinkgoT().TempDir(), "none.db"), logger.Discard())
		Expect(errors.Is(err, internal.ErrStoreMissing)).To(BeTrue())
	})
})
