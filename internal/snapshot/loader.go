package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/core/common/validation"
)

type Loader interface {
	Load() (*Snapshot, error)
}

// FileLoader reads a snapshot from a JSON or YAML file, chosen by extension.
type FileLoader struct {
	Path   string
	logger *slog.Logger
}

func NewFileLoader(path string, logger *slog.Logger) *FileLoader {
	return &FileLoader{Path: path, logger: logger}
}

func (l *FileLoader) Load() (*Snapshot, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, internal.NewLoadError(fmt.Sprintf("cannot read snapshot %s", l.Path), internal.ErrCodeSnapshotUnreadable, err)
	}

	snap, err := Decode(data, formatFor(l.Path))
	if err != nil {
		return nil, err
	}

	l.logger.Info("snapshot loaded",
		"path", l.Path,
		"users", len(snap.Users),
		"roles", len(snap.Roles),
		"applications", len(snap.Applications),
		"groups", len(snap.Groups),
		"resources", len(snap.Resources))
	return snap, nil
}

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses and validates a snapshot document. Missing top-level keys decode to empty collections.
func Decode(data []byte, format Format) (*Snapshot, error) {
	snap := &Snapshot{}

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, snap)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(snap)
	}
	if err != nil {
		return nil, internal.NewLoadError("malformed snapshot document", internal.ErrCodeSnapshotMalformed, err)
	}

	snap.normalize()

	if appErr := Validate(snap); appErr != nil {
		return nil, internal.NewLoadError("invalid snapshot", internal.ErrCodeSnapshotInvalid, appErr).
			WithDetails(appErr.Details)
	}
	return snap, nil
}

func (s *Snapshot) normalize() {
	if s.Users == nil {
		s.Users = []User{}
	}
	if s.Roles == nil {
		s.Roles = []Role{}
	}
	if s.Applications == nil {
		s.Applications = []Application{}
	}
	if s.Groups == nil {
		s.Groups = []Group{}
	}
	if s.Resources == nil {
		s.Resources = []Resource{}
	}
}

// Validate checks that every record has an ID unique within its collection and that
// date fields carry a YYYY-MM-DD prefix, which the risk rules compare as strings.
func Validate(s *Snapshot) *internal.AppError {
	v := validation.NewValidator()

	seen := make(map[string]struct{}, len(s.Users))
	for i, u := range s.Users {
		v.Field(fmt.Sprintf("Users[%d].UserID", i), u.UserID).Required().Unique(seen)
		v.Field(fmt.Sprintf("Users[%d].LastLogin", i), u.LastLogin).ISODate()
		v.Field(fmt.Sprintf("Users[%d].EmploymentStartDate", i), u.EmploymentStartDate).ISODate()
	}

	seen = make(map[string]struct{}, len(s.Roles))
	for i, r := range s.Roles {
		v.Field(fmt.Sprintf("Roles[%d].RoleID", i), r.RoleID).Required().Unique(seen)
	}

	seen = make(map[string]struct{}, len(s.Applications))
	for i, a := range s.Applications {
		v.Field(fmt.Sprintf("Applications[%d].ApplicationID", i), a.ApplicationID).Required().Unique(seen)
	}

	seen = make(map[string]struct{}, len(s.Groups))
	for i, g := range s.Groups {
		v.Field(fmt.Sprintf("Groups[%d].GroupID", i), g.GroupID).Required().Unique(seen)
	}

	seen = make(map[string]struct{}, len(s.Resources))
	for i, r := range s.Resources {
		v.Field(fmt.Sprintf("Resources[%d].ResourceID", i), r.ResourceID).Required().Unique(seen)
	}

	return v.Validate()
}
