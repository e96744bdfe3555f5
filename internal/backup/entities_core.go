package backup

import (
	"context"

	"coldfront-rental-sync/internal/portal"
)

// Model names of the core component. The name doubles as the entity's file
// name inside the component directory.
const (
	ModelUsers        = "users"
	ModelProjects     = "projects"
	ModelProjectUsers = "project_users"
	ModelResources    = "resources"
)

// UserSyncer exports and imports portal accounts, keyed by username.
type UserSyncer struct {
	store portal.UserStore
}

func NewUserSyncer(store portal.UserStore) *UserSyncer {
	return &UserSyncer{store: store}
}

func (s *UserSyncer) ModelName() string      { return ModelUsers }
func (s *UserSyncer) Dependencies() []string { return nil }

func (s *UserSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return runExport(ctx, ModelUsers, dir, func(ctx context.Context) ([]Record, []string, error) {
		users, err := s.store.ListUsers(ctx)
		if err != nil {
			return nil, nil, err
		}
		records := make([]Record, 0, len(users))
		for _, u := range users {
			records = append(records, Record{
				NaturalKey: NaturalKey{u.Username},
				Fields: map[string]interface{}{
					"username":   u.Username,
					"email":      u.Email,
					"first_name": u.FirstName,
					"last_name":  u.LastName,
					"is_active":  u.IsActive,
				},
			})
		}
		return records, nil, nil
	})
}

func (s *UserSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	return runImport(ctx, ModelUsers, records, opts, importOps{
		find: func(ctx context.Context, rec Record) (bool, error) {
			username, err := stringField(rec.Fields, "username")
			if err != nil {
				return false, err
			}
			_, ok, err := s.store.GetUserByUsername(ctx, username)
			return ok, err
		},
		create: func(ctx context.Context, rec Record) error {
			u, err := userFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.CreateUser(ctx, u)
		},
		update: func(ctx context.Context, rec Record) error {
			u, err := userFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.UpdateUser(ctx, u)
		},
	})
}

func userFromRecord(rec Record) (*portal.User, error) {
	username, err := stringField(rec.Fields, "username")
	if err != nil {
		return nil, err
	}
	return &portal.User{
		Username:  username,
		Email:     optionalStringField(rec.Fields, "email"),
		FirstName: optionalStringField(rec.Fields, "first_name"),
		LastName:  optionalStringField(rec.Fields, "last_name"),
		IsActive:  boolField(rec.Fields, "is_active"),
	}, nil
}

// ProjectSyncer exports and imports projects, keyed by title.
type ProjectSyncer struct {
	store portal.ProjectStore
}

func NewProjectSyncer(store portal.ProjectStore) *ProjectSyncer {
	return &ProjectSyncer{store: store}
}

func (s *ProjectSyncer) ModelName() string      { return ModelProjects }
func (s *ProjectSyncer) Dependencies() []string { return []string{ModelUsers} }

func (s *ProjectSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return runExport(ctx, ModelProjects, dir, func(ctx context.Context) ([]Record, []string, error) {
		projects, err := s.store.ListProjects(ctx)
		if err != nil {
			return nil, nil, err
		}
		records := make([]Record, 0, len(projects))
		for _, p := range projects {
			records = append(records, Record{
				NaturalKey: NaturalKey{p.Title},
				Fields: map[string]interface{}{
					"title":       p.Title,
					"pi_username": p.PIUsername,
					"description": p.Description,
					"status":      p.Status,
				},
			})
		}
		return records, nil, nil
	})
}

func (s *ProjectSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	return runImport(ctx, ModelProjects, records, opts, importOps{
		find: func(ctx context.Context, rec Record) (bool, error) {
			title, err := stringField(rec.Fields, "title")
			if err != nil {
				return false, err
			}
			_, ok, err := s.store.GetProjectByTitle(ctx, title)
			return ok, err
		},
		create: func(ctx context.Context, rec Record) error {
			p, err := projectFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.CreateProject(ctx, p)
		},
		update: func(ctx context.Context, rec Record) error {
			p, err := projectFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.UpdateProject(ctx, p)
		},
	})
}

func projectFromRecord(rec Record) (*portal.Project, error) {
	title, err := stringField(rec.Fields, "title")
	if err != nil {
		return nil, err
	}
	return &portal.Project{
		Title:       title,
		PIUsername:  optionalStringField(rec.Fields, "pi_username"),
		Description: optionalStringField(rec.Fields, "description"),
		Status:      optionalStringField(rec.Fields, "status"),
	}, nil
}

// ProjectUserSyncer exports and imports project memberships, keyed by
// (project title, username).
type ProjectUserSyncer struct {
	store portal.ProjectStore
}

func NewProjectUserSyncer(store portal.ProjectStore) *ProjectUserSyncer {
	return &ProjectUserSyncer{store: store}
}

func (s *ProjectUserSyncer) ModelName() string { return ModelProjectUsers }
func (s *ProjectUserSyncer) Dependencies() []string {
	return []string{ModelProjects, ModelUsers}
}

func (s *ProjectUserSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return runExport(ctx, ModelProjectUsers, dir, func(ctx context.Context) ([]Record, []string, error) {
		memberships, err := s.store.ListProjectUsers(ctx)
		if err != nil {
			return nil, nil, err
		}
		records := make([]Record, 0, len(memberships))
		for _, pu := range memberships {
			records = append(records, Record{
				NaturalKey: NaturalKey{pu.ProjectTitle, pu.Username},
				Fields: map[string]interface{}{
					"project_title": pu.ProjectTitle,
					"username":      pu.Username,
					"role":          pu.Role,
					"status":        pu.Status,
				},
			})
		}
		return records, nil, nil
	})
}

func (s *ProjectUserSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	return runImport(ctx, ModelProjectUsers, records, opts, importOps{
		find: func(ctx context.Context, rec Record) (bool, error) {
			pu, err := projectUserFromRecord(rec)
			if err != nil {
				return false, err
			}
			_, ok, err := s.store.GetProjectUser(ctx, pu.ProjectTitle, pu.Username)
			return ok, err
		},
		create: func(ctx context.Context, rec Record) error {
			pu, err := projectUserFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.CreateProjectUser(ctx, pu)
		},
		update: func(ctx context.Context, rec Record) error {
			pu, err := projectUserFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.UpdateProjectUser(ctx, pu)
		},
	})
}

func projectUserFromRecord(rec Record) (*portal.ProjectUser, error) {
	projectTitle, err := stringField(rec.Fields, "project_title")
	if err != nil {
		return nil, err
	}
	username, err := stringField(rec.Fields, "username")
	if err != nil {
		return nil, err
	}
	return &portal.ProjectUser{
		ProjectTitle: projectTitle,
		Username:     username,
		Role:         optionalStringField(rec.Fields, "role"),
		Status:       optionalStringField(rec.Fields, "status"),
	}, nil
}

// ResourceSyncer exports and imports portal resources, keyed by name.
type ResourceSyncer struct {
	store portal.ResourceStore
}

func NewResourceSyncer(store portal.ResourceStore) *ResourceSyncer {
	return &ResourceSyncer{store: store}
}

func (s *ResourceSyncer) ModelName() string      { return ModelResources }
func (s *ResourceSyncer) Dependencies() []string { return nil }

func (s *ResourceSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return runExport(ctx, ModelResources, dir, func(ctx context.Context) ([]Record, []string, error) {
		resources, err := s.store.ListResources(ctx)
		if err != nil {
			return nil, nil, err
		}
		records := make([]Record, 0, len(resources))
		for _, r := range resources {
			records = append(records, Record{
				NaturalKey: NaturalKey{r.Name},
				Fields: map[string]interface{}{
					"name":          r.Name,
					"resource_type": r.ResourceType,
					"description":   r.Description,
					"is_available":  r.IsAvailable,
				},
			})
		}
		return records, nil, nil
	})
}

func (s *ResourceSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	return runImport(ctx, ModelResources, records, opts, importOps{
		find: func(ctx context.Context, rec Record) (bool, error) {
			name, err := stringField(rec.Fields, "name")
			if err != nil {
				return false, err
			}
			_, ok, err := s.store.GetResourceByName(ctx, name)
			return ok, err
		},
		create: func(ctx context.Context, rec Record) error {
			r, err := resourceFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.CreateResource(ctx, r)
		},
		update: func(ctx context.Context, rec Record) error {
			r, err := resourceFromRecord(rec)
			if err != nil {
				return err
			}
			return s.store.UpdateResource(ctx, r)
		},
	})
}

func resourceFromRecord(rec Record) (*portal.Resource, error) {
	name, err := stringField(rec.Fields, "name")
	if err != nil {
		return nil, err
	}
	return &portal.Resource{
		Name:         name,
		ResourceType: optionalStringField(rec.Fields, "resource_type"),
		Description:  optionalStringField(rec.Fields, "description"),
		IsAvailable:  boolField(rec.Fields, "is_available"),
	}, nil
}
