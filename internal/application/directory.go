package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"devconsole/internal/domain"
)

// Directory is the thin project catalogue commands are scoped to.
type Directory struct {
	store ProjectStore
}

func NewDirectory(store ProjectStore) (*Directory, error) {
	if store == nil {
		return nil, errors.New("project store is required")
	}
	return &Directory{store: store}, nil
}

func (d *Directory) List(ctx context.Context) ([]domain.Project, error) {
	projects, err := d.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

func (d *Directory) Get(ctx context.Context, id int64) (domain.Project, error) {
	project, ok, err := d.store.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, fmt.Errorf("get project %d: %w", id, err)
	}
	if !ok {
		return domain.Project{}, fmt.Errorf("%w: project %d", ErrNotFound, id)
	}
	return project, nil
}

func (d *Directory) Create(ctx context.Context, input domain.ProjectInput) (domain.Project, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Path = strings.TrimSpace(input.Path)
	input.Framework = strings.TrimSpace(input.Framework)
	if input.Name == "" || input.Path == "" || input.Framework == "" || input.UserID <= 0 {
		return domain.Project{}, fmt.Errorf("%w: name, path, framework and userId are required", ErrValidation)
	}
	project, err := d.store.CreateProject(ctx, input)
	if err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

func (d *Directory) QuickCommands(ctx context.Context, projectID int64) ([]domain.QuickCommand, error) {
	commands, err := d.store.QuickCommands(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list quick commands: %w", err)
	}
	if commands == nil {
		commands = []domain.QuickCommand{}
	}
	return commands, nil
}

func (d *Directory) AddQuickCommand(ctx context.Context, input domain.QuickCommandInput) (domain.QuickCommand, error) {
	input.Command = strings.TrimSpace(input.Command)
	input.Description = strings.TrimSpace(input.Description)
	if input.Command == "" || input.Description == "" || input.ProjectID <= 0 {
		return domain.QuickCommand{}, fmt.Errorf("%w: command and description are required", ErrValidation)
	}
	command, err := d.store.CreateQuickCommand(ctx, input)
	if err != nil {
		return domain.QuickCommand{}, fmt.Errorf("create quick command: %w", err)
	}
	return command, nil
}
