package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"devconsole/internal/application"
	"devconsole/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

type Command struct {
	Command     string `yaml:"command"`
	Description string `yaml:"description"`
}

type Project struct {
	Name         string    `yaml:"name"`
	Path         string    `yaml:"path"`
	Framework    string    `yaml:"framework"`
	LastBuildAgo string    `yaml:"lastBuildAgo"`
	Commands     []Command `yaml:"commands"`
}

// File is the seed document. Projects without their own commands get
// DefaultCommands.
type File struct {
	UserID          int64     `yaml:"userId"`
	DefaultCommands []Command `yaml:"defaultCommands"`
	Projects        []Project `yaml:"projects"`
}

func Parse(data []byte) (File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse seed: %w", err)
	}
	if file.UserID <= 0 {
		file.UserID = 1
	}
	for i, project := range file.Projects {
		if strings.TrimSpace(project.Name) == "" {
			return File{}, fmt.Errorf("parse seed: project %d has no name", i)
		}
		if project.LastBuildAgo != "" {
			if _, err := time.ParseDuration(project.LastBuildAgo); err != nil {
				return File{}, fmt.Errorf("parse seed: project %q: invalid lastBuildAgo: %w", project.Name, err)
			}
		}
	}
	return file, nil
}

// Read returns the seed at path, or the embedded sample seed when path is empty.
func Read(path string) (File, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed: %w", err)
	}
	return Parse(data)
}

// Apply loads the seed through the directory unless the store already holds
// projects. It reports whether anything was written.
func Apply(ctx context.Context, directory *application.Directory, file File, now time.Time) (bool, error) {
	if directory == nil {
		return false, errors.New("directory is required")
	}
	existing, err := directory.List(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		slog.Info("seed skipped", "projects", len(existing))
		return false, nil
	}

	for _, entry := range file.Projects {
		input := domain.ProjectInput{
			Name:      entry.Name,
			Path:      entry.Path,
			Framework: entry.Framework,
			UserID:    file.UserID,
		}
		if entry.LastBuildAgo != "" {
			ago, _ := time.ParseDuration(entry.LastBuildAgo)
			lastBuild := now.Add(-ago).UTC()
			input.LastBuild = &lastBuild
		}
		project, err := directory.Create(ctx, input)
		if err != nil {
			return false, fmt.Errorf("seed project %q: %w", entry.Name, err)
		}

		commands := entry.Commands
		if len(commands) == 0 {
			commands = file.DefaultCommands
		}
		for _, cmd := range commands {
			if _, err := directory.AddQuickCommand(ctx, domain.QuickCommandInput{
				Command:     cmd.Command,
				Description: cmd.Description,
				ProjectID:   project.ID,
			}); err != nil {
				return false, fmt.Errorf("seed command %q: %w", cmd.Command, err)
			}
		}
	}
	slog.Info("seed applied", "projects", len(file.Projects))
	return true, nil
}
