// Package scaffold writes a starter planner configuration and run input.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/parkplan/internal/config"
	"github.com/dyluth/parkplan/internal/pipeline"
)

//go:embed templates/*
var templatesFS embed.FS

// Generated file names.
const (
	ConfigFile = "parkplan.yml"
	InputFile  = "park.yml"
)

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes parkplan.yml and park.yml into dir, creating dir if needed.
// Without force, existing files are left untouched and an error is returned.
// It returns the paths written.
func Initialize(dir string, force bool) ([]string, error) {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return nil, err
		}
	}

	files, err := templateFiles(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		paths = append(paths, file.Path)
	}

	if err := validateCreatedFiles(dir); err != nil {
		return nil, err
	}
	return paths, nil
}

func templateFiles(dir string) ([]FileInfo, error) {
	var files []FileInfo
	for _, name := range []string{ConfigFile, InputFile} {
		content, err := templatesFS.ReadFile("templates/" + name + ".tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", name, err)
		}
		files = append(files, FileInfo{
			Path:        filepath.Join(dir, name),
			Content:     content,
			Permissions: 0644,
		})
	}
	return files, nil
}

// validateCreatedFiles loads the written files the same way 'parkplan run' does.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, ConfigFile)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", ConfigFile, err)
	}

	requests, err := pipeline.LoadRequests(filepath.Join(dir, InputFile))
	if err != nil {
		return fmt.Errorf("created %s is invalid: %w", InputFile, err)
	}
	for _, req := range requests {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("created %s is invalid: %w", InputFile, err)
		}
	}
	return nil
}
