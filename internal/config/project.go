package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultProjectName is used until an operator names the project
const DefaultProjectName = "untitled_project"

// ProjectConfig is the per-project document the operator loads and saves
type ProjectConfig struct {
	General GeneralSection `yaml:"general"`
}

// GeneralSection holds the session values restored by a project load
type GeneralSection struct {
	ProjectName  string `yaml:"project_name"`
	OutputFolder string `yaml:"output_folder"`
	Creator      string `yaml:"creator,omitempty"`
}

// LoadProject reads a project config document.
// Missing values fall back to the default project name.
func LoadProject(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project config %s: %w", path, err)
	}

	var pc ProjectConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("parse project config %s: %w", path, err)
	}

	pc.General.ProjectName = strings.TrimSpace(pc.General.ProjectName)
	pc.General.OutputFolder = strings.TrimSpace(pc.General.OutputFolder)
	pc.General.Creator = strings.TrimSpace(pc.General.Creator)
	if pc.General.ProjectName == "" {
		pc.General.ProjectName = DefaultProjectName
	}
	if pc.General.OutputFolder == "" {
		return nil, fmt.Errorf("project config %s: output_folder is required", path)
	}
	return &pc, nil
}

// ProjectConfigPath returns where SaveProject writes the document for pc
func ProjectConfigPath(pc *ProjectConfig) string {
	return filepath.Join(pc.General.OutputFolder, pc.General.ProjectName, pc.General.ProjectName+"_config.yaml")
}

// SaveProject writes <project>_config.yaml inside output_folder/project and
// returns the file path.
func SaveProject(pc *ProjectConfig) (string, error) {
	if pc.General.ProjectName == "" || pc.General.OutputFolder == "" {
		return "", fmt.Errorf("project_name and output_folder are required")
	}

	path := ProjectConfigPath(pc)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create project folder: %w", err)
	}

	data, err := yaml.Marshal(pc)
	if err != nil {
		return "", fmt.Errorf("encode project config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write project config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write project config: %w", err)
	}
	return path, nil
}
