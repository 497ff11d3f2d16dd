package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sidepanelai/agentcore/internal/config"
	"github.com/sidepanelai/agentcore/pkg/models"
)

func buildTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the workflow template catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigOrDefault()
			if err != nil {
				return err
			}
			return listTemplates(cfg.Templates.Dir)
		},
	}
	return cmd
}

func listTemplates(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("no template catalog at %s\n", dir)
			return nil
		}
		return fmt.Errorf("templates: read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" && ext != ".json5" {
			continue
		}
		path := filepath.Join(dir, name)
		wf, err := loadWorkflowFile(path)
		if err != nil {
			fmt.Printf("%s: %v\n", name, err)
			continue
		}
		fmt.Printf("%-30s %s (%d steps)\n", wf.Name, wf.Description, len(wf.Steps))
	}
	return nil
}

func loadWorkflowFile(path string) (*models.Workflow, error) {
	raw, err := config.LoadRaw(path)
	if err != nil {
		return nil, err
	}
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var wf models.Workflow
	if err := yaml.Unmarshal(buf, &wf); err != nil {
		return nil, err
	}
	if wf.Name == "" {
		wf.Name = filepath.Base(path)
	}
	return &wf, nil
}
