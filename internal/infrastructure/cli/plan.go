package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/deskgate/internal/domain"
)

// ReadPlan loads a plan from path, or from stdin when path is empty or "-".
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func ReadPlan(stdin io.Reader, path string) (domain.Plan, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.Plan{}, fmt.Errorf("read plan: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Plan{}, domain.ErrEmptyPlan
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return parseYAMLPlan(data)
	}
	var plan domain.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return domain.Plan{}, fmt.Errorf("parse plan: %w", err)
	}
	return plan, nil
}

func parseYAMLPlan(data []byte) (domain.Plan, error) {
	var list []domain.Action
	if err := yaml.Unmarshal(data, &list); err == nil {
		return domain.Plan{Actions: list}, nil
	}
	var plan domain.Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return domain.Plan{}, fmt.Errorf("parse plan: %w", err)
	}
	return plan, nil
}
