package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/doeshing/deskgate/internal/domain"
)

// compileCatalogSchemas compiles the args schema of every catalog action.
func compileCatalogSchemas(specs []domain.ActionSpec) (map[string]*jsonschema.Schema, error) {
	out := make(map[string]*jsonschema.Schema, len(specs))
	for _, spec := range specs {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://deskgate.local/actions/%s.schema.json", spec.Name)
		if err := c.AddResource(url, strings.NewReader(spec.Schema)); err != nil {
			return nil, fmt.Errorf("load schema for %s: %w", spec.Name, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", spec.Name, err)
		}
		out[spec.Name] = compiled
	}
	return out, nil
}

// jsonArgs converts args into plain JSON values so that schema and rule
// evaluation see the same shapes regardless of the plan's source format.
func jsonArgs(args map[string]any) (map[string]any, error) {
	if len(args) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("args are not JSON encodable: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
