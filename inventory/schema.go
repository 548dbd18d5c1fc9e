package inventory

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed cmdb-schema.json
var cmdbSchemaDoc []byte

// compiled lazily on first use
var cmdbSchema *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if cmdbSchema != nil {
		return cmdbSchema, nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("cmdb-schema.json", bytes.NewReader(cmdbSchemaDoc)); err != nil {
		return nil, fmt.Errorf("failed to load CMDB schema: %w", err)
	}
	s, err := compiler.Compile("cmdb-schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile CMDB schema: %w", err)
	}
	cmdbSchema = s
	return s, nil
}

// ValidatePayload checks a decoded CMDB payload against the inventory schema.
func ValidatePayload(payload interface{}) error {
	s, err := schema()
	if err != nil {
		return err
	}
	if err := s.Validate(payload); err != nil {
		return fmt.Errorf("unable to validate inventory data: %w", err)
	}
	return nil
}
