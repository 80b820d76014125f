// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pdiddy/report-extract/pkg/types"
)

// ErrInvalidOutput reports an output document that does not have the
// required shape.
var ErrInvalidOutput = errors.New("invalid output document")

const schemaName = "output.json"

//go:embed schema/output.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func loadSchema() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaName, bytes.NewReader(schemaJSON)); err != nil {
		schemaErr = fmt.Errorf("adding %s: %w", schemaName, err)
		return
	}
	schema, schemaErr = c.Compile(schemaName)
}

// Validate checks o against the output schema and the statistics
// invariant.
func Validate(o types.Output) error {
	schemaOnce.Do(loadSchema)
	if schemaErr != nil {
		return schemaErr
	}

	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decoding output: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	if want := Stats(o.Entities); o.Statistics != want {
		return fmt.Errorf("%w: statistics %+v do not match entities %+v", ErrInvalidOutput, o.Statistics, want)
	}
	return nil
}
