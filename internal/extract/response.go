// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidResponse reports a model reply that is not the expected JSON
// object, or (in strict mode) an item that does not match its schema.
var ErrInvalidResponse = errors.New("invalid model response")

// Response is one model reply decoded into its three entity lists. Items
// stay raw until they are checked against the entity schemas.
type Response struct {
	KPIs          []json.RawMessage `json:"kpis"`
	Dates         []json.RawMessage `json:"dates"`
	Organizations []json.RawMessage `json:"organizations"`
}

// ParseResponse decodes a model reply. Markdown code fences and text
// around the outermost JSON object are ignored.
func ParseResponse(reply string) (Response, error) {
	body := strings.TrimSpace(reply)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return Response{}, fmt.Errorf("%w: no JSON object in reply", ErrInvalidResponse)
	}

	var resp Response
	dec := json.NewDecoder(strings.NewReader(body[start : end+1]))
	if err := dec.Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return resp, nil
}

// entityKind names one of the three entity lists.
type entityKind string

const (
	kindKPI          entityKind = "kpi"
	kindDate         entityKind = "date"
	kindOrganization entityKind = "organization"
)

//go:embed schema/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[entityKind]*jsonschema.Schema
	schemasErr  error
)

func loadSchemas() {
	c := jsonschema.NewCompiler()
	schemas = make(map[entityKind]*jsonschema.Schema)
	for _, kind := range []entityKind{kindKPI, kindDate, kindOrganization} {
		name := "schema/" + string(kind) + ".json"
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			schemasErr = fmt.Errorf("reading %s: %w", name, err)
			return
		}
		if err := c.AddResource(name, bytes.NewReader(data)); err != nil {
			schemasErr = fmt.Errorf("adding %s: %w", name, err)
			return
		}
		s, err := c.Compile(name)
		if err != nil {
			schemasErr = fmt.Errorf("compiling %s: %w", name, err)
			return
		}
		schemas[kind] = s
	}
}

// validateItem checks one raw item against the schema for kind.
func validateItem(kind entityKind, raw json.RawMessage) error {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return schemasErr
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decoding %s item: %w", kind, err)
	}
	if err := schemas[kind].Validate(v); err != nil {
		return fmt.Errorf("%s item does not match schema: %w", kind, err)
	}
	return nil
}
