package service

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.schema.json
var schemaFS embed.FS

type compiled struct {
	name string
	s    *jsonschema.Schema
}

func (c *compiled) validate(body []byte) error {
	var instance any
	if err := json.Unmarshal(body, &instance); err != nil {
		return fmt.Errorf("decode %s: %w", c.name, err)
	}
	return c.s.Validate(instance)
}

type schemas struct {
	analyze       *compiled
	transliterate *compiled
	detect        *compiled
}

func loadSchemas() (*schemas, error) {
	compiler := jsonschema.NewCompiler()
	compile := func(name string) (*compiled, error) {
		path := "schema/" + name + ".schema.json"
		data, err := schemaFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(path, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", name, err)
		}
		s, err := compiler.Compile(path)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		return &compiled{name: name, s: s}, nil
	}

	var (
		out schemas
		err error
	)
	if out.analyze, err = compile("analyze"); err != nil {
		return nil, err
	}
	if out.transliterate, err = compile("transliterate"); err != nil {
		return nil, err
	}
	if out.detect, err = compile("detect"); err != nil {
		return nil, err
	}
	return &out, nil
}
