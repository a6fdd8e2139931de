// Package policy loads privilege definitions from a YAML document into an authz.Registry.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/authority/internal/authz"
)

// ErrInvalid wraps every validation failure of a policy document.
var ErrInvalid = errors.New("policy: invalid document")

// Privilege declares one privilege. Rule names a predicate registered in code.
type Privilege struct {
	Name        string   `yaml:"name" validate:"required,max=128"`
	Description string   `yaml:"description"`
	Roles       []string `yaml:"roles" validate:"omitempty,dive,required"`
	Rule        string   `yaml:"rule"`
}

// Document is the root of a policy file.
type Document struct {
	Privileges []Privilege `yaml:"privileges" validate:"dive"`
}

// Predicates maps rule names to decision callbacks.
type Predicates[U any] map[string]authz.Callback[U]

var validate = validator.New()

// Parse decodes a policy document. Unknown fields are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("policy: decode: %w", err)
	}
	return &doc, nil
}

// LoadFile reads and parses the policy file at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// Validate checks the document against the available predicates.
func Validate[U any](doc *Document, predicates Predicates[U]) error {
	if doc == nil {
		return fmt.Errorf("%w: empty document", ErrInvalid)
	}
	if err := validate.Struct(doc); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	seen := make(map[string]struct{}, len(doc.Privileges))
	for i, p := range doc.Privileges {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: privileges[%d] duplicates %q", ErrInvalid, i, p.Name)
		}
		seen[p.Name] = struct{}{}
		if len(p.Roles) == 0 && p.Rule == "" {
			return fmt.Errorf("%w: privilege %q needs roles or a rule", ErrInvalid, p.Name)
		}
		if p.Rule != "" {
			if _, ok := predicates[p.Rule]; !ok {
				return fmt.Errorf("%w: privilege %q references unknown rule %q (known: %s)",
					ErrInvalid, p.Name, p.Rule, strings.Join(predicates.Names(), ", "))
			}
		}
	}
	return nil
}

// Apply validates doc and registers each privilege on registry.
func Apply[U any](registry *authz.Registry[U], doc *Document, predicates Predicates[U]) error {
	if err := Validate(doc, predicates); err != nil {
		return err
	}
	for _, p := range doc.Privileges {
		if len(p.Roles) > 0 {
			registry.RegisterRoles(p.Name, p.Roles...)
		}
		if p.Rule != "" {
			registry.RegisterCallback(p.Name, predicates[p.Rule])
		}
	}
	return nil
}

// Names returns the rule names in sorted order.
func (p Predicates[U]) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
