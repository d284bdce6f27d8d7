package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// ErrNameConflict signals an ambiguous name resolution: an IRI bound to two
// different LPG names, or two IRIs claiming the same LPG name. This is a
// hard failure, no plan is produced.
var ErrNameConflict = errors.New("conflicting name mapping")

// NameKind distinguishes the three LPG namespaces a mapping covers.
type NameKind int32

const (
	LabelName NameKind = iota
	PropertyName
	RelationshipName
)

func (k NameKind) String() string {
	switch k {
	case LabelName:
		return "label"
	case PropertyName:
		return "property"
	default:
		return "relationship"
	}
}

// Mapping resolves RDF IRIs to LPG names. Convention-based defaults derive
// from the IRI's local name; explicit overrides win over convention.
type Mapping struct {
	labels        map[string]string
	properties    map[string]string
	relationships map[string]string
}

func GetMapping() *Mapping {
	return &Mapping{
		labels:        make(map[string]string),
		properties:    make(map[string]string),
		relationships: make(map[string]string),
	}
}

func (m *Mapping) table(kind NameKind) map[string]string {
	switch kind {
	case LabelName:
		return m.labels
	case PropertyName:
		return m.properties
	default:
		return m.relationships
	}
}

// Override binds an IRI to an explicit LPG name.
func (m *Mapping) Override(kind NameKind, iri, name string) error {
	tab := m.table(kind)
	if prev, ok := tab[iri]; ok && prev != name {
		return fmt.Errorf("%w: %s <%s> bound to both %q and %q",
			ErrNameConflict, kind, iri, prev, name)
	}
	for otherIRI, otherName := range tab {
		if otherName == name && otherIRI != iri {
			return fmt.Errorf("%w: %s %q claimed by both <%s> and <%s>",
				ErrNameConflict, kind, name, otherIRI, iri)
		}
	}
	tab[iri] = name
	return nil
}

// LabelFor maps a class IRI to a node label (convention: PascalCase).
func (m *Mapping) LabelFor(iri string) string {
	if name, ok := m.labels[iri]; ok {
		return name
	}
	return pascalCase(localName(iri))
}

// PropertyFor maps a predicate IRI to a property key (convention: camelCase).
func (m *Mapping) PropertyFor(iri string) string {
	if name, ok := m.properties[iri]; ok {
		return name
	}
	return camelCase(localName(iri))
}

// RelationshipFor maps a predicate IRI to a relationship type
// (convention: camelCase local name to UPPER_SNAKE_CASE).
func (m *Mapping) RelationshipFor(iri string) string {
	if name, ok := m.relationships[iri]; ok {
		return name
	}
	return upperSnake(localName(iri))
}

func pascalCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func camelCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func upperSnake(s string) string {
	var sb strings.Builder
	for i, ch := range s {
		if unicode.IsUpper(ch) && i > 0 {
			sb.WriteRune('_')
		}
		sb.WriteRune(unicode.ToUpper(ch))
	}
	return sb.String()
}

// LoadMappingFile reads explicit overrides from a line-oriented file:
//
//	label        <iri> Name
//	property     <iri> name
//	relationship <iri> NAME
//
// Blank lines and lines starting with # are skipped.
func LoadMappingFile(path string) (*Mapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m := GetMapping()
	scanner := bufio.NewScanner(file)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s:%d: expected 'kind <iri> name', got %q", path, lineNo, line)
		}

		var kind NameKind
		switch fields[0] {
		case "label":
			kind = LabelName
		case "property":
			kind = PropertyName
		case "relationship":
			kind = RelationshipName
		default:
			return nil, fmt.Errorf("%s:%d: unknown mapping kind %q", path, lineNo, fields[0])
		}

		iri := strings.TrimSuffix(strings.TrimPrefix(fields[1], "<"), ">")
		if err := m.Override(kind, iri, fields[2]); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return m, nil
}
