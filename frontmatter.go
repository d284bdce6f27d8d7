package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Frontmatter holds the metadata embedded as comment lines at the top of a
// schema document:
//
//	# @name: movies
//	# @database: neo4j
//	# @labels: Movie, Person
//	# @subgraph: MATCH (n:Movie) RETURN n
//
// Scanning stops at the first non-comment, non-blank line. Comment lines
// without an @key are ignored, as are unrecognized keys.
type Frontmatter struct {
	Name        string
	Description string
	Database    string
	Labels      []string
	Subgraph    string
}

func ParseFrontmatter(r io.Reader) (*Frontmatter, error) {
	fm := &Frontmatter{}
	scanner := bufio.NewScanner(r)
	seenSubgraph := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			break
		}

		body := strings.TrimSpace(strings.TrimLeft(line, "#"))
		if !strings.HasPrefix(body, "@") {
			continue
		}
		key, value, found := strings.Cut(body, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "@name":
			fm.Name = value
		case "@description":
			fm.Description = value
		case "@database":
			fm.Database = value
		case "@labels":
			for _, l := range strings.Split(value, ",") {
				if l = strings.TrimSpace(l); l != "" {
					fm.Labels = append(fm.Labels, l)
				}
			}
		case "@subgraph":
			if seenSubgraph {
				return nil, fmt.Errorf("duplicate @subgraph declaration")
			}
			seenSubgraph = true
			fm.Subgraph = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return fm, nil
}
