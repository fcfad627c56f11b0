// Package agentconfig edits the agent's config.yaml in place. Only the
// databricks_configs catalog and schema keys are touched; every other key,
// its order and its comments survive the round trip.
package agentconfig

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the agent config next to the bundle
const DefaultFile = "config.yaml"

const sectionKey = "databricks_configs"

// Location is the Unity Catalog namespace the agent is registered under
type Location struct {
	Catalog string
	Schema  string
}

// Read returns the catalog and schema currently configured in path
func Read(path string) (Location, error) {
	doc, err := load(path)
	if err != nil {
		return Location{}, err
	}
	section := lookup(root(doc), sectionKey)
	if section == nil {
		return Location{}, nil
	}
	return Location{
		Catalog: scalar(lookup(section, "catalog")),
		Schema:  scalar(lookup(section, "schema")),
	}, nil
}

// Update sets catalog and schema in path and returns the previous values
func Update(path string, loc Location) (Location, error) {
	doc, err := load(path)
	if err != nil {
		return Location{}, err
	}

	top := root(doc)
	if top.Kind != yaml.MappingNode {
		return Location{}, errors.Errorf("%s: top level is not a mapping", path)
	}

	section := lookup(top, sectionKey)
	if section == nil {
		section = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		top.Content = append(top.Content, keyNode(sectionKey), section)
	}
	if section.Kind != yaml.MappingNode {
		return Location{}, errors.Errorf("%s: %s is not a mapping", path, sectionKey)
	}

	prev := Location{
		Catalog: scalar(lookup(section, "catalog")),
		Schema:  scalar(lookup(section, "schema")),
	}
	set(section, "catalog", loc.Catalog)
	set(section, "schema", loc.Schema)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return Location{}, errors.Wrapf(err, "encoding %s", path)
	}
	if err := enc.Close(); err != nil {
		return Location{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Location{}, err
	}
	if err := os.WriteFile(path, buf.Bytes(), info.Mode().Perm()); err != nil {
		return Location{}, errors.Wrapf(err, "writing %s", path)
	}
	return prev, nil
}

func load(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if doc.Kind == 0 {
		// empty file
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	return &doc, nil
}

func root(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return doc
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func set(m *yaml.Node, key, value string) {
	if v := lookup(m, key); v != nil {
		v.Kind = yaml.ScalarNode
		v.Tag = "!!str"
		v.Value = value
		v.Content = nil
		return
	}
	m.Content = append(m.Content, keyNode(key), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

func scalar(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}
