// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
)

const DefaultDescriptorName = "protofetch.toml"

// Descriptor is the parsed protofetch.toml manifest: a module name plus
// an ordered set of dependencies.
type Descriptor struct {
	Name         string
	Description  string
	ProtoOutDir  string
	Dependencies []Dependency
}

type Dependency struct {
	Name       string
	Coordinate Coordinate
	Revision   string
	Branch     string
	Rules      Rules
}

// depSchema mirrors the recognized per-dependency TOML fields. Any other
// field is a parse error.
type depSchema struct {
	URL           string   `toml:"url"`
	Revision      string   `toml:"revision"`
	Branch        string   `toml:"branch"`
	Protocol      string   `toml:"protocol"`
	AllowPolicies []string `toml:"allow_policies"`
	DenyPolicies  []string `toml:"deny_policies"`
	RegexPolicy   string   `toml:"regex_policy"`
	Prune         bool     `toml:"prune"`
	Transitive    bool     `toml:"transitive"`
	ContentRoots  []string `toml:"content_roots"`
}

var dependencyNameRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func NewDescriptorFromFile(path string, defaultProtocol Protocol) (Descriptor, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, pferr.WrapKind(pferr.ManifestParse, err, "Reading manifest '%s'", path)
	}

	desc, err := NewDescriptorFromTOML(bs, defaultProtocol)
	if err != nil {
		return Descriptor{}, fmt.Errorf("Parsing manifest '%s': %w", path, err)
	}

	return desc, nil
}

func NewDescriptorFromTOML(bs []byte, defaultProtocol Protocol) (Descriptor, error) {
	var raw map[string]toml.Primitive

	md, err := toml.Decode(string(bs), &raw)
	if err != nil {
		return Descriptor{}, pferr.WrapKind(pferr.ManifestParse, err, "Unmarshaling manifest")
	}

	desc := Descriptor{}

	if prim, found := raw["name"]; found {
		if err := md.PrimitiveDecode(prim, &desc.Name); err != nil {
			return Descriptor{}, pferr.WrapKind(pferr.ManifestParse, err, "Unmarshaling key 'name'")
		}
	} else {
		return Descriptor{}, pferr.NewKindf(pferr.ManifestParse, "Expected manifest key 'name' to be present")
	}

	if prim, found := raw["description"]; found {
		if err := md.PrimitiveDecode(prim, &desc.Description); err != nil {
			return Descriptor{}, pferr.WrapKind(pferr.ManifestParse, err, "Unmarshaling key 'description'")
		}
	}

	if prim, found := raw["proto_out_dir"]; found {
		if err := md.PrimitiveDecode(prim, &desc.ProtoOutDir); err != nil {
			return Descriptor{}, pferr.WrapKind(pferr.ManifestParse, err, "Unmarshaling key 'proto_out_dir'")
		}
	}

	// Remaining top-level tables are dependencies, kept in document order.
	for _, key := range md.Keys() {
		if len(key) != 1 {
			continue
		}
		name := key[0]
		switch name {
		case "name", "description", "proto_out_dir":
			continue
		}

		dep, err := parseDependency(md, name, raw[name], defaultProtocol)
		if err != nil {
			return Descriptor{}, fmt.Errorf("Parsing dependency '%s': %w", name, err)
		}

		desc.Dependencies = append(desc.Dependencies, dep)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := []string{}
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return Descriptor{}, pferr.NewKindf(pferr.ManifestParse, "Unknown manifest keys: %s", strings.Join(keys, ", "))
	}

	if err := desc.Validate(); err != nil {
		return Descriptor{}, err
	}

	return desc, nil
}

func parseDependency(md toml.MetaData, name string, prim toml.Primitive, defaultProtocol Protocol) (Dependency, error) {
	var schema depSchema

	if err := md.PrimitiveDecode(prim, &schema); err != nil {
		return Dependency{}, pferr.WrapKind(pferr.ManifestParse, err, "Unmarshaling dependency table")
	}

	if len(schema.URL) == 0 {
		return Dependency{}, pferr.NewKindf(pferr.ManifestParse, "Expected key 'url' to be present")
	}

	protocol := defaultProtocol
	if len(schema.Protocol) > 0 {
		var err error
		protocol, err = ParseProtocol(schema.Protocol)
		if err != nil {
			return Dependency{}, pferr.WrapKind(pferr.ManifestParse, err, "Parsing protocol")
		}
	}

	coord, err := NewCoordinate(schema.URL, protocol)
	if err != nil {
		return Dependency{}, pferr.WrapKind(pferr.ManifestParse, err, "Parsing url")
	}

	rules := Rules{
		Prune:         schema.Prune,
		Transitive:    schema.Transitive,
		ContentRoots:  schema.ContentRoots,
		AllowPolicies: schema.AllowPolicies,
		DenyPolicies:  schema.DenyPolicies,
		RegexPolicy:   schema.RegexPolicy,
	}.Normalize()

	return Dependency{
		Name:       name,
		Coordinate: coord,
		Revision:   schema.Revision,
		Branch:     schema.Branch,
		Rules:      rules,
	}, nil
}

func (d Descriptor) Validate() error {
	if len(d.Name) == 0 {
		return pferr.NewKindf(pferr.ManifestParse, "Expected non-empty module name")
	}
	if !dependencyNameRegexp.MatchString(d.Name) {
		return pferr.NewKindf(pferr.ManifestParse, "Expected module name to be a bare identifier, got '%s'", d.Name)
	}

	for _, dep := range d.Dependencies {
		if !dependencyNameRegexp.MatchString(dep.Name) {
			return pferr.NewKindf(pferr.ManifestParse, "Expected dependency name to be a bare identifier, got '%s'", dep.Name)
		}
		if err := dep.Rules.Validate(); err != nil {
			return pferr.WrapKind(pferr.ManifestParse, err, "Validating dependency '%s'", dep.Name)
		}
	}

	return nil
}

// AsTOML renders the descriptor back into manifest form. Used by the
// init and migrate commands; rendering is deterministic.
func (d Descriptor) AsTOML() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "name = %q\n", d.Name)
	if len(d.Description) > 0 {
		fmt.Fprintf(&buf, "description = %q\n", d.Description)
	}
	if len(d.ProtoOutDir) > 0 {
		fmt.Fprintf(&buf, "proto_out_dir = %q\n", d.ProtoOutDir)
	}

	for _, dep := range d.Dependencies {
		fmt.Fprintf(&buf, "\n[%s]\n", dep.Name)
		fmt.Fprintf(&buf, "url = %q\n", dep.Coordinate.URL())
		fmt.Fprintf(&buf, "protocol = %q\n", dep.Coordinate.Protocol)
		if len(dep.Revision) > 0 {
			fmt.Fprintf(&buf, "revision = %q\n", dep.Revision)
		}
		if len(dep.Branch) > 0 {
			fmt.Fprintf(&buf, "branch = %q\n", dep.Branch)
		}
		writeStringList(&buf, "allow_policies", dep.Rules.AllowPolicies)
		writeStringList(&buf, "deny_policies", dep.Rules.DenyPolicies)
		if len(dep.Rules.RegexPolicy) > 0 {
			fmt.Fprintf(&buf, "regex_policy = %q\n", dep.Rules.RegexPolicy)
		}
		if dep.Rules.Prune {
			fmt.Fprintf(&buf, "prune = true\n")
		}
		if dep.Rules.Transitive {
			fmt.Fprintf(&buf, "transitive = true\n")
		}
		writeStringList(&buf, "content_roots", dep.Rules.ContentRoots)
	}

	return buf.Bytes()
}

func writeStringList(buf *bytes.Buffer, key string, vals []string) {
	if len(vals) == 0 {
		return
	}
	quoted := []string{}
	for _, val := range vals {
		quoted = append(quoted, fmt.Sprintf("%q", val))
	}
	fmt.Fprintf(buf, "%s = [%s]\n", key, strings.Join(quoted, ", "))
}
