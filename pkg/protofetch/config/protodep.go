// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
)

// ProtodepDescriptor is the subset of a protodep.toml file understood
// by the migrate command.
type ProtodepDescriptor struct {
	ProtoOutDir  string               `toml:"proto_outdir"`
	Dependencies []ProtodepDependency `toml:"dependencies"`
}

type ProtodepDependency struct {
	Target   string   `toml:"target"`
	Protocol string   `toml:"protocol"`
	Revision string   `toml:"revision"`
	Subgroup string   `toml:"subgroup"`
	Branch   string   `toml:"branch"`
	Path     string   `toml:"path"`
	Ignores  []string `toml:"ignores"`
	Includes []string `toml:"includes"`
}

func NewProtodepDescriptorFromFile(path string) (ProtodepDescriptor, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return ProtodepDescriptor{}, pferr.WrapKind(pferr.ManifestParse, err, "Reading protodep file '%s'", path)
	}

	desc, err := NewProtodepDescriptorFromBytes(bs)
	if err != nil {
		return ProtodepDescriptor{}, fmt.Errorf("Parsing protodep file '%s': %w", path, err)
	}

	return desc, nil
}

func NewProtodepDescriptorFromBytes(bs []byte) (ProtodepDescriptor, error) {
	var desc ProtodepDescriptor

	err := toml.Unmarshal(bs, &desc)
	if err != nil {
		return ProtodepDescriptor{}, pferr.WrapKind(pferr.ManifestParse, err, "Unmarshaling protodep file")
	}

	if len(desc.ProtoOutDir) == 0 {
		return ProtodepDescriptor{}, pferr.NewKindf(pferr.ManifestParse, "Expected protodep key 'proto_outdir' to be present")
	}

	return desc, nil
}

// ToDescriptor converts a protodep descriptor into a protofetch one.
// Dependency names derive from the repository component of the target.
func (d ProtodepDescriptor) ToDescriptor(name string, defaultProtocol Protocol) (Descriptor, error) {
	desc := Descriptor{
		Name:        name,
		Description: "Migrated from protodep",
		ProtoOutDir: d.ProtoOutDir,
	}

	for _, dep := range d.Dependencies {
		protocol := defaultProtocol
		if len(dep.Protocol) > 0 {
			var err error
			protocol, err = ParseProtocol(dep.Protocol)
			if err != nil {
				return Descriptor{}, fmt.Errorf("Converting dependency '%s': %s", dep.Target, err)
			}
		}

		// protodep targets may carry a subdirectory after the repository;
		// it becomes a content root.
		target := dep.Target
		var roots []string
		if pieces := strings.SplitN(target, "/", 4); len(pieces) == 4 {
			target = strings.Join(pieces[:3], "/")
			roots = []string{pieces[3]}
		}

		coord, err := NewCoordinate(target, protocol)
		if err != nil {
			return Descriptor{}, fmt.Errorf("Converting dependency '%s': %s", dep.Target, err)
		}

		desc.Dependencies = append(desc.Dependencies, Dependency{
			Name:       coord.Repository,
			Coordinate: coord,
			Revision:   dep.Revision,
			Branch:     dep.Branch,
			Rules:      Rules{ContentRoots: roots}.Normalize(),
		})
	}

	return desc, nil
}
