// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"regexp"
	"strings"
)

type Protocol string

const (
	ProtocolSSH   Protocol = "ssh"
	ProtocolHTTPS Protocol = "https"
)

func ParseProtocol(val string) (Protocol, error) {
	switch strings.ToLower(val) {
	case "ssh":
		return ProtocolSSH, nil
	case "https":
		return ProtocolHTTPS, nil
	default:
		return "", fmt.Errorf("Unknown protocol '%s' (known: ssh, https)", val)
	}
}

// Coordinate identifies a git repository by a schemeless url of the form
// forge/organization/repository (e.g. github.com/org/repo).
type Coordinate struct {
	Forge        string
	Organization string
	Repository   string
	Protocol     Protocol
}

var coordinateRegexp = regexp.MustCompile(`^([^/]+)/([^/]+)/([^/]+)/?$`)

func NewCoordinate(url string, protocol Protocol) (Coordinate, error) {
	match := coordinateRegexp.FindStringSubmatch(url)
	if match == nil {
		return Coordinate{}, fmt.Errorf("Expected url of the form forge/organization/repository, got '%s'", url)
	}

	return Coordinate{
		Forge:        match[1],
		Organization: match[2],
		Repository:   match[3],
		Protocol:     protocol,
	}, nil
}

// URL is the normalized schemeless locator. Urls differing only in a
// trailing slash normalize to the same value.
func (c Coordinate) URL() string {
	return fmt.Sprintf("%s/%s/%s", c.Forge, c.Organization, c.Repository)
}

// RemoteURL is the url handed to git for network operations.
func (c Coordinate) RemoteURL() string {
	if c.Protocol == ProtocolHTTPS {
		return fmt.Sprintf("https://%s/%s/%s", c.Forge, c.Organization, c.Repository)
	}
	return fmt.Sprintf("git@%s:%s/%s.git", c.Forge, c.Organization, c.Repository)
}

func (c Coordinate) String() string { return c.URL() }

// SameRemote ignores protocol; two coordinates pointing at the same
// repository over different transports are the same dependency.
func (c Coordinate) SameRemote(other Coordinate) bool {
	return c.URL() == other.URL()
}
