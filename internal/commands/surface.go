package commands

import (
	_ "embed"
	"fmt"

	"warden/internal/gateway"

	"gopkg.in/yaml.v3"
)

//go:embed surface.yml
var defaultSurface []byte

// RouteSpec declares how one interaction route is acknowledged.
type RouteSpec struct {
	Kind      gateway.Kind `yaml:"kind"`
	Name      string       `yaml:"name"`
	Defer     bool         `yaml:"defer"`
	Ephemeral bool         `yaml:"ephemeral"`
}

// Surface is the declarative command surface and route table.
type Surface struct {
	Commands []gateway.CommandSpec `yaml:"commands"`
	Routes   []RouteSpec           `yaml:"routes"`
}

// LoadSurface parses a surface document.
func LoadSurface(data []byte) (*Surface, error) {
	var s Surface
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse command surface: %w", err)
	}

	seen := map[string]bool{}
	for _, c := range s.Commands {
		if c.Name == "" || c.Description == "" {
			return nil, fmt.Errorf("command surface: command %q needs a name and description", c.Name)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("command surface: duplicate command %q", c.Name)
		}
		seen[c.Name] = true
	}
	for _, r := range s.Routes {
		switch r.Kind {
		case gateway.KindCommand, gateway.KindButton, gateway.KindModalSubmit, gateway.KindSelectMenu:
		default:
			return nil, fmt.Errorf("command surface: route %q has unknown kind %q", r.Name, r.Kind)
		}
		if r.Kind == gateway.KindCommand && !seen[r.Name] {
			return nil, fmt.Errorf("command surface: route %q has no command declaration", r.Name)
		}
	}
	return &s, nil
}

// DefaultSurface returns the embedded surface.
func DefaultSurface() (*Surface, error) {
	return LoadSurface(defaultSurface)
}
