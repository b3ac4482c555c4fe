// Package compose extracts the handful of facts this deployer needs
// from a Docker Compose file: volume mappings to bind into the
// container, port mappings and image tags for documentation, and the
// service user for volume ownership.
package compose

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type document struct {
	Name     string                 `yaml:"name"`
	Services map[string]service     `yaml:"services"`
	Volumes  map[string]interface{} `yaml:"volumes"`
	Networks map[string]interface{} `yaml:"networks"`
}

type service struct {
	Image   string     `yaml:"image"`
	User    string     `yaml:"user"`
	Volumes []string   `yaml:"volumes"`
	Ports   []portSpec `yaml:"ports"`
}

// portSpec accepts the scalar short syntax ("8080:80", 8080) and the
// long map syntax ({published, target, protocol}).
type portSpec struct {
	Published string
	Target    string
}

func (p *portSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		// [host_ip:]host_port:container_port[/protocol]
		spec := value.Value
		parts := strings.Split(spec, ":")
		if len(parts) >= 2 {
			p.Published = parts[len(parts)-2]
			p.Target = strings.SplitN(parts[len(parts)-1], "/", 2)[0]
		} else {
			p.Target = strings.SplitN(parts[0], "/", 2)[0]
		}
		return nil
	case yaml.MappingNode:
		var long struct {
			Published interface{} `yaml:"published"`
			Target    interface{} `yaml:"target"`
		}
		if err := value.Decode(&long); err != nil {
			return err
		}
		p.Published = scalarString(long.Published)
		p.Target = scalarString(long.Target)
		return nil
	}
	return fmt.Errorf("compose: unsupported port specification on line %d", value.Line)
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Volume is one extracted bind mapping: a storage key on the host side
// and the container path it serves, without its leading slash.
type Volume struct {
	Key    string `json:"key"`
	Target string `json:"target"`
}

// Extraction is everything pulled from one compose file.
type Extraction struct {
	Project  string   `json:"project"`
	Volumes  []Volume `json:"volumes"`
	UID      string   `json:"uid,omitempty"`
	Services []string `json:"services,omitempty"`
	Ports    []string `json:"ports,omitempty"`
	Images   []string `json:"images,omitempty"`
	Networks []string `json:"networks,omitempty"`
}

// Lines renders the volumes in the key=target format the volume-bind
// step consumes.
func (e *Extraction) Lines() []string {
	lines := make([]string, 0, len(e.Volumes))
	for _, v := range e.Volumes {
		lines = append(lines, v.Key+"="+v.Target)
	}
	return lines
}

// Extract parses the compose content and applies the volume-key
// heuristics. The project name resolves explicit project first, then
// hostname, then the compose file's own name, then the first service.
func Extract(content []byte, project, hostname string) (*Extraction, error) {
	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("compose: parse: %w", err)
	}
	if len(doc.Services) == 0 {
		return nil, fmt.Errorf("compose: no services defined")
	}

	result := &Extraction{Project: resolveProject(&doc, project, hostname)}

	for _, name := range sortedServiceNames(doc.Services) {
		svc := doc.Services[name]
		result.Services = append(result.Services, name)

		if result.UID == "" && svc.User != "" {
			uid := strings.SplitN(strings.Trim(svc.User, `"'`), ":", 2)[0]
			if _, err := strconv.Atoi(uid); err == nil {
				result.UID = uid
			}
		}

		for _, spec := range svc.Volumes {
			if v, ok := parseVolumeSpec(spec); ok {
				result.Volumes = append(result.Volumes, v)
			}
		}

		for _, p := range svc.Ports {
			if p.Published != "" && p.Target != "" {
				result.Ports = append(result.Ports, fmt.Sprintf("%s:%s->%s", name, p.Published, p.Target))
			}
		}

		if svc.Image != "" {
			tag := "latest"
			if idx := strings.LastIndex(svc.Image, ":"); idx > strings.LastIndex(svc.Image, "/") {
				tag = svc.Image[idx+1:]
			}
			result.Images = append(result.Images, name+":"+tag)
		}
	}

	for name := range doc.Networks {
		result.Networks = append(result.Networks, name)
	}
	sort.Strings(result.Networks)

	result.Volumes = dedupeVolumes(result.Volumes)
	return result, nil
}

// parseVolumeSpec converts one short-syntax volume entry into a
// {key, target} pair. Named volumes keep their name as the key,
// relative paths flatten into underscore keys, absolute paths use
// their last component.
func parseVolumeSpec(spec string) (Volume, bool) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 {
		return Volume{}, false
	}

	hostPath := parts[0]
	target := strings.TrimPrefix(parts[1], "/")

	var key string
	switch {
	case strings.HasPrefix(hostPath, "./"):
		name := strings.TrimSuffix(hostPath[2:], "/")
		if name == "" {
			name = "data"
		}
		key = strings.ReplaceAll(name, "/", "_")
	case strings.HasPrefix(hostPath, "/"):
		key = path.Base(hostPath)
		if key == "/" || key == "." {
			key = "data"
		}
	case hostPath != "" && hostPath != ".":
		// Named volume, declared or not.
		key = hostPath
	default:
		return Volume{}, false
	}

	return Volume{Key: key, Target: target}, true
}

func resolveProject(doc *document, project, hostname string) string {
	if project != "" {
		return project
	}
	if hostname != "" {
		return hostname
	}
	if doc.Name != "" {
		return doc.Name
	}
	for _, name := range sortedServiceNames(doc.Services) {
		return strings.ReplaceAll(name, "_", "-")
	}
	return "default"
}

func dedupeVolumes(volumes []Volume) []Volume {
	seen := make(map[string]bool)
	var out []Volume
	for _, v := range volumes {
		if seen[v.Key] {
			continue
		}
		seen[v.Key] = true
		out = append(out, v)
	}
	return out
}

func sortedServiceNames(services map[string]service) []string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
