package render

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"trackerdeploy/internal/core/topology"
)

// =============================================================================
// Compose Rendering
// =============================================================================

// Compose renders the docker-compose document for a topology. Services keep
// declaration order and the global network list keeps first-seen order; the
// output is byte-identical for identical topologies.
func Compose(projectName string, topo *topology.DockerComposeTopology) (string, error) {
	root := mappingNode()
	appendKeyed(root, "name", scalarNode(projectName))

	services := mappingNode()
	for _, svc := range topo.Services() {
		appendKeyed(services, string(svc.Kind), serviceNode(svc))
	}
	appendKeyed(root, "services", services)

	if networks := topo.Networks(); len(networks) > 0 {
		nets := mappingNode()
		for _, network := range networks {
			def := mappingNode()
			appendKeyed(def, "driver", scalarNode(network.Driver()))
			appendKeyed(nets, string(network), def)
		}
		appendKeyed(root, "networks", nets)
	}

	if volumes := topo.NamedVolumes(); len(volumes) > 0 {
		vols := mappingNode()
		for _, name := range volumes {
			vols.Content = append(vols.Content, strNode(name), emptyMapNode())
		}
		appendKeyed(root, "volumes", vols)
	}

	out, err := yaml.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("marshal compose document: %w", err)
	}
	return string(out), nil
}

func serviceNode(svc topology.ServiceTopology) *yaml.Node {
	node := mappingNode()
	appendKeyed(node, "image", scalarNode(svc.Image))
	appendKeyed(node, "container_name", scalarNode(string(svc.Kind)))
	appendKeyed(node, "restart", scalarNode("unless-stopped"))

	if svc.HasPorts() {
		ports := sequenceNode()
		for _, p := range svc.Ports {
			entry := strNode(p.String())
			if p.Description != "" {
				entry.LineComment = p.Description
			}
			ports.Content = append(ports.Content, entry)
		}
		appendKeyed(node, "ports", ports)
	}

	if len(svc.Mounts) > 0 {
		mounts := sequenceNode()
		for _, m := range svc.Mounts {
			mounts.Content = append(mounts.Content, strNode(m.String()))
		}
		appendKeyed(node, "volumes", mounts)
	}

	if len(svc.Networks) > 0 {
		nets := sequenceNode()
		for _, n := range svc.Networks {
			nets.Content = append(nets.Content, strNode(string(n)))
		}
		appendKeyed(node, "networks", nets)
	}

	return node
}

// =============================================================================
// Node Helpers
// =============================================================================

// yaml.v3 marshals Go maps in sorted key order, which would lose declaration
// order. Building the node tree directly keeps the order the topology model
// guarantees.

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func sequenceNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
}

func strNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func scalarNode(value string) *yaml.Node {
	return strNode(value)
}

func emptyMapNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Style: yaml.FlowStyle}
}

func appendKeyed(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content, strNode(key), value)
}
