// Package graph generates DOT and Mermaid dependency graphs of a descriptor arena.
package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"

	"github.com/lex00/wetwire-topology-go/internal/descriptor"
	"github.com/lex00/wetwire-topology-go/internal/template"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatDOT:
		return FormatDOT, nil
	case FormatMermaid:
		return FormatMermaid, nil
	}
	return "", fmt.Errorf("unknown graph format %q (want dot or mermaid)", s)
}

// Generator creates dependency graphs from a descriptor set.
type Generator struct {
	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByService groups descriptors by AWS service.
	ClusterByService bool

	// ShowLevels appends the apply wave to each node label.
	ShowLevels bool
}

// Generate creates a dependency graph and writes it to w.
func (g *Generator) Generate(set *descriptor.Set, w io.Writer) error {
	graph, err := g.buildGraph(set)
	if err != nil {
		return err
	}

	var output string
	if g.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err = io.WriteString(w, output)
	return err
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(set *descriptor.Set) (string, error) {
	var sb strings.Builder
	if err := g.Generate(set, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) buildGraph(set *descriptor.Set) (*dot.Graph, error) {
	levels := map[string]int{}
	if g.ShowLevels {
		waves, err := set.Levels()
		if err != nil {
			return nil, err
		}
		for i, wave := range waves {
			for _, id := range wave {
				levels[id] = i
			}
		}
	} else if err := set.Check(); err != nil {
		return nil, err
	}

	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	nodes := make(map[string]dot.Node, set.Len())
	label := func(d descriptor.Descriptor) string {
		cfType, err := template.CFResourceType(d.Kind)
		if err != nil {
			cfType = string(d.Kind)
		}
		l := d.ID + "\\n[" + cfType + "]"
		if g.ShowLevels {
			l += fmt.Sprintf("\\nlevel %d", levels[d.ID])
		}
		return l
	}

	if g.ClusterByService {
		byService := make(map[string][]descriptor.Descriptor)
		for _, d := range set.Descriptors() {
			svc := d.Kind.Service()
			byService[svc] = append(byService[svc], d)
		}
		services := make([]string, 0, len(byService))
		for svc := range byService {
			services = append(services, svc)
		}
		sort.Strings(services)

		for _, svc := range services {
			members := byService[svc]
			parent := graph
			// Single resources need no cluster.
			if len(members) > 1 {
				parent = graph.Subgraph("cluster_"+svc, dot.ClusterOption{})
				parent.Attr("label", strings.ToUpper(svc))
				parent.Attr("style", "rounded")
				parent.Attr("bgcolor", "lightyellow")
			}
			for _, d := range members {
				nodes[d.ID] = parent.Node(d.ID).Label(label(d))
			}
		}
	} else {
		for _, d := range set.Descriptors() {
			nodes[d.ID] = graph.Node(d.ID).Label(label(d))
		}
	}

	for _, d := range set.Descriptors() {
		attrRefs := d.AttrRefs()
		for _, dep := range d.Dependencies() {
			e := graph.Edge(nodes[d.ID], nodes[dep])
			// Attribute references are drawn blue, explicit ordering dashed.
			switch {
			case attrRefs[dep]:
				e.Attr("color", "blue")
			case explicitOnly(d, dep):
				e.Attr("style", "dashed")
			}
		}
	}

	return graph, nil
}

// explicitOnly reports whether dep is reached only through DependsOn.
func explicitOnly(d descriptor.Descriptor, dep string) bool {
	referenced := descriptor.Descriptor{ID: d.ID, Props: d.Props}.Dependencies()
	i := sort.SearchStrings(referenced, dep)
	return i == len(referenced) || referenced[i] != dep
}
