package transcript

// Node describes one node of the workflow graph for attribution purposes.
type Node struct {
	ID    string
	Type  string
	Tools []string
}

// NodeTypeTool marks nodes that execute bound tools.
const NodeTypeTool = "tool"

// Attribute resolves which workflow node emitted a message, for UI
// highlighting only. It first tries an exact node-id match on the producing
// name; failing that, it attributes a tool name to the first tool-type node
// binding it. An unknown name yields no match and no error.
//
// The heuristic can mis-attribute when several nodes bind the same tool name;
// the stream carries no disambiguation signal, so the first binding wins.
func Attribute(nodes []Node, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, n := range nodes {
		if n.ID == name {
			return n.ID, true
		}
	}
	for _, n := range nodes {
		if n.Type != NodeTypeTool {
			continue
		}
		for _, tool := range n.Tools {
			if tool == name {
				return n.ID, true
			}
		}
	}
	return "", false
}
