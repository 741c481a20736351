// Package scan implements a fast syntactic prescan of #include
// directives, exposed through the ctix scan subcommand. It does not
// touch Storage and never substitutes for the cursor visitor's include
// edges (internal/visitor); it only lists the include targets a file
// names, without invoking the semantic parser.
package scan

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Include is one #include directive found in a file.
type Include struct {
	Path   string // the text between quotes or angle brackets
	System bool   // true for <...>, false for "..."
}

// Includes parses content as C/C++ and returns every #include
// directive it finds, in source order.
func Includes(ctx context.Context, content []byte) ([]Include, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var includes []Include
	walk(tree.RootNode(), content, &includes)
	return includes, nil
}

// walk descends the tree-sitter AST looking for preproc_include nodes
// via manual child-by-child traversal.
func walk(node *sitter.Node, content []byte, includes *[]Include) {
	if node == nil {
		return
	}

	if node.Type() == "preproc_include" {
		if inc, ok := parseIncludeNode(node, content); ok {
			*includes = append(*includes, inc)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(i), content, includes)
	}
}

func parseIncludeNode(node *sitter.Node, content []byte) (Include, bool) {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() == "string_literal" || child.Type() == "system_lib_string" {
				pathNode = child
				break
			}
		}
	}
	if pathNode == nil {
		return Include{}, false
	}

	text := pathNode.Content(content)
	switch {
	case strings.HasPrefix(text, "\"") && strings.HasSuffix(text, "\""):
		return Include{Path: strings.Trim(text, "\""), System: false}, true
	case strings.HasPrefix(text, "<") && strings.HasSuffix(text, ">"):
		return Include{Path: strings.Trim(text, "<>"), System: true}, true
	default:
		return Include{}, false
	}
}
