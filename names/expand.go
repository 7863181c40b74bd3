package names

import (
	"strings"

	"github.com/XiandiShan/rclgo/errors"
)

// ExpandTopicName expands a possibly-relative topic name to a fully
// qualified one against the given node name and namespace.
//
// A leading '~' is replaced by the node's fully qualified name, the
// substitutions {node} and {ns} are applied, and relative names are joined
// to the namespace. The result always passes ValidateFullTopicName.
func ExpandTopicName(name, nodeName, nodeNamespace string) (string, error) {
	if v := ValidateTopicName(name); v != nil {
		return "", errors.WrapValidation(v, "Names", "ExpandTopicName")
	}
	if v := ValidateNodeName(nodeName); v != nil {
		return "", errors.WrapValidation(v, "Names", "ExpandTopicName")
	}
	if v := ValidateNamespace(nodeNamespace); v != nil {
		return "", errors.WrapValidation(v, "Names", "ExpandTopicName")
	}

	expanded := name
	if strings.HasPrefix(expanded, "~") {
		expanded = fullyQualifiedNodeName(nodeName, nodeNamespace) + expanded[1:]
	}
	expanded = strings.ReplaceAll(expanded, "{node}", nodeName)
	expanded = strings.ReplaceAll(expanded, "{ns}", nodeNamespace)
	expanded = strings.ReplaceAll(expanded, "{namespace}", nodeNamespace)
	// A namespace substitution of "/" can introduce doubled slashes.
	expanded = collapseSlashes(expanded)

	if !strings.HasPrefix(expanded, "/") {
		expanded = join(nodeNamespace, expanded)
	}

	if v := ValidateFullTopicName(expanded); v != nil {
		return "", errors.WrapValidation(v, "Names", "ExpandTopicName")
	}
	return expanded, nil
}

// FullyQualifiedNodeName returns the absolute name of a node within its
// namespace.
func FullyQualifiedNodeName(nodeName, nodeNamespace string) (string, error) {
	if v := ValidateNodeName(nodeName); v != nil {
		return "", errors.WrapValidation(v, "Names", "FullyQualifiedNodeName")
	}
	if v := ValidateNamespace(nodeNamespace); v != nil {
		return "", errors.WrapValidation(v, "Names", "FullyQualifiedNodeName")
	}
	return fullyQualifiedNodeName(nodeName, nodeNamespace), nil
}

func fullyQualifiedNodeName(nodeName, nodeNamespace string) string {
	return join(nodeNamespace, nodeName)
}

func join(namespace, name string) string {
	if namespace == "/" {
		return "/" + name
	}
	return namespace + "/" + name
}

func collapseSlashes(s string) string {
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	return s
}
