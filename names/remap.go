package names

// RemapRule substitutes one fully qualified name for another. Rules are
// matched in order; the first match wins.
type RemapRule struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RemapName applies the first matching rule to a fully qualified name.
// A name with no matching rule is returned unchanged.
func RemapName(name string, rules []RemapRule) string {
	for _, rule := range rules {
		if rule.From == name {
			return rule.To
		}
	}
	return name
}

// ResolveName expands a topic name and then applies remap rules, the
// complete resolution a node performs when creating an endpoint.
func ResolveName(name, nodeName, nodeNamespace string, rules []RemapRule) (string, error) {
	expanded, err := ExpandTopicName(name, nodeName, nodeNamespace)
	if err != nil {
		return "", err
	}
	return RemapName(expanded, rules), nil
}
