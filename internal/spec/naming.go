package spec

// Naming derives resource names and tags from project and environment.
type Naming struct {
	Project     string
	Environment string
}

// Prefix is "<project>-<environment>".
func (n Naming) Prefix() string {
	return n.Project + "-" + n.Environment
}

// Name returns "<project>-<environment>-<suffix>".
func (n Naming) Name(suffix string) string {
	return n.Prefix() + "-" + suffix
}

// Tags returns the standard tag list with Name set to Name(suffix).
func (n Naming) Tags(suffix string) []any {
	return []any{
		map[string]any{"Key": "ProjectName", "Value": n.Project},
		map[string]any{"Key": "Environment", "Value": n.Environment},
		map[string]any{"Key": "Name", "Value": n.Name(suffix)},
	}
}

// TagMap returns the standard tags as a map, for services that take tag maps.
func (n Naming) TagMap(suffix string) map[string]any {
	return map[string]any{
		"ProjectName": n.Project,
		"Environment": n.Environment,
		"Name":        n.Name(suffix),
	}
}
