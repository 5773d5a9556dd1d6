package models

import "testing"

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"qualified name", "facebook/react", "facebook+react"},
		{"nested path", "a/b/c", "a+b+c"},
		{"dots preserved", "vuejs/vue.js", "vuejs+vue.js"},
		{"underscores preserved", "my_org/my_repo", "my_org+my_repo"},
		{"hyphens preserved", "kubernetes/kube-state-metrics", "kubernetes+kube-state-metrics"},
		{"hyphenated owner", "my-org/repo", "my-org+repo"},
		{"special chars dropped", "owner/repo!@#", "owner+repo"},
		{"spaces dropped", "owner/my repo", "owner+myrepo"},
		{"empty string", "", ""},
		{"numbers preserved", "h2o/h2o-3", "h2o+h2o-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeName(tt.in)
			if got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeNameIsCollisionFree(t *testing.T) {
	// Names that only differ in where the separator sits must not share a
	// storage segment, or one project's database would shadow another's.
	names := []string{
		"foo-bar/baz",
		"foo/bar-baz",
		"foo/bar/baz",
		"foo-bar-baz/x",
		"foo/bar-baz-x",
	}

	seen := make(map[string]string, len(names))
	for _, name := range names {
		segment := SanitizeName(name)
		if prev, ok := seen[segment]; ok {
			t.Errorf("distinct qualified names collide: %q and %q both map to %q", prev, name, segment)
		}
		seen[segment] = name
	}
}

func TestQualifiedNameRoundTrip(t *testing.T) {
	names := []string{
		"facebook/react",
		"my-org/repo",
		"foo-bar/baz",
		"foo/bar-baz",
		"kubernetes/kube-state-metrics",
		"my_org/vue.js",
	}

	for _, name := range names {
		if got := QualifiedName(SanitizeName(name)); got != name {
			t.Errorf("round trip of %q = %q", name, got)
		}
	}
}

func TestProjectKey(t *testing.T) {
	p := ProjectDescriptor{FullName: "facebook/react"}
	if got := p.Key(); got != "facebook/react" {
		t.Errorf("Key() = %q, want %q", got, "facebook/react")
	}
}
