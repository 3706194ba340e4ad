package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShell(t *testing.T, collection string) *shell {
	t.Helper()
	sh, err := newShell(&ShellOptions{RootOptions: &RootOptions{}, Collection: collection})
	require.NoError(t, err)
	return sh
}

func TestShellCompilesPipeline(t *testing.T) {
	sh := newTestShell(t, "Project")

	out, quit := sh.exec("Root.Where(x => x.Name == \"A\").Select(x => x.Name)")

	assert.False(t, quit)
	assert.Contains(t, out, "FOR x IN Project")
	assert.Contains(t, out, "RETURN x.Name")
	assert.Contains(t, out, "-- bind vars: ")
}

func TestShellParams(t *testing.T) {
	sh := newTestShell(t, "Project")

	assert.Equal(t, "(no params)", sh.exec1(":params"))
	assert.Equal(t, "$name = B", sh.exec1(":param name = B"))
	assert.Equal(t, "$limit = 5", sh.exec1(":param limit=5"))
	assert.Equal(t, "{limit=5, name=B}", sh.exec1(":params"))

	out := sh.exec1("Root.Where(x => x.Name == $name).Take($limit)")
	assert.Contains(t, out, "FILTER x.Name == @name")
	assert.Contains(t, out, "name=B")

	assert.Equal(t, "unset limit", sh.exec1(":unset limit"))
	assert.Equal(t, "{name=B}", sh.exec1(":params"))

	assert.Equal(t, "usage: :param name=value", sh.exec1(":param novalue"))
	assert.Equal(t, "usage: :param name=value", sh.exec1(":param =3"))
}

func TestShellCollection(t *testing.T) {
	sh := newTestShell(t, "")

	assert.Equal(t, "collection: (none)", sh.exec1(":collection"))
	assert.Equal(t, "no root collection (use :collection or :load)", sh.exec1("Root.Select(x => x.Name)"))
	assert.Equal(t, "collection: Client", sh.exec1(":collection Client"))
	assert.Contains(t, sh.exec1("Root.Select(x => x.Name)"), "FOR x IN Client")
}

func TestShellLoadAndRun(t *testing.T) {
	sh := newTestShell(t, "")

	assert.Equal(t, "no definitions loaded (use :load)", sh.exec1(":run by-name"))

	out := sh.exec1(":load " + projectsDefs)
	assert.Equal(t, "loaded 3 query(s) from "+projectsDefs+": by-name, recent, slugs", out)
	assert.Equal(t, "collection: Project", sh.exec1(":collection"))

	assert.Equal(t, byNameText+"\n-- bind vars: {name=A}", sh.exec1(":run by-name"))

	sh.exec1(":param name=C")
	assert.Contains(t, sh.exec1(":run by-name"), "{name=C}")

	assert.Contains(t, sh.exec1(":run slugs"), "FOR x IN Archive")
	assert.Contains(t, sh.exec1(":run slugs"), "SLUGIFY(x.Name)")
	assert.Contains(t, sh.exec1(":run nope"), "error: E123")
}

func TestShellLoadKeepsFlagCollection(t *testing.T) {
	sh := newTestShell(t, "Other")

	sh.exec1(":load " + projectsDefs)

	assert.Equal(t, "collection: Other", sh.exec1(":collection"))
}

func TestShellLoadErrors(t *testing.T) {
	sh := newTestShell(t, "")

	assert.Contains(t, sh.exec1(":load testdata/defs/missing.yaml"), "error: E005")
	assert.Equal(t, "usage: :load <definitions>", sh.exec1(":load"))
	assert.Equal(t, "usage: :run <query>", sh.exec1(":run"))
}

func TestShellStats(t *testing.T) {
	sh := newTestShell(t, "Project")

	sh.exec1("Root.Select(x => x.Name)")
	sh.exec1("Root.Select(x => x.Name)")

	assert.Equal(t, "cache: 1 entries, 1 hits, 1 misses", sh.exec1(":stats"))
}

func TestShellErrors(t *testing.T) {
	sh := newTestShell(t, "Project")

	assert.Contains(t, sh.exec1("Root.Where(x => )"), "error: ")
	assert.Contains(t, sh.exec1("Root.Select(x => Geo.Near(x.Location))"), "UNHANDLED_CONSTRUCT")
	assert.Equal(t, "unknown command :frob (try :help)", sh.exec1(":frob"))
	assert.Equal(t, shellHelp, sh.exec1(":help"))
}

func TestShellQuit(t *testing.T) {
	sh := newTestShell(t, "")

	for _, input := range []string{"exit", "quit", ":quit", ":q", "  :q  "} {
		out, quit := sh.exec(input)
		assert.True(t, quit, input)
		assert.Empty(t, out)
	}
}

func TestNeedsMoreInput(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"Root.Select(x => x.Name)", false},
		{"Root.Where(x =>", true},
		{"Root.Select(x => new { A = x.A,", true},
		{"Root.Where(x => x.Tags.Contains(\"(\"))", false},
		{"Root.Where(x => x.Name == \"a\\\"(\")", false},
		{"Root.Where(x => x.A)\n)", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, needsMoreInput(tt.input))
		})
	}
}

func TestShellComplete(t *testing.T) {
	sh := newTestShell(t, "Project")

	assert.Equal(t, []string{"Root.Where("}, sh.complete("Root.Wh"))
	assert.Contains(t, sh.complete("Root.Select(x => Aql.Tr"), "Root.Select(x => Aql.Trim(")
	assert.Equal(t, []string{":load"}, sh.complete(":lo"))
	assert.Nil(t, sh.complete("Root.Select(x => x.Nam"))
	assert.Nil(t, sh.complete("Root.Select("))

	sh.exec1(":load " + projectsDefs)
	assert.Contains(t, sh.complete(":run by"), ":run by-name")
	assert.Contains(t, sh.complete("Root.Select(x => Text.S"), "Root.Select(x => Text.Slug(")
}

func TestFormatShellQueryOutput(t *testing.T) {
	sh := newTestShell(t, "Project")

	out := sh.exec1("Root.SingleOrDefault(x => x.Name == \"A\")")

	assert.Contains(t, out, "-- output: SingleOrDefault")
}

// exec1 runs one input and returns only its reply.
func (s *shell) exec1(input string) string {
	out, _ := s.exec(input)
	return out
}
