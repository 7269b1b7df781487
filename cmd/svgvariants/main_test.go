package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoitkugler/svgvariants/manifest"
)

type testEnv struct {
	environment
	out, logs *bytes.Buffer
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	fs := memfs.New()
	content, err := os.ReadFile("testdata/sign.svg")
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fs, "/project/source_templates/sign.svg", content, 0o644))
	require.NoError(t, util.WriteFile(fs, "/project/source_templates/order.json", []byte(`["sign"]`), 0o644))

	out, logs := new(bytes.Buffer), new(bytes.Buffer)
	return testEnv{
		environment: environment{fs: fs, wd: "/project", vars: map[string]string{}, stdout: out, stderr: logs},
		out:         out,
		logs:        logs,
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func exists(fs billy.Filesystem, name string) bool {
	_, err := fs.Stat(name)
	return err == nil
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t)
	err := run(context.Background(), env.environment, []string{"generate", "--log-format", "json"})
	require.NoError(t, err, env.logs.String())

	assert.Equal(t, "Generated 3 variation(s) from 1 source(s).\n", env.out.String())
	for _, name := range []string{
		"/project/website/downloadables/sign_var0.svg",
		"/project/website/downloadables/sign_var2.svg",
		"/project/website/displayables/sign_var1.svg",
	} {
		assert.True(t, exists(env.fs, name), name)
	}
	m, err := manifest.Read(env.fs, "/project/website/generated/config.json")
	require.NoError(t, err)
	assert.Equal(t, []manifest.Entry{{Name: "sign", Count: 3}}, m.Entries)
	assert.Contains(t, env.logs.String(), `"msg":"Manifest written."`)
}

func TestGenerateConfigFile(t *testing.T) {
	env := newTestEnv(t)
	content, err := util.ReadFile(env.fs, "/project/source_templates/sign.svg")
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(env.fs, "/project/site/templates/other.svg", content, 0o644))
	require.NoError(t, util.WriteFile(env.fs, "/project/site/conf.hcl", []byte(`
source_dir = "templates"
order_file = ""
downloadable_dir = env.OUT_DIR
generator = "test-suite"
`), 0o644))
	env.vars["OUT_DIR"] = "/out"

	err = run(context.Background(), env.environment, []string{"generate", "-c", "site/conf.hcl", "--thumbnails"})
	require.NoError(t, err, env.logs.String())

	assert.True(t, exists(env.fs, "/out/other_var1.svg"))
	assert.True(t, exists(env.fs, "/project/site/website/displayables/other_var1.svg"))
	assert.True(t, exists(env.fs, "/project/site/website/thumbnails/other_var1.png"))
	m, err := manifest.Read(env.fs, "/project/site/website/generated/config.json")
	require.NoError(t, err)
	assert.Equal(t, "test-suite", m.Generator)
}

func TestGenerateOverrides(t *testing.T) {
	env := newTestEnv(t)
	err := run(context.Background(), env.environment, []string{"generate",
		"--downloadable-dir", "dl", "--manifest", "/site/variations.json", "--order-file", ""})
	require.NoError(t, err, env.logs.String())
	assert.True(t, exists(env.fs, "/project/dl/sign_var0.svg"))
	assert.True(t, exists(env.fs, "/site/variations.json"))
	assert.NotContains(t, env.logs.String(), "OrderingArtifactMissing")
}

func TestGenerateFailures(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, util.WriteFile(env.fs, "/project/source_templates/broken.svg", []byte("<svg>"), 0o644))
	err := run(context.Background(), env.environment, []string{"generate", "--log-format", "github"})
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, err.Error(), "1 error(s)")
	assert.Contains(t, env.logs.String(), "::error file=/project/source_templates/broken.svg::")
	// the valid template is still generated
	assert.True(t, exists(env.fs, "/project/website/downloadables/sign_var2.svg"))

	env = newTestEnv(t)
	err = run(context.Background(), env.environment, []string{"generate", "--source-dir", "missing"})
	assert.Equal(t, 1, exitCode(err))
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"generate", "--unknown"},
		{"generate", "--log-level", "verbose"},
		{"generate", "--log-format", "xml"},
		{"generate", "--missing-id", "drop"},
	} {
		env := newTestEnv(t)
		err := run(context.Background(), env.environment, args)
		assert.Equal(t, 2, exitCode(err), args)
	}

	env := newTestEnv(t)
	err := run(context.Background(), env.environment, []string{"generate", "-c", "missing.hcl"})
	assert.Equal(t, 1, exitCode(err))
}

func TestInspect(t *testing.T) {
	env := newTestEnv(t)
	err := run(context.Background(), env.environment, []string{"inspect", "source_templates/sign.svg"})
	require.NoError(t, err)

	out := env.out.String()
	assert.Contains(t, out, "source_templates/sign.svg: 3 variation(s)")
	assert.Regexp(t, `keep\s+layer1\s+Base`, out)
	assert.Regexp(t, `remove\s+layer2\s+-guide`, out)
	assert.Regexp(t, `toggle\s+eng1\s+Engrave-text`, out)

	err = run(context.Background(), env.environment, []string{"inspect"})
	assert.Error(t, err)
}

func TestStrip(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, run(context.Background(), env.environment, []string{"generate"}))
	generated, err := util.ReadFile(env.fs, "/project/website/downloadables/sign_var1.svg")
	require.NoError(t, err)
	require.Contains(t, string(generated), "AUTO-GENERATED FILE")

	env.out.Reset()
	err = run(context.Background(), env.environment, []string{"strip", "website/downloadables/sign_var1.svg"})
	require.NoError(t, err)
	assert.NotContains(t, env.out.String(), "AUTO-GENERATED FILE")
	assert.Contains(t, env.out.String(), `id="eng1"`)

	err = run(context.Background(), env.environment, []string{"strip", "-w", "website/downloadables/sign_var1.svg"})
	require.NoError(t, err)
	stripped, err := util.ReadFile(env.fs, "/project/website/downloadables/sign_var1.svg")
	require.NoError(t, err)
	assert.Equal(t, env.out.String(), string(stripped))
}

func TestPublishRequiresBucket(t *testing.T) {
	env := newTestEnv(t)
	err := run(context.Background(), env.environment, []string{"publish"})
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, err.Error(), "bucket")
}
