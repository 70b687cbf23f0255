package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/enginerr"
)

func TestApplySpellsOutBuiltinPunctuationAndDropsFiller(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine("", 30)
	require.NoError(t, err)

	output, err := engine.Apply("so uh the plan is comma speak first period")
	require.NoError(t, err)
	require.Equal(t, "so  the plan is , speak first .", output)
}

func TestApplyRunsCustomRulesAfterBuiltins(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	rulesPath := filepath.Join(tmpDir, "substitutions.rules")

	rules := `
# literal
pull request => PR
# regex with default case-insensitive
s/\bdeep\s*gram\b/Deepgram/g
`
	require.NoError(t, os.WriteFile(rulesPath, []byte(rules), 0o600))

	engine, err := NewEngine(rulesPath, 30)
	require.NoError(t, err)

	output, err := engine.Apply("deep gram pull request")
	require.NoError(t, err)
	require.Equal(t, "Deepgram PR", output)
}

func TestApplyIteratesUntilStable(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	rulesPath := filepath.Join(tmpDir, "substitutions.rules")

	rules := `
a => b
b => c
`
	require.NoError(t, os.WriteFile(rulesPath, []byte(rules), 0o600))

	engine, err := NewEngine(rulesPath, 5)
	require.NoError(t, err)

	output, err := engine.Apply("a")
	require.NoError(t, err)
	require.Equal(t, "c", output)
}

func TestApplyLiteralRuleStartingWithS(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	rulesPath := filepath.Join(tmpDir, "substitutions.rules")

	rules := `
solid complaint => SOLID-compliant
`
	require.NoError(t, os.WriteFile(rulesPath, []byte(rules), 0o600))

	engine, err := NewEngine(rulesPath, 30)
	require.NoError(t, err)

	output, err := engine.Apply("solid complaint plan")
	require.NoError(t, err)
	require.Equal(t, "SOLID-compliant plan", output)
}

func TestApplySupportsParserExtension(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	rulesPath := filepath.Join(tmpDir, "substitutions.rules")

	rules := `
prefix:Hello=>Howdy
`
	require.NoError(t, os.WriteFile(rulesPath, []byte(rules), 0o600))

	parsers := append([]RuleParser{prefixRuleParser{}}, defaultRuleParsers()...)
	engine, err := NewEngineWithParsers(rulesPath, 5, parsers)
	require.NoError(t, err)

	output, err := engine.Apply("hello world")
	require.NoError(t, err)
	require.Equal(t, "Howdy world", output)
}

func TestNewEngineTagsMalformedRulesFileAsConfigInvalid(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	rulesPath := filepath.Join(tmpDir, "substitutions.rules")
	require.NoError(t, os.WriteFile(rulesPath, []byte("not-a-rule\n"), 0o600))

	_, err := NewEngine(rulesPath, 30)
	require.Error(t, err)

	code, ok := enginerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, domain.ErrorCodeConfigInvalid, code)
}

func TestNewEngineWithMissingFileFallsBackToBuiltinsOnly(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(filepath.Join(t.TempDir(), "missing.rules"), 30)
	require.NoError(t, err)

	output, err := engine.Apply("comma")
	require.NoError(t, err)
	require.Equal(t, ",", output)
}

func TestRegexRuleWithoutGlobalReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	rule, err := parseRegexRule(`s/foo/bar/`)
	require.NoError(t, err)

	output, changed := rule.Apply("foo foo")
	require.True(t, changed)
	require.Equal(t, "bar foo", output)
}

func TestParseRegexRuleUnsupportedFlag(t *testing.T) {
	t.Parallel()

	_, err := parseRegexRule(`s/foo/bar/x`)
	require.Error(t, err)
}

func TestParseRulesUnsupportedLine(t *testing.T) {
	t.Parallel()

	_, err := parseRules("not-a-rule", defaultRuleParsers())
	require.Error(t, err)
}

type prefixRuleParser struct{}

func (prefixRuleParser) CanParse(line string) bool {
	return strings.HasPrefix(line, "prefix:")
}

func (prefixRuleParser) Parse(line string) (compiledRule, error) {
	payload := strings.TrimPrefix(line, "prefix:")
	parts := strings.SplitN(payload, "=>", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid prefix rule")
	}
	return parseLiteralRule(parts[0] + " => " + parts[1])
}
