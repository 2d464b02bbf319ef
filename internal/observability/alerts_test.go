package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestWorkflowAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "supplyops.yml"))
	require.NoError(t, err)

	var spec alertSpec
	require.NoError(t, yaml.Unmarshal(data, &spec))

	var workflow *alertGroup
	for i := range spec.Groups {
		if spec.Groups[i].Name == "supplyops" {
			workflow = &spec.Groups[i]
		}
	}
	require.NotNil(t, workflow, "supplyops alert group missing")

	expected := map[string]string{
		"HighErrorRate":          "critical",
		"HighLatency":            "warning",
		"FulfillmentContention":  "warning",
		"InsufficientStockSpike": "warning",
	}
	require.Len(t, workflow.Rules, len(expected))

	for _, rule := range workflow.Rules {
		severity, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, severity, rule.Labels["severity"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
		require.True(t, strings.Contains(rule.Expr, "supplyops_"), "rule %s must use supplyops metrics", rule.Alert)
	}
}
