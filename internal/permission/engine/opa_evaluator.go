package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.fitstack.authz.allow"

// Minimal policy used to verify the in-process Rego engine at startup.
const healthCheckPolicy = `package fitstack.authz

default allow = false

allow if {
	input.subject.id != ""
	input.resource == "healthcheck"
}
`

// OPAEvaluator evaluates org access policies with the in-process OPA Rego
// engine. Policies are authored in package fitstack.authz and grant access by
// deriving allow = true; everything else stays denied.
type OPAEvaluator struct{}

// NewOPAEvaluator returns an OPA-based access evaluator.
func NewOPAEvaluator() *OPAEvaluator {
	return &OPAEvaluator{}
}

// HealthCheck verifies that the Rego engine can compile and evaluate a known
// policy. It touches no external state.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	input := map[string]any{
		"subject":  map[string]any{"id": "healthcheck", "roles": []string{}},
		"resource": "healthcheck",
		"action":   "read",
		"scope_id": "",
	}
	allowed, err := e.Allow(ctx, []string{healthCheckPolicy}, input)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("policy engine returned deny for known-allow input")
	}
	return nil
}

// Allow compiles the policies and evaluates the allow query against the
// input. Any policy deriving allow = true grants access.
func (e *OPAEvaluator) Allow(ctx context.Context, policies []string, input map[string]any) (bool, error) {
	if len(policies) == 0 {
		return false, nil
	}
	modules := make(map[string]string, len(policies))
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return false, fmt.Errorf("compile policies: %w", err)
	}
	q := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval policies: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}
