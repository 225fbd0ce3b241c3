package engine

import (
	"context"
	"testing"
)

const orgPolicy = `package fitstack.authz

default allow = false

allow if {
	input.resource == "report"
	input.action == "read"
	some role in input.subject.roles
	role == "analyst"
}
`

func input(roles []string, resource, action string) map[string]any {
	return map[string]any{
		"subject":  map[string]any{"id": "id-1", "roles": roles},
		"resource": resource,
		"action":   action,
		"scope_id": "org-1",
	}
}

func TestAllowGrantsMatchingInput(t *testing.T) {
	e := NewOPAEvaluator()
	allowed, err := e.Allow(context.Background(), []string{orgPolicy},
		input([]string{"analyst"}, "report", "read"))
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !allowed {
		t.Error("analyst reading a report should be allowed")
	}
}

func TestAllowDeniesByDefault(t *testing.T) {
	e := NewOPAEvaluator()
	cases := []struct {
		name     string
		roles    []string
		resource string
		action   string
	}{
		{"wrong role", []string{"viewer"}, "report", "read"},
		{"wrong action", []string{"analyst"}, "report", "delete"},
		{"wrong resource", []string{"analyst"}, "billing", "read"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			allowed, err := e.Allow(context.Background(), []string{orgPolicy},
				input(tc.roles, tc.resource, tc.action))
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if allowed {
				t.Error("should be denied")
			}
		})
	}
}

func TestAllowNoPolicies(t *testing.T) {
	e := NewOPAEvaluator()
	allowed, err := e.Allow(context.Background(), nil, input(nil, "report", "read"))
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Error("no policies should mean deny")
	}
}

func TestAllowRejectsBrokenPolicy(t *testing.T) {
	e := NewOPAEvaluator()
	_, err := e.Allow(context.Background(), []string{"package broken\n\nallow if {"},
		input(nil, "report", "read"))
	if err == nil {
		t.Error("broken policy should fail compilation")
	}
}

func TestHealthCheck(t *testing.T) {
	if err := NewOPAEvaluator().HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
