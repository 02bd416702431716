package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderAssignmentTemplate(t *testing.T) {
	data := AssignmentData{
		AppName:      "OpsDesk",
		UserName:     "Asha",
		TaskTitle:    "Prepare monthly stock report",
		AssignedBy:   "Ravi",
		DueDate:      "05/03/2024",
		TaskKindName: "delegation",
	}

	html, err := renderTemplate(assignmentEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "OpsDesk") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Asha") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "Prepare monthly stock report") {
		t.Error("template should contain task title")
	}
	if !strings.Contains(html, "Due: 05/03/2024") {
		t.Error("template should contain due date")
	}
}

func TestRenderAssignmentTemplateWithoutDueDate(t *testing.T) {
	data := AssignmentData{
		AppName:      "OpsDesk",
		UserName:     "Asha",
		TaskTitle:    "Call the vendor",
		AssignedBy:   "Ravi",
		TaskKindName: "todo",
	}

	html, err := renderTemplate(assignmentEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if strings.Contains(html, "Due:") {
		t.Error("template should omit due date when empty")
	}
}
