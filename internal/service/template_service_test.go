package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zentrodesk/zentro-desk/internal/service"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{"single", "Conversation resolved by {agent}", map[string]string{"agent": "Kay"}, "Conversation resolved by Kay"},
		{"repeated", "{agent} and {agent}", map[string]string{"agent": "Kay"}, "Kay and Kay"},
		{"unknown placeholder kept", "Hi {name}", map[string]string{"agent": "Kay"}, "Hi {name}"},
		{"empty data", "plain", nil, "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.RenderTemplate(tt.template, tt.data))
		})
	}
}
