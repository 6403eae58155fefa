package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigFileFromArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "absent", args: []string{"serve"}, want: ""},
		{name: "separate value", args: []string{"--config", "/etc/daf.yaml", "serve"}, want: "/etc/daf.yaml"},
		{name: "inline value", args: []string{"serve", "--config=./daf.yaml"}, want: "./daf.yaml"},
		{name: "missing value", args: []string{"serve", "--config"}, want: ""},
		{name: "after terminator", args: []string{"render", "--", "--config", "x"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, configFileFromArgs(tt.args))
		})
	}
}
